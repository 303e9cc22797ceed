package unstructured

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/go-logr/logr"

	"ocrsweep/src/core/ocr"
	"ocrsweep/src/log"
)

// ObjectStore is the subset of minioctrl.MinioService the recognizer needs.
type ObjectStore interface {
	GetObject(ctx context.Context, bucketName, objectName string) ([]byte, error)
	PutObject(ctx context.Context, bucketName, objectName string, data []byte, contentType string) error
	ObjectExists(ctx context.Context, bucketName, objectName string) (bool, error)
}

type Config struct {
	BaseURL string
	// Strategy is the partition strategy; defaults to "ocr_only".
	Strategy  string
	Languages []string
	// CacheBucket stores recognized results as <path>.json. Empty disables
	// the cache.
	CacheBucket string
	HTTPClient  *http.Client
}

type UnstructuredService struct {
	cfg       Config
	objects   ObjectStore
	validator *responseValidator
	logger    logr.Logger
}

type UnstructuredElement struct {
	Type      string   `json:"type"`
	Text      string   `json:"text"`
	ElementID string   `json:"element_id,omitempty"`
	Metadata  Metadata `json:"metadata"`
}

type Metadata struct {
	Filename   string `json:"filename,omitempty"`
	Filetype   string `json:"filetype,omitempty"`
	PageNumber int    `json:"page_number,omitempty"`
	TableHTML  string `json:"table_html,omitempty"`
}

func NewUnstructuredService(cfg Config, objects ObjectStore) (*UnstructuredService, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("unstructured base url is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Strategy == "" {
		cfg.Strategy = "ocr_only"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	validator, err := newResponseValidator()
	if err != nil {
		return nil, err
	}

	return &UnstructuredService{
		cfg:       cfg,
		objects:   objects,
		validator: validator,
		logger:    log.WithName("unstructured"),
	}, nil
}

// Recognize runs OCR over the PDF stored at req.Bucket/req.Path. Unless
// req.Force is set, a cached result is returned when one exists.
func (s *UnstructuredService) Recognize(ctx context.Context, req ocr.Request) (*ocr.Result, error) {
	cacheKey := req.Path + ".json"

	if !req.Force && s.cfg.CacheBucket != "" {
		body, ok, err := s.cached(ctx, cacheKey)
		if err != nil {
			return nil, err
		}
		if ok {
			s.logger.V(1).Info("using cached ocr result", "bucket", s.cfg.CacheBucket, "object", cacheKey)
			return s.result(body)
		}
	}

	content, err := s.objects.GetObject(ctx, req.Bucket, req.Path)
	if err != nil {
		return nil, err
	}

	body, err := s.partition(ctx, path.Base(req.Path), content)
	if err != nil {
		return nil, err
	}

	result, err := s.result(body)
	if err != nil {
		return nil, err
	}

	if s.cfg.CacheBucket != "" {
		if err := s.objects.PutObject(ctx, s.cfg.CacheBucket, cacheKey, body, "application/json"); err != nil {
			s.logger.Error(err, "failed to cache ocr result", "bucket", s.cfg.CacheBucket, "object", cacheKey)
		}
	}

	return result, nil
}

func (s *UnstructuredService) cached(ctx context.Context, key string) ([]byte, bool, error) {
	exists, err := s.objects.ObjectExists(ctx, s.cfg.CacheBucket, key)
	if err != nil || !exists {
		return nil, false, err
	}
	body, err := s.objects.GetObject(ctx, s.cfg.CacheBucket, key)
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

// result validates a partition response and counts the distinct pages it
// covers.
func (s *UnstructuredService) result(body []byte) (*ocr.Result, error) {
	if err := s.validator.Validate(body); err != nil {
		return nil, err
	}

	var elements []UnstructuredElement
	if err := json.Unmarshal(body, &elements); err != nil {
		return nil, fmt.Errorf("failed to parse response: %v", err)
	}

	pages := make(map[int]struct{})
	for _, el := range elements {
		if el.Metadata.PageNumber > 0 {
			pages[el.Metadata.PageNumber] = struct{}{}
		}
	}

	return &ocr.Result{
		TotalPagesProcessed: len(pages),
		Content:             string(body),
	}, nil
}

func (s *UnstructuredService) partition(ctx context.Context, filename string, content []byte) ([]byte, error) {
	var requestBody bytes.Buffer
	multipartWriter := multipart.NewWriter(&requestBody)

	// Create form file
	fileWriter, err := multipartWriter.CreateFormFile("files", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %v", err)
	}

	// Write file content
	if _, err = io.Copy(fileWriter, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to write file content: %v", err)
	}

	// Write additional fields
	fields := [][2]string{
		{"strategy", s.cfg.Strategy},
		{"output_format", "application/json"},
	}
	for _, lang := range s.cfg.Languages {
		fields = append(fields, [2]string{"languages", lang})
	}
	for _, f := range fields {
		if err := multipartWriter.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("failed to write %s: %v", f[0], err)
		}
	}

	multipartWriter.Close()

	// Create request
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/general/v0/general", &requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	// Set headers
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", multipartWriter.FormDataContentType())

	// Send request
	resp, err := s.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ocr service error: %s: %s", resp.Status, excerpt(body, 512))
	}

	return body, nil
}

// excerpt shortens body to at most max bytes without splitting a rune.
// Invalid UTF-8 in body is replaced.
func excerpt(body []byte, max int) string {
	s := strings.ToValidUTF8(strings.TrimSpace(string(body)), "\uFFFD")
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}
