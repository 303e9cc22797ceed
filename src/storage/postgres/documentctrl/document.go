package documentctrl

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrAlreadyProcessed = errors.New("document already processed")
)

// Document is a backlog item. The documents table belongs to the web
// application; the OCR cron only reads it and fills in the doc_ocr_* columns.
type Document struct {
	Number     int64   `gorm:"primaryKey;autoIncrement:false;column:doc_number" json:"number"`
	PDFLink    *string `gorm:"column:doc_pdf_link" json:"pdf_link,omitempty"` // URL of the source PDF
	OCRStatus  bool    `gorm:"not null;column:doc_ocr_status;index:idx_documents_ocr_status" json:"ocr_status"`
	OCRPages   *int    `gorm:"column:doc_ocr_pages" json:"ocr_pages,omitempty"`
	OCRContent *string `gorm:"column:doc_ocr_content;type:text" json:"-"`
	Folder     string  `gorm:"not null;column:doc_folder" json:"folder"`
	Site       string  `gorm:"column:doc_site" json:"site"`
}

func (Document) TableName() string {
	return "documents"
}

type DocumentService struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewDocumentService(db *gorm.DB) (*DocumentService, error) {
	// Initialize snowflake node
	node, err := snowflake.NewNode(1) // Node number 1 for documents
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %v", err)
	}

	return &DocumentService{
		db:        db,
		snowflake: node,
	}, nil
}

// WithDB returns a copy bound to db, typically a transaction.
func (s *DocumentService) WithDB(db *gorm.DB) *DocumentService {
	return &DocumentService{db: db, snowflake: s.snowflake}
}

func (s *DocumentService) Create(ctx context.Context, pdfLink, folder, site string) (*Document, error) {
	document := &Document{
		Number:  s.snowflake.Generate().Int64(),
		PDFLink: &pdfLink,
		Folder:  folder,
		Site:    site,
	}

	result := s.db.WithContext(ctx).Create(document)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create document: %w", result.Error)
	}

	return document, nil
}

func (s *DocumentService) GetByNumber(ctx context.Context, number int64) (*Document, error) {
	var document Document
	result := s.db.WithContext(ctx).First(&document, "doc_number = ?", number)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document: %w", result.Error)
	}
	return &document, nil
}

func pending(db *gorm.DB) *gorm.DB {
	return db.Where("doc_ocr_status = ? AND doc_pdf_link IS NOT NULL AND doc_pdf_link <> ''", false)
}

// NextPending returns the lowest-numbered unprocessed document that has a
// PDF link, or nil when the backlog is empty.
func (s *DocumentService) NextPending(ctx context.Context) (*Document, error) {
	var documents []Document
	result := pending(s.db.WithContext(ctx).Model(&Document{})).
		Select("doc_number", "doc_pdf_link", "doc_ocr_status", "doc_folder", "doc_site").
		Order("doc_number ASC").
		Limit(1).
		Find(&documents)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to select pending document: %w", result.Error)
	}

	if len(documents) == 0 {
		return nil, nil
	}
	return &documents[0], nil
}

func (s *DocumentService) CountPending(ctx context.Context) (int64, error) {
	var count int64
	result := pending(s.db.WithContext(ctx).Model(&Document{})).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count pending documents: %w", result.Error)
	}
	return count, nil
}

// Routing returns the folder and site a document's results are rolled up under.
func (s *DocumentService) Routing(ctx context.Context, number int64) (string, string, error) {
	var document Document
	result := s.db.WithContext(ctx).
		Select("doc_folder", "doc_site").
		First(&document, "doc_number = ?", number)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", "", fmt.Errorf("%w: %d", ErrDocumentNotFound, number)
		}
		return "", "", fmt.Errorf("failed to get document routing: %w", result.Error)
	}
	return document.Folder, document.Site, nil
}

// MarkProcessed stores the OCR results and flips the processed flag. It only
// matches unprocessed rows so a document is never counted twice.
func (s *DocumentService) MarkProcessed(ctx context.Context, number int64, pages int, content string) error {
	result := s.db.WithContext(ctx).
		Model(&Document{}).
		Where("doc_number = ? AND doc_ocr_status = ?", number, false).
		Updates(map[string]interface{}{
			"doc_ocr_status":  true,
			"doc_ocr_pages":   pages,
			"doc_ocr_content": content,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update document: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrAlreadyProcessed, number)
	}
	return nil
}
