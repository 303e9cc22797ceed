package ocr

import "context"

// Request addresses a source document in the object store.
type Request struct {
	Bucket string
	Path   string
	// Force asks the recognizer to run OCR again even if it holds a result.
	Force bool
}

// Result is what the OCR step produced for one document.
type Result struct {
	TotalPagesProcessed int    `json:"total_pages_processed"`
	Content             string `json:"content"`
}

// Client is the boundary to the external recognition service. Any failure is
// reported as an error with a human-readable message.
type Client interface {
	Recognize(ctx context.Context, req Request) (*Result, error)
}
