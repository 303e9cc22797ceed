package ocrjob

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ocrsweep/src/core/ocr"
	"ocrsweep/src/infrastructure/job"
	"ocrsweep/src/storage/postgres/documentctrl"
	"ocrsweep/src/storage/postgres/docstatsctrl"
)

// memStore is an in-memory Store. InTx restores a snapshot when fn fails.
type memStore struct {
	mu      sync.Mutex
	records map[string]*job.Record
	docs    map[int64]*documentctrl.Document
	stats   map[string]*docstatsctrl.DocStat

	writes  int
	maxOpen int
	failOn  map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[string]*job.Record),
		docs:    make(map[int64]*documentctrl.Document),
		stats:   make(map[string]*docstatsctrl.DocStat),
		failOn:  make(map[string]error),
	}
}

func (m *memStore) addDocument(number int64, link *string, folder, site string) {
	m.docs[number] = &documentctrl.Document{Number: number, PDFLink: link, Folder: folder, Site: site}
}

func link(s string) *string {
	return &s
}

func (m *memStore) Ledger() Ledger         { return m }
func (m *memStore) Backlog() Backlog       { return m }
func (m *memStore) Aggregates() Aggregates { return m }

func (m *memStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	records := make(map[string]job.Record, len(m.records))
	for k, v := range m.records {
		records[k] = *v
	}
	docs := make(map[int64]documentctrl.Document, len(m.docs))
	for k, v := range m.docs {
		docs[k] = *v
	}
	stats := make(map[string]docstatsctrl.DocStat, len(m.stats))
	for k, v := range m.stats {
		stats[k] = *v
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.records = make(map[string]*job.Record, len(records))
		for k, v := range records {
			v := v
			m.records[k] = &v
		}
		m.docs = make(map[int64]*documentctrl.Document, len(docs))
		for k, v := range docs {
			v := v
			m.docs[k] = &v
		}
		m.stats = make(map[string]*docstatsctrl.DocStat, len(stats))
		for k, v := range stats {
			v := v
			m.stats[k] = &v
		}
		return err
	}
	return nil
}

func (m *memStore) fail(op string) error {
	if err, ok := m.failOn[op]; ok {
		return err
	}
	return nil
}

func (m *memStore) openCount(kind string) int {
	n := 0
	for _, r := range m.records {
		if r.Kind == kind && !r.Completed {
			n++
		}
	}
	return n
}

func (m *memStore) HasInFlight(ctx context.Context, kind string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("HasInFlight"); err != nil {
		return false, err
	}
	return m.openCount(kind) > 0, nil
}

func (m *memStore) ListInFlight(ctx context.Context, kind string) ([]job.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []job.Record
	for _, r := range m.records {
		if r.Kind == kind && !r.Completed {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) Open(ctx context.Context, record *job.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("Open"); err != nil {
		return err
	}
	if m.openCount(record.Kind) > 0 {
		return job.ErrInFlight
	}
	r := *record
	m.records[r.ID] = &r
	m.writes++
	if n := m.openCount(record.Kind); n > m.maxOpen {
		m.maxOpen = n
	}
	return nil
}

func (m *memStore) close(id string, at time.Time, flagged bool, detail *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.Completed {
		return job.ErrNotOpen
	}
	r.StoppedAt = &at
	r.Completed = true
	r.Flagged = flagged
	r.Error = detail
	m.writes++
	return nil
}

func (m *memStore) CloseSucceeded(ctx context.Context, id string, stoppedAt time.Time) error {
	if err := m.fail("CloseSucceeded"); err != nil {
		return err
	}
	return m.close(id, stoppedAt, false, nil)
}

func (m *memStore) CloseFailed(ctx context.Context, id string, stoppedAt time.Time, detail string) error {
	return m.close(id, stoppedAt, true, &detail)
}

func (m *memStore) NextPending(ctx context.Context) (*documentctrl.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("NextPending"); err != nil {
		return nil, err
	}
	var numbers []int64
	for n, d := range m.docs {
		if !d.OCRStatus && d.PDFLink != nil && *d.PDFLink != "" {
			numbers = append(numbers, n)
		}
	}
	if len(numbers) == 0 {
		return nil, nil
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	d := *m.docs[numbers[0]]
	return &d, nil
}

func (m *memStore) Routing(ctx context.Context, number int64) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[number]
	if !ok {
		return "", "", documentctrl.ErrDocumentNotFound
	}
	return d.Folder, d.Site, nil
}

func (m *memStore) MarkProcessed(ctx context.Context, number int64, pages int, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("MarkProcessed"); err != nil {
		return err
	}
	d, ok := m.docs[number]
	if !ok || d.OCRStatus {
		return documentctrl.ErrAlreadyProcessed
	}
	d.OCRStatus = true
	d.OCRPages = &pages
	d.OCRContent = &content
	m.writes++
	return nil
}

func (m *memStore) Accumulate(ctx context.Context, folder, site string, pages int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("Accumulate"); err != nil {
		return err
	}
	stat, ok := m.stats[folder]
	if !ok {
		stat = &docstatsctrl.DocStat{Folder: folder, Site: site}
		m.stats[folder] = stat
	}
	stat.TotalPages += int64(pages)
	stat.TotalDocs++
	m.writes++
	return nil
}

func (m *memStore) recordFor(number int64) []job.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	subject := fmt.Sprint(number)
	var out []job.Record
	for _, r := range m.records {
		if r.Subject == subject {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// fakeOCR records requests and answers through fn.
type fakeOCR struct {
	mu    sync.Mutex
	calls []ocr.Request
	fn    func(ctx context.Context, req ocr.Request) (*ocr.Result, error)
}

func (f *fakeOCR) Recognize(ctx context.Context, req ocr.Request) (*ocr.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.fn(ctx, req)
}

func (f *fakeOCR) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func pagesOCR(pages int) *fakeOCR {
	return &fakeOCR{fn: func(ctx context.Context, req ocr.Request) (*ocr.Result, error) {
		return &ocr.Result{TotalPagesProcessed: pages, Content: "<text>"}, nil
	}}
}
