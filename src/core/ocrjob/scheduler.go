package ocrjob

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"ocrsweep/src/core/ocr"
	"ocrsweep/src/infrastructure/job"
	"ocrsweep/src/log"
	"ocrsweep/src/storage/postgres/documentctrl"
)

// Outcome classifies what a single invocation did.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	// OutcomeAborted means an error happened before a ledger record existed;
	// it is only visible in the logs.
	OutcomeAborted         Outcome = "aborted"
	OutcomeSkippedInFlight Outcome = "skipped_in_flight"
	OutcomeSkippedNoWork   Outcome = "skipped_no_work"
)

// closeTimeout bounds the failure close, which runs even after ctx is done.
const closeTimeout = 10 * time.Second

type Config struct {
	// Kind tags this job's ledger rows. Defaults to job.KindTextract.
	Kind string
	// Bucket holds the source PDFs.
	Bucket string
	// Force is passed to the OCR client as its reprocessing flag.
	Force bool
	// OCRTimeout bounds the external call; zero means no bound.
	OCRTimeout time.Duration
	// StaleAfter closes in-flight records older than this as abandoned
	// before the guard check; zero disables it. It must exceed OCRTimeout.
	StaleAfter time.Duration
}

// Report describes one invocation.
type Report struct {
	Outcome  Outcome
	JobID    string
	Document int64
	Pages    int
}

// Scheduler processes at most one backlog document per invocation. Mutual
// exclusion between invocations comes only from the ledger: an open record
// of the same kind blocks every other invocation until it is closed.
type Scheduler struct {
	store  Store
	client ocr.Client
	cfg    Config
	logger logr.Logger

	now   func() time.Time
	newID func() string
}

func NewScheduler(store Store, client ocr.Client, cfg Config) *Scheduler {
	if cfg.Kind == "" {
		cfg.Kind = job.KindTextract
	}
	return &Scheduler{
		store:  store,
		client: client,
		cfg:    cfg,
		logger: log.WithName("ocrjob"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Kind returns the ledger tag this scheduler claims with.
func (s *Scheduler) Kind() string {
	return s.cfg.Kind
}

// RunOnce runs one invocation: guard check, work selection, claim, OCR and
// commit. Skips return a nil error. After the claim, any error closes the
// ledger record as flagged and is returned with OutcomeFailed.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	if s.cfg.StaleAfter > 0 {
		if err := s.reapStale(ctx); err != nil {
			return Report{Outcome: OutcomeAborted}, fmt.Errorf("reap stale jobs: %w", err)
		}
	}

	ledger := s.store.Ledger()
	inFlight, err := ledger.HasInFlight(ctx, s.cfg.Kind)
	if err != nil {
		return Report{Outcome: OutcomeAborted}, fmt.Errorf("guard check: %w", err)
	}
	if inFlight {
		return Report{Outcome: OutcomeSkippedInFlight}, nil
	}

	doc, err := s.store.Backlog().NextPending(ctx)
	if err != nil {
		return Report{Outcome: OutcomeAborted}, fmt.Errorf("select document: %w", err)
	}
	if doc == nil {
		return Report{Outcome: OutcomeSkippedNoWork}, nil
	}

	record := &job.Record{
		ID:        s.newID(),
		Subject:   strconv.FormatInt(doc.Number, 10),
		Kind:      s.cfg.Kind,
		StartedAt: s.now(),
	}
	if err := ledger.Open(ctx, record); err != nil {
		if errors.Is(err, job.ErrInFlight) {
			// another invocation claimed between our guard check and insert
			return Report{Outcome: OutcomeSkippedInFlight}, nil
		}
		return Report{Outcome: OutcomeAborted, Document: doc.Number}, fmt.Errorf("claim document %d: %w", doc.Number, err)
	}

	report := Report{JobID: record.ID, Document: doc.Number}
	s.logger.V(1).Info("claimed document", "job_id", record.ID, "doc_number", doc.Number)

	pages, err := s.process(ctx, record, doc)
	if err != nil {
		report.Outcome = OutcomeFailed
		if closeErr := s.closeFailed(ctx, record.ID, err); closeErr != nil {
			return report, fmt.Errorf("%w (ledger close failed: %v)", err, closeErr)
		}
		return report, err
	}

	report.Outcome = OutcomeSucceeded
	report.Pages = pages
	return report, nil
}

// Tick is the timer entry point. It never returns an error or panics; the
// result of the invocation only goes to the log.
func (s *Scheduler) Tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(fmt.Errorf("%v", r), "ocr job invocation panicked")
		}
	}()

	report, err := s.RunOnce(ctx)
	elapsed := time.Since(start)

	switch report.Outcome {
	case OutcomeSucceeded:
		s.logger.Info("content updated successfully",
			"job_id", report.JobID,
			"doc_number", report.Document,
			"pages", report.Pages,
			"elapsed", elapsed)
	case OutcomeFailed:
		s.logger.Error(err, "ocr job failed",
			"job_id", report.JobID,
			"doc_number", report.Document,
			"elapsed", elapsed)
	case OutcomeAborted:
		s.logger.Error(err, "ocr job aborted before claim", "elapsed", elapsed)
	default:
		s.logger.V(1).Info("ocr job skipped", "outcome", report.Outcome)
	}
}

func (s *Scheduler) process(ctx context.Context, record *job.Record, doc *documentctrl.Document) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if doc.PDFLink == nil {
		return 0, fmt.Errorf("%w: document %d has no pdf link", ErrInvalidLocator, doc.Number)
	}
	path, err := ObjectPath(*doc.PDFLink)
	if err != nil {
		return 0, err
	}

	result, err := s.recognize(ctx, path)
	if err != nil {
		return 0, err
	}

	err = s.store.InTx(ctx, func(tx Store) error {
		folder, site, err := tx.Backlog().Routing(ctx, doc.Number)
		if err != nil {
			return err
		}
		if err := tx.Aggregates().Accumulate(ctx, folder, site, result.TotalPagesProcessed); err != nil {
			return err
		}
		if err := tx.Backlog().MarkProcessed(ctx, doc.Number, result.TotalPagesProcessed, result.Content); err != nil {
			return err
		}
		return tx.Ledger().CloseSucceeded(ctx, record.ID, s.now())
	})
	if err != nil {
		return 0, fmt.Errorf("commit results: %w", err)
	}
	return result.TotalPagesProcessed, nil
}

type recognition struct {
	result *ocr.Result
	err    error
}

// recognize calls the OCR client under the configured timeout. The call runs
// in its own goroutine so a client that ignores ctx cannot hold the claim.
func (s *Scheduler) recognize(ctx context.Context, path string) (*ocr.Result, error) {
	if s.cfg.OCRTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.OCRTimeout)
		defer cancel()
	}

	req := ocr.Request{Bucket: s.cfg.Bucket, Path: path, Force: s.cfg.Force}
	done := make(chan recognition, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- recognition{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		result, err := s.client.Recognize(ctx, req)
		done <- recognition{result: result, err: err}
	}()

	var r recognition
	select {
	case r = <-done:
	case <-ctx.Done():
		r = recognition{err: ctx.Err()}
	}

	if r.err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("ocr timed out after %s: %w", s.cfg.OCRTimeout, r.err)
		}
		return nil, fmt.Errorf("ocr: %w", r.err)
	}
	if r.result == nil {
		return nil, errors.New("ocr: empty result")
	}
	if r.result.TotalPagesProcessed < 0 {
		return nil, fmt.Errorf("ocr: negative page count %d", r.result.TotalPagesProcessed)
	}
	return r.result, nil
}

// closeFailed records the failure even when ctx has been cancelled, so a
// shutdown mid-job does not leave the record open. The detail is forced to
// valid UTF-8; postgres rejects anything else in a text column.
func (s *Scheduler) closeFailed(ctx context.Context, id string, cause error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	detail := strings.ToValidUTF8(cause.Error(), "\uFFFD")
	return s.store.Ledger().CloseFailed(ctx, id, s.now(), detail)
}

func (s *Scheduler) reapStale(ctx context.Context) error {
	ledger := s.store.Ledger()
	records, err := ledger.ListInFlight(ctx, s.cfg.Kind)
	if err != nil {
		return err
	}

	cutoff := s.now().Add(-s.cfg.StaleAfter)
	for _, record := range records {
		if record.StartedAt.After(cutoff) {
			continue
		}
		detail := fmt.Sprintf("abandoned: still running after %s", s.cfg.StaleAfter)
		if err := ledger.CloseFailed(ctx, record.ID, s.now(), detail); err != nil {
			if errors.Is(err, job.ErrNotOpen) {
				continue
			}
			return err
		}
		s.logger.Info("closed abandoned job", "job_id", record.ID, "started_at", record.StartedAt)
	}
	return nil
}
