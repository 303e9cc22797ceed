package export

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"ocrsweep/src/infrastructure/job"
	"ocrsweep/src/log"
	"ocrsweep/src/storage/postgres/docstatsctrl"
)

const (
	FoldersSheet = "Folders"
	JobsSheet    = "Jobs"
)

type StatsLister interface {
	List(ctx context.Context) ([]docstatsctrl.DocStat, error)
}

type JobLister interface {
	List(ctx context.Context, kind string, limit, offset int) ([]job.Record, error)
}

// Service renders the folder rollups and recent ledger rows as an XLSX
// workbook.
type Service struct {
	stats StatsLister
	jobs  JobLister
	kind  string
}

func NewService(stats StatsLister, jobs JobLister, kind string) *Service {
	return &Service{stats: stats, jobs: jobs, kind: kind}
}

// WorkbookXLSX returns the workbook bytes. jobLimit caps the Jobs sheet.
func (s *Service) WorkbookXLSX(ctx context.Context, jobLimit int) ([]byte, error) {
	start := time.Now()

	stats, err := s.stats.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("query doc stats: %w", err)
	}
	records, err := s.jobs.List(ctx, s.kind, jobLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	// the default sheet becomes Folders
	if err := f.SetSheetName("Sheet1", FoldersSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(JobsSheet); err != nil {
		return nil, err
	}

	if err := writeRow(f, FoldersSheet, 1, "Folder", "Site", "Total Pages", "Total Documents"); err != nil {
		return nil, err
	}
	for i, st := range stats {
		if err := writeRow(f, FoldersSheet, i+2, st.Folder, st.Site, st.TotalPages, st.TotalDocs); err != nil {
			return nil, err
		}
	}

	if err := writeRow(f, JobsSheet, 1, "Job ID", "Document", "Started", "Stopped", "Completed", "Flagged", "Error"); err != nil {
		return nil, err
	}
	for i, r := range records {
		stopped := ""
		if r.StoppedAt != nil {
			stopped = r.StoppedAt.UTC().Format(time.RFC3339)
		}
		detail := ""
		if r.Error != nil {
			detail = truncate(*r.Error, 240)
		}
		if err := writeRow(f, JobsSheet, i+2, r.ID, r.Subject, r.StartedAt.UTC().Format(time.RFC3339), stopped, r.Completed, r.Flagged, detail); err != nil {
			return nil, err
		}
	}

	_ = f.SetColWidth(FoldersSheet, "A", "B", 24)
	_ = f.SetColWidth(FoldersSheet, "C", "D", 16)
	_ = f.SetColWidth(JobsSheet, "A", "A", 38)
	_ = f.SetColWidth(JobsSheet, "B", "D", 22)
	_ = f.SetColWidth(JobsSheet, "G", "G", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	log.Info("exported workbook",
		"folders", len(stats),
		"jobs", len(records),
		"elapsed", time.Since(start),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

// truncate keeps at most n bytes of s, cutting on a rune boundary.
func truncate(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
