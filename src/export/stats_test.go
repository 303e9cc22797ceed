package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"ocrsweep/src/infrastructure/job"
	"ocrsweep/src/storage/postgres/docstatsctrl"
)

type fakeStats struct {
	stats []docstatsctrl.DocStat
	err   error
}

func (f fakeStats) List(ctx context.Context) ([]docstatsctrl.DocStat, error) {
	return f.stats, f.err
}

type fakeJobs struct {
	records  []job.Record
	gotKind  string
	gotLimit int
}

func (f *fakeJobs) List(ctx context.Context, kind string, limit, offset int) ([]job.Record, error) {
	f.gotKind, f.gotLimit = kind, limit
	return f.records, nil
}

func TestWorkbookXLSX(t *testing.T) {
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	stopped := started.Add(time.Minute)
	detail := "ocr: ServiceUnavailable"

	stats := fakeStats{stats: []docstatsctrl.DocStat{
		{Folder: "folderA", Site: "site1", TotalPages: 12, TotalDocs: 1},
		{Folder: "folderB", Site: "site2", TotalPages: 30, TotalDocs: 4},
	}}
	jobs := &fakeJobs{records: []job.Record{
		{ID: "j2", Subject: "2", Kind: job.KindTextract, StartedAt: started, StoppedAt: &stopped, Completed: true, Flagged: true, Error: &detail},
		{ID: "j1", Subject: "1", Kind: job.KindTextract, StartedAt: started},
	}}

	data, err := NewService(stats, jobs, job.KindTextract).WorkbookXLSX(context.Background(), 50)
	if err != nil {
		t.Fatalf("WorkbookXLSX() error = %v", err)
	}
	if jobs.gotKind != job.KindTextract || jobs.gotLimit != 50 {
		t.Errorf("jobs queried with kind=%q limit=%d", jobs.gotKind, jobs.gotLimit)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	folders, err := f.GetRows(FoldersSheet)
	if err != nil {
		t.Fatalf("GetRows(%s) error = %v", FoldersSheet, err)
	}
	if len(folders) != 3 {
		t.Fatalf("folder rows = %d, want 3", len(folders))
	}
	if got := folders[2]; got[0] != "folderB" || got[2] != "30" || got[3] != "4" {
		t.Errorf("folderB row = %v", got)
	}

	rows, err := f.GetRows(JobsSheet)
	if err != nil {
		t.Fatalf("GetRows(%s) error = %v", JobsSheet, err)
	}
	if len(rows) != 3 {
		t.Fatalf("job rows = %d, want 3", len(rows))
	}
	if got := rows[1]; got[0] != "j2" || got[3] != "2024-03-01T12:01:00Z" || got[5] != "TRUE" || got[6] != detail {
		t.Errorf("j2 row = %v", got)
	}
	if got := rows[2]; got[0] != "j1" || got[3] != "" || got[4] != "FALSE" {
		t.Errorf("j1 row = %v", got)
	}
}

func TestWorkbookXLSX_QueryError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewService(fakeStats{err: boom}, &fakeJobs{}, job.KindTextract).WorkbookXLSX(context.Background(), 10)
	if !errors.Is(err, boom) {
		t.Fatalf("WorkbookXLSX() error = %v, want boom", err)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "short", n: 240, want: "short"},
		{in: "abcdefghij", n: 8, want: "abcde..."},
		{in: "a" + strings.Repeat("é", 10), n: 7, want: "aé..."},
		{in: "a" + strings.Repeat("é", 10), n: 8, want: "aéé..."},
	}

	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		if got != tt.want || !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestWriteRow_ReportsInvalidSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeRow(f, "Sheet1", 1, "a", 1); err != nil {
		t.Fatalf("writeRow() error = %v", err)
	}
	if err := writeRow(f, "Missing", 1, "a"); err == nil {
		t.Error("writeRow() on a missing sheet error = nil")
	}
	if err := writeRow(f, "Sheet1", 0, "a"); err == nil {
		t.Error("writeRow() on row 0 error = nil")
	}
}
