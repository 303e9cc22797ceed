package docstatsctrl

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocStat is the per-folder rollup of processed documents.
type DocStat struct {
	Folder     string `gorm:"primaryKey;column:doc_folder" json:"folder"`
	Site       string `gorm:"column:doc_site" json:"site"`
	TotalPages int64  `gorm:"not null;column:doc_total_pages" json:"total_pages"`
	TotalDocs  int64  `gorm:"not null;column:doc_total_doc" json:"total_docs"`
}

func (DocStat) TableName() string {
	return "doc_stats"
}

type DocStatService struct {
	db *gorm.DB
}

func NewDocStatService(db *gorm.DB) *DocStatService {
	return &DocStatService{db: db}
}

// WithDB returns a copy bound to db, typically a transaction.
func (s *DocStatService) WithDB(db *gorm.DB) *DocStatService {
	return &DocStatService{db: db}
}

// Accumulate adds one processed document with the given page count to the
// folder's rollup in a single insert-or-update statement. site is only
// written when the row is first created.
func (s *DocStatService) Accumulate(ctx context.Context, folder, site string, pages int) error {
	stat := &DocStat{
		Folder:     folder,
		Site:       site,
		TotalPages: int64(pages),
		TotalDocs:  1,
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "doc_folder"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"doc_total_pages": gorm.Expr("doc_stats.doc_total_pages + excluded.doc_total_pages"),
			"doc_total_doc":   gorm.Expr("doc_stats.doc_total_doc + 1"),
		}),
	}).Create(stat)
	if result.Error != nil {
		return fmt.Errorf("failed to accumulate doc stats: %w", result.Error)
	}
	return nil
}

func (s *DocStatService) Get(ctx context.Context, folder string) (*DocStat, error) {
	var stat DocStat
	result := s.db.WithContext(ctx).First(&stat, "doc_folder = ?", folder)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get doc stats: %w", result.Error)
	}
	return &stat, nil
}

func (s *DocStatService) List(ctx context.Context) ([]DocStat, error) {
	var stats []DocStat
	result := s.db.WithContext(ctx).Order("doc_folder ASC").Find(&stats)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list doc stats: %w", result.Error)
	}
	return stats, nil
}
