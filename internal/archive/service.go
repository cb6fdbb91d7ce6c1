package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/NOIR-Solution/noir-payments/internal/modules/payments"
)

// Service sweeps old operation log rows into an export file. The log table is
// append-only and grows with every gateway call; anything older than the
// cutoff is written out as JSON lines and then removed from the database.
type Service struct {
	db     *gorm.DB
	blob   Blob
	logger *slog.Logger
}

func NewService(db *gorm.DB, blob Blob, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, blob: blob, logger: logger}
}

type SweepResult struct {
	Key     string
	URL     string
	Entries int
}

// SweepBefore exports every operation log entry completed before the cutoff
// and deletes the exported rows. Rows are removed only after the export file
// is stored, so a failed upload leaves the table untouched.
func (s *Service) SweepBefore(ctx context.Context, cutoff time.Time) (SweepResult, error) {
	var entries []payments.OperationLogEntry
	err := s.db.WithContext(ctx).
		Where("completed_at < ?", cutoff).
		Order("started_at ASC").
		Find(&entries).Error
	if err != nil {
		return SweepResult{}, fmt.Errorf("load operation log: %w", err)
	}
	if len(entries) == 0 {
		return SweepResult{}, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	ids := make([]string, 0, len(entries))
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return SweepResult{}, fmt.Errorf("encode entry %s: %w", entries[i].ID, err)
		}
		ids = append(ids, entries[i].ID)
	}

	key := fmt.Sprintf("oplog/%s-%d.jsonl", cutoff.UTC().Format("20060102"), len(ids))
	put, err := s.blob.Put(ctx, &buf, PutInput{Key: key, ContentType: "application/x-ndjson"})
	if err != nil {
		return SweepResult{}, fmt.Errorf("store export: %w", err)
	}

	if err := s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&payments.OperationLogEntry{}).Error; err != nil {
		// the export exists, the rows do not go away: safe to re-run
		return SweepResult{}, fmt.Errorf("delete archived rows: %w", err)
	}

	s.logger.InfoContext(ctx, "operation log archived",
		"key", put.Key, "entries", len(ids), "cutoff", cutoff)
	return SweepResult{Key: put.Key, URL: put.URL, Entries: len(ids)}, nil
}
