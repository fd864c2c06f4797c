// Package event exposes operator-facing management of the event outbox,
// mainly inspection and requeueing of dead letters.
package event

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wasla/backend/internal/domain/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service reads and repairs outbox entries. Delivery itself is the
// outbox processor's job; this service only changes entry status.
type Service struct {
	repo   shared.OutboxRepository
	logger *zap.Logger
}

func NewService(repo shared.OutboxRepository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// DeadLetterQuery selects a page of the dead letter queue.
type DeadLetterQuery struct {
	Page     int `form:"page,omitempty" binding:"omitempty,min=1"`
	PageSize int `form:"page_size,omitempty" binding:"omitempty,min=1,max=100"`
}

// DeadLetterPage is one page of dead letters plus paging totals.
type DeadLetterPage struct {
	Entries    []*shared.OutboxEntry
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
}

// Stats counts outbox entries per delivery status.
type Stats struct {
	Pending    int64
	Processing int64
	Sent       int64
	Failed     int64
	Dead       int64
	Total      int64
}

// ListDeadLetters returns a page of entries whose retry budget ran out.
func (s *Service) ListDeadLetters(ctx context.Context, q DeadLetterQuery) (*DeadLetterPage, error) {
	page, pageSize := normalizePage(q.Page, q.PageSize)

	entries, total, err := s.repo.FindDead(ctx, page, pageSize)
	if err != nil {
		s.logger.Error("dead letter listing failed", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to retrieve dead letters")
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &DeadLetterPage{
		Entries:    entries,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// GetEntry looks up one outbox entry regardless of status.
func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.logger.Error("outbox lookup failed", zap.Error(err), zap.String("id", id.String()))
		return nil, shared.NewDomainError("ENTRY_NOT_FOUND", "Outbox entry not found")
	}
	if entry == nil {
		return nil, shared.NewDomainError("ENTRY_NOT_FOUND", "Outbox entry not found")
	}
	return entry, nil
}

// RequeueDeadLetter puts a dead entry back in line for delivery with a
// fresh retry budget.
func (s *Service) RequeueDeadLetter(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	entry, err := s.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := entry.ResetForRetry(); err != nil {
		return nil, shared.NewDomainError("INVALID_STATUS", err.Error())
	}

	if err := s.repo.Update(ctx, entry); err != nil {
		s.logger.Error("outbox update failed", zap.Error(err), zap.String("id", id.String()))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to requeue entry")
	}

	s.logger.Info("dead letter requeued",
		zap.String("id", id.String()),
		zap.String("event_type", entry.EventType),
	)
	return entry, nil
}

// RequeueAllDeadLetters sweeps the whole dead letter queue back to
// pending. Entries that fail to reset or persist are skipped, so the
// returned count can be lower than the queue size.
func (s *Service) RequeueAllDeadLetters(ctx context.Context) (int64, error) {
	var count int64
	for page := 1; ; page++ {
		entries, _, err := s.repo.FindDead(ctx, page, maxPageSize)
		if err != nil {
			s.logger.Error("dead letter listing failed", zap.Error(err))
			return count, shared.NewDomainError("INTERNAL_ERROR", "Failed to retrieve dead letters")
		}
		if len(entries) == 0 {
			break
		}

		for _, entry := range entries {
			if err := entry.ResetForRetry(); err != nil {
				continue
			}
			if err := s.repo.Update(ctx, entry); err != nil {
				s.logger.Error("outbox update failed", zap.Error(err), zap.String("id", entry.ID.String()))
				continue
			}
			count++
		}

		if len(entries) < maxPageSize {
			break
		}
	}

	s.logger.Info("dead letters requeued", zap.Int64("count", count))
	return count, nil
}

// GetStats tallies entries per status.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("outbox stats failed", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to get outbox stats")
	}

	stats := &Stats{
		Pending:    counts[shared.OutboxStatusPending],
		Processing: counts[shared.OutboxStatusProcessing],
		Sent:       counts[shared.OutboxStatusSent],
		Failed:     counts[shared.OutboxStatusFailed],
		Dead:       counts[shared.OutboxStatusDead],
	}
	stats.Total = stats.Pending + stats.Processing + stats.Sent + stats.Failed + stats.Dead
	return stats, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = defaultPageSize
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}
	return page, pageSize
}
