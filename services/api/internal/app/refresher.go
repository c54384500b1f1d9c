package app

import (
	"context"
	"fmt"

	"github.com/cimillas/panache/services/api/internal/cache"
	"github.com/cimillas/panache/services/api/internal/domain"
	"github.com/sirupsen/logrus"
)

// Refresher recomputes one cache entry from the durable store and overwrites
// it. It runs after writes that change what the gate sees.
type Refresher struct {
	source TicketSource
	cache  *cache.TicketCache
	tasks  *TaskQueue
	logger logrus.FieldLogger
}

func NewRefresher(source TicketSource, c *cache.TicketCache, tasks *TaskQueue, logger logrus.FieldLogger) *Refresher {
	return &Refresher{
		source: source,
		cache:  c,
		tasks:  tasks,
		logger: logger.WithField("object", "refresher"),
	}
}

// Refresh re-reads owner and replaces its cache entry.
func (r *Refresher) Refresh(ctx context.Context, owner domain.OwnerRef) (domain.TicketRecord, error) {
	var (
		rec domain.TicketRecord
		err error
	)
	switch owner.Kind {
	case domain.TicketKindTeam:
		rec, err = r.source.TeamTicket(ctx, owner.ID)
	case domain.TicketKindConcert:
		rec, err = r.source.ConcertTicket(ctx, owner.ID)
	default:
		return domain.TicketRecord{}, fmt.Errorf("refresh %s: %w", owner, domain.ErrInvalidTicketRecord)
	}
	if err != nil {
		return domain.TicketRecord{}, fmt.Errorf("refresh %s: %w", owner, err)
	}
	if err := r.cache.Put(rec); err != nil {
		return domain.TicketRecord{}, fmt.Errorf("refresh %s: %w", owner, err)
	}
	return rec, nil
}

// Enqueue schedules an asynchronous refresh of owner.
func (r *Refresher) Enqueue(owner domain.OwnerRef) {
	r.tasks.Enqueue(Task{
		Name: "refresh " + owner.String(),
		Run: func(ctx context.Context) error {
			_, err := r.Refresh(ctx, owner)
			return err
		},
	})
}
