package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cimillas/panache/services/api/internal/cache"
	"github.com/cimillas/panache/services/api/internal/domain"
	"github.com/sirupsen/logrus"
)

// TicketSource reads ticket projections from the durable store. Paged reads
// use a strictly increasing id cursor.
type TicketSource interface {
	TeamTicketsAfter(ctx context.Context, afterID int64, limit int) ([]domain.TicketRecord, error)
	ConcertTicketsAfter(ctx context.Context, afterID int64, limit int) ([]domain.TicketRecord, error)
	TeamTicket(ctx context.Context, teamID int64) (domain.TicketRecord, error)
	ConcertTicket(ctx context.Context, ticketID int64) (domain.TicketRecord, error)
}

const defaultChunkSize = 500

// ErrHydrationInProgress is returned when a second hydration is requested
// while one is running.
var ErrHydrationInProgress = errors.New("hydration already in progress")

// Hydrator bulk-loads the ticket cache. The cache is not ready until a full
// pass succeeds; a failed pass leaves it not ready.
type Hydrator struct {
	source    TicketSource
	cache     *cache.TicketCache
	logger    logrus.FieldLogger
	chunkSize int
	onReady   []func()

	running sync.Mutex
}

type HydratorOption func(*Hydrator)

// WithChunkSize overrides how many tickets are fetched per page.
func WithChunkSize(n int) HydratorOption {
	return func(h *Hydrator) {
		if n > 0 {
			h.chunkSize = n
		}
	}
}

func NewHydrator(source TicketSource, c *cache.TicketCache, logger logrus.FieldLogger, opts ...HydratorOption) *Hydrator {
	h := &Hydrator{
		source:    source,
		cache:     c,
		logger:    logger.WithField("object", "hydrator"),
		chunkSize: defaultChunkSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnReady registers fn to run after every successful hydration.
func (h *Hydrator) OnReady(fn func()) {
	h.running.Lock()
	defer h.running.Unlock()
	h.onReady = append(h.onReady, fn)
}

// Run rebuilds the cache from scratch. Any chunk failure aborts the whole
// pass; partial results are never exposed.
func (h *Hydrator) Run(ctx context.Context) error {
	if !h.running.TryLock() {
		return ErrHydrationInProgress
	}
	defer h.running.Unlock()

	start := time.Now()
	snap := h.cache.BeginRebuild()

	teams, cursor, err := h.load(ctx, snap, h.source.TeamTicketsAfter)
	if err != nil {
		return h.abort(snap, "team", teams, cursor, err)
	}
	concerts, cursor, err := h.load(ctx, snap, h.source.ConcertTicketsAfter)
	if err != nil {
		return h.abort(snap, "concert", concerts, cursor, err)
	}

	h.cache.Commit(snap)
	h.logger.WithFields(logrus.Fields{
		"teams":    teams,
		"concerts": concerts,
		"entries":  h.cache.Len(),
		"duration": time.Since(start).String(),
	}).Info("ticket cache hydrated")

	for _, fn := range h.onReady {
		fn()
	}
	return nil
}

// abort drops the snapshot and logs the cause. The cache stays not ready and
// every scan is refused until a later run succeeds.
func (h *Hydrator) abort(snap *cache.Snapshot, kind string, loaded int, cursor int64, err error) error {
	h.cache.Abort(snap)
	h.logger.WithError(err).WithFields(logrus.Fields{
		"fatal":  true,
		"kind":   kind,
		"loaded": loaded,
		"cursor": cursor,
		"chunk":  h.chunkSize,
	}).Error("ticket cache hydration aborted")
	return fmt.Errorf("hydrate %s tickets: %w", kind, err)
}

type pageFunc func(ctx context.Context, afterID int64, limit int) ([]domain.TicketRecord, error)

func (h *Hydrator) load(ctx context.Context, snap *cache.Snapshot, page pageFunc) (int, int64, error) {
	var cursor int64
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, cursor, err
		}
		chunk, err := page(ctx, cursor, h.chunkSize)
		if err != nil {
			return total, cursor, fmt.Errorf("fetch chunk after id %d: %w", cursor, err)
		}
		for _, rec := range chunk {
			if rec.ID <= cursor {
				return total, cursor, fmt.Errorf("cursor did not advance: id %d after %d", rec.ID, cursor)
			}
			if err := snap.Put(rec); err != nil {
				return total, cursor, fmt.Errorf("cache ticket %s: %w", rec.Code, err)
			}
			cursor = rec.ID
			total++
		}
		if len(chunk) < h.chunkSize {
			return total, cursor, nil
		}
	}
}
