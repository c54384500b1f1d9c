// Package cache holds the in-memory projection of every issued ticket, keyed
// by the code printed on the pass. It is a disposable view: it can be dropped
// and rebuilt from the durable store at any time.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/cimillas/panache/services/api/internal/domain"
	"github.com/cimillas/panache/services/api/internal/ticketcodec"
)

// TicketCache maps ticket codes to encoded ticket records. A secondary index
// maps the durable owner (team or concert ticket) to its code so the toggle
// path never scans the whole map.
//
// The cache is only servable once Ready reports true; a rebuild drops
// readiness until the new generation is swapped in.
type TicketCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
	owners  map[domain.OwnerRef]string
	rebuild *Snapshot
	ready   atomic.Bool
}

func New() *TicketCache {
	return &TicketCache{
		entries: make(map[string][]byte),
		owners:  make(map[domain.OwnerRef]string),
	}
}

// Ready reports whether hydration has completed.
func (c *TicketCache) Ready() bool {
	return c.ready.Load()
}

// Get returns the encoded record for code.
func (c *TicketCache) Get(code string) ([]byte, bool) {
	c.mu.RLock()
	blob, ok := c.entries[code]
	c.mu.RUnlock()
	return blob, ok
}

// Lookup returns the decoded record for code. A decode failure means the
// cache holds a corrupt blob and is surfaced to the caller.
func (c *TicketCache) Lookup(code string) (domain.TicketRecord, bool, error) {
	blob, ok := c.Get(code)
	if !ok {
		return domain.TicketRecord{}, false, nil
	}
	rec, err := ticketcodec.Decode(blob)
	if err != nil {
		return domain.TicketRecord{}, true, err
	}
	return rec, true, nil
}

// LookupOwner resolves a team or concert ticket through the owner index.
func (c *TicketCache) LookupOwner(owner domain.OwnerRef) (domain.TicketRecord, bool, error) {
	code, ok := c.CodeFor(owner)
	if !ok {
		return domain.TicketRecord{}, false, nil
	}
	return c.Lookup(code)
}

// CodeFor returns the ticket code cached for owner.
func (c *TicketCache) CodeFor(owner domain.OwnerRef) (string, bool) {
	c.mu.RLock()
	code, ok := c.owners[owner]
	c.mu.RUnlock()
	return code, ok
}

// Put encodes rec and overwrites whatever is cached under rec.Code.
func (c *TicketCache) Put(rec domain.TicketRecord) error {
	blob, err := ticketcodec.Encode(rec)
	if err != nil {
		return err
	}
	c.mu.Lock()
	put(c.entries, c.owners, rec.Owner(), rec.Code, blob)
	if c.rebuild != nil {
		c.rebuild.overlay(rec.Owner(), rec.Code, blob)
	}
	c.mu.Unlock()
	return nil
}

// Update applies fn to the cached record for code as one atomic
// read-modify-write. If fn returns an error nothing is written.
func (c *TicketCache) Update(code string, fn func(rec *domain.TicketRecord) error) (domain.TicketRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	blob, ok := c.entries[code]
	if !ok {
		return domain.TicketRecord{}, domain.ErrTicketNotFound
	}
	rec, err := ticketcodec.Decode(blob)
	if err != nil {
		return domain.TicketRecord{}, err
	}
	if err := fn(&rec); err != nil {
		return rec, err
	}
	blob, err = ticketcodec.Encode(rec)
	if err != nil {
		return domain.TicketRecord{}, err
	}
	put(c.entries, c.owners, rec.Owner(), rec.Code, blob)
	if c.rebuild != nil {
		c.rebuild.overlay(rec.Owner(), rec.Code, blob)
	}
	return rec, nil
}

// Clear drops every entry and marks the cache not ready.
func (c *TicketCache) Clear() {
	c.mu.Lock()
	c.ready.Store(false)
	c.entries = make(map[string][]byte)
	c.owners = make(map[domain.OwnerRef]string)
	c.mu.Unlock()
}

// Len is the number of cached tickets.
func (c *TicketCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// BeginRebuild marks the cache not ready and returns an empty snapshot for a
// hydrator to fill. Puts made while the rebuild runs are recorded in the
// snapshot too so the swap does not lose them.
func (c *TicketCache) BeginRebuild() *Snapshot {
	snap := newSnapshot()
	c.mu.Lock()
	c.ready.Store(false)
	c.rebuild = snap
	c.mu.Unlock()
	return snap
}

// Commit swaps a completed snapshot in and marks the cache ready. Readers see
// either the old generation or the new one, never a partial map.
func (c *TicketCache) Commit(snap *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for owner, late := range snap.late {
		put(snap.entries, snap.owners, owner, late.code, late.blob)
	}
	c.entries = snap.entries
	c.owners = snap.owners
	if c.rebuild == snap {
		c.rebuild = nil
	}
	c.ready.Store(true)
}

// Abort abandons a rebuild. The cache stays not ready.
func (c *TicketCache) Abort(snap *Snapshot) {
	c.mu.Lock()
	if c.rebuild == snap {
		c.rebuild = nil
	}
	c.mu.Unlock()
}

func put(entries map[string][]byte, owners map[domain.OwnerRef]string, owner domain.OwnerRef, code string, blob []byte) {
	if prev, ok := owners[owner]; ok && prev != code {
		delete(entries, prev)
	}
	entries[code] = blob
	owners[owner] = code
}

// Snapshot is a cache generation under construction.
type Snapshot struct {
	entries map[string][]byte
	owners  map[domain.OwnerRef]string
	late    map[domain.OwnerRef]lateEntry
}

type lateEntry struct {
	code string
	blob []byte
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		entries: make(map[string][]byte),
		owners:  make(map[domain.OwnerRef]string),
		late:    make(map[domain.OwnerRef]lateEntry),
	}
}

// Put adds a hydrated record. Snapshots are filled by a single hydrator
// goroutine; only overlay is called concurrently, under the cache lock.
func (s *Snapshot) Put(rec domain.TicketRecord) error {
	blob, err := ticketcodec.Encode(rec)
	if err != nil {
		return err
	}
	put(s.entries, s.owners, rec.Owner(), rec.Code, blob)
	return nil
}

func (s *Snapshot) Len() int { return len(s.entries) }

func (s *Snapshot) overlay(owner domain.OwnerRef, code string, blob []byte) {
	s.late[owner] = lateEntry{code: code, blob: blob}
}
