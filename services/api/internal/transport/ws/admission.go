package ws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cimillas/panache/services/api/internal/clock"
)

var (
	ErrTooManyConnections = errors.New("too many connections from this address")
	ErrCoolingDown        = errors.New("reconnecting too fast")
)

// Admission caps simultaneous connections per client address and spaces out
// new connections from the same address. Addresses come from client-supplied
// headers and can be spoofed, so this only dampens reconnect storms; nothing
// else relies on it.
type Admission struct {
	maxPerAddr int
	cooldown   time.Duration
	clock      clock.Clock

	mu       sync.Mutex
	active   map[string]int
	lastSeen map[string]time.Time
}

func NewAdmission(maxPerAddr int, cooldown time.Duration, clk clock.Clock) *Admission {
	return &Admission{
		maxPerAddr: maxPerAddr,
		cooldown:   cooldown,
		clock:      clk,
		active:     make(map[string]int),
		lastSeen:   make(map[string]time.Time),
	}
}

// Admit reserves a connection slot for addr. The returned release must be
// called when the connection ends; calling it more than once is safe.
func (a *Admission) Admit(addr string) (func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	if a.cooldown > 0 {
		if last, ok := a.lastSeen[addr]; ok && now.Sub(last) < a.cooldown {
			return nil, ErrCoolingDown
		}
	}
	if a.maxPerAddr > 0 && a.active[addr] >= a.maxPerAddr {
		return nil, ErrTooManyConnections
	}
	a.active[addr]++
	a.lastSeen[addr] = now

	var once sync.Once
	return func() {
		once.Do(func() { a.release(addr) })
	}, nil
}

func (a *Admission) release(addr string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active[addr] <= 1 {
		delete(a.active, addr)
		return
	}
	a.active[addr]--
}

// Active returns the number of open connections admitted for addr.
func (a *Admission) Active(addr string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active[addr]
}

// Reset forgets cooldown history. Open connection counts are kept so slots
// are still returned correctly.
func (a *Admission) Reset() {
	a.mu.Lock()
	a.lastSeen = make(map[string]time.Time)
	a.mu.Unlock()
}

// RunJanitor calls Reset every interval until ctx is done.
func (a *Admission) RunJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.Reset()
		}
	}
}

// ClientAddr picks the address a request is attributed to: the first
// X-Forwarded-For hop, then X-Real-IP, then the peer address.
func ClientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
