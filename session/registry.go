package session

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/mel2oo/tlsprobe/gid"
)

var ErrUnknownProbe = errors.New("unknown or expired probe")

// An allocated probe endpoint waiting for its report to be requested.
type Probe struct {
	ID       gid.ProbeID
	Listener net.Listener
	Created  time.Time
}

// Port the probe listens on, or 0 if it is not a TCP listener.
func (p *Probe) Port() int {
	if addr, ok := p.Listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Tracks allocated probe endpoints by ID. Each probe can be taken exactly
// once; probes not taken within the TTL are closed and forgotten. Safe for
// concurrent use.
type Registry struct {
	ttl    time.Duration
	clock  clockWrapper
	logger *zap.Logger

	mu     sync.Mutex
	probes map[gid.ProbeID]*Probe
}

type Option func(*Registry)

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

func withClock(c clockWrapper) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

func NewRegistry(ttl time.Duration, opts ...Option) *Registry {
	r := &Registry{
		ttl:    ttl,
		clock:  &realClock{},
		logger: zap.NewNop(),
		probes: make(map[gid.ProbeID]*Probe),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Binds an ephemeral TCP port on host and registers it under a fresh ID.
func (r *Registry) Allocate(host string) (*Probe, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to bind probe port")
	}

	p, err := r.Add(l)
	if err != nil {
		l.Close()
		return nil, err
	}
	return p, nil
}

// Registers an already-bound listener under a fresh ID. The registry owns the
// listener from here on, until it is taken.
func (r *Registry) Add(l net.Listener) (*Probe, error) {
	id, err := gid.GenerateProbeID()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate probe ID")
	}

	p := &Probe{ID: id, Listener: l, Created: r.clock.Now()}

	r.mu.Lock()
	r.probes[id] = p
	r.mu.Unlock()

	r.logger.Debug("probe allocated", zap.Stringer("probe_id", id), zap.Stringer("addr", l.Addr()))
	return p, nil
}

// Removes the probe and hands its listener to the caller, who must close it.
func (r *Registry) Take(id gid.ProbeID) (*Probe, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.probes[id]
	if !ok {
		return nil, ErrUnknownProbe
	}
	delete(r.probes, id)
	return p, nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.probes)
}

// IDs of the probes waiting to be taken, oldest first.
func (r *Registry) IDs() []gid.ProbeID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := maps.Keys(r.probes)
	slices.SortFunc(ids, func(a, b gid.ProbeID) bool {
		return r.probes[a].Created.Before(r.probes[b].Created)
	})
	return ids
}

// Closes and forgets probes older than the TTL. Returns how many expired.
func (r *Registry) Expire() int {
	threshold := r.clock.Now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*Probe
	for id, p := range r.probes {
		if p.Created.Before(threshold) {
			expired = append(expired, p)
			delete(r.probes, id)
		}
	}
	r.mu.Unlock()

	for _, p := range expired {
		p.Listener.Close()
		r.logger.Debug("probe expired", zap.Stringer("probe_id", p.ID))
	}
	return len(expired)
}

// Expires probes periodically until ctx is done, then closes all remaining
// probes.
func (r *Registry) Run(ctx context.Context) {
	interval := r.ttl / 4
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.Expire(); n > 0 {
				r.logger.Info("expired unclaimed probes", zap.Int("count", n))
			}
		case <-ctx.Done():
			r.Close()
			return
		}
	}
}

// Closes every registered probe.
func (r *Registry) Close() {
	r.mu.Lock()
	probes := maps.Values(r.probes)
	r.probes = make(map[gid.ProbeID]*Probe)
	r.mu.Unlock()

	for _, p := range probes {
		p.Listener.Close()
	}
}
