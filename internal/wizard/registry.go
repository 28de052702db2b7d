package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/ridepost/internal/domain"
)

// DefaultIdleTimeout is how long a wizard may sit untouched before Sweep
// abandons it.
const DefaultIdleTimeout = 30 * time.Minute

// Registry keeps the live wizards of all sessions in memory, keyed by id.
type Registry struct {
	deps     Deps
	defaults Session
	idle     time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	wizards map[uuid.UUID]*Controller
}

// NewRegistry constructs a Registry. defaults supplies every Session field
// except OwnerID, Language and Region, which come from Start.
func NewRegistry(deps Deps, defaults Session, idle time.Duration) *Registry {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if defaults.Now == nil {
		defaults.Now = time.Now
	}
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Registry{
		deps:     deps,
		defaults: defaults,
		idle:     idle,
		log:      deps.Log,
		wizards:  map[uuid.UUID]*Controller{},
	}
}

// Start opens a new wizard for owner.
func (r *Registry) Start(owner uuid.UUID, language, region string) (uuid.UUID, *Controller) {
	c := New(r.deps, r.session(owner, language, region))
	return r.add(c), c
}

// Resume opens a wizard from a saved draft. The error wraps
// domain.ErrDraftReset when the draft could not be resumed at stage; the
// wizard is registered either way.
func (r *Registry) Resume(owner uuid.UUID, language, region string, draft domain.TripDraft, at Stage) (uuid.UUID, *Controller, error) {
	c, err := Resume(r.deps, r.session(owner, language, region), draft, at)
	return r.add(c), c, err
}

// Get returns the wizard with id, or domain.ErrNotFound.
func (r *Registry) Get(id uuid.UUID) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.wizards[id]
	if !ok {
		return nil, fmt.Errorf("wizard.Registry.Get: %w: wizard %s", domain.ErrNotFound, id)
	}
	return c, nil
}

// Abandon abandons and forgets the wizard with id.
func (r *Registry) Abandon(id uuid.UUID) error {
	r.mu.Lock()
	c, ok := r.wizards[id]
	delete(r.wizards, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("wizard.Registry.Abandon: %w: wizard %s", domain.ErrNotFound, id)
	}
	return c.Abandon()
}

// Len returns the number of registered wizards.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.wizards)
}

// Sweep abandons and forgets every wizard idle for longer than the idle
// timeout, including finished ones kept around for their last snapshot.
// It returns how many were removed.
func (r *Registry) Sweep() int {
	now := r.defaults.Now()

	r.mu.Lock()
	var expired []*Controller
	for id, c := range r.wizards {
		if now.Sub(c.LastActive()) > r.idle {
			expired = append(expired, c)
			delete(r.wizards, id)
		}
	}
	r.mu.Unlock()

	for _, c := range expired {
		_ = c.Abandon()
	}
	if len(expired) > 0 {
		r.log.Info("idle wizards swept", "count", len(expired))
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done, then abandons every wizard.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	all := r.wizards
	r.wizards = map[uuid.UUID]*Controller{}
	r.mu.Unlock()

	for _, c := range all {
		_ = c.Abandon()
	}
}

func (r *Registry) add(c *Controller) uuid.UUID {
	id := uuid.New()
	r.mu.Lock()
	r.wizards[id] = c
	r.mu.Unlock()
	return id
}

func (r *Registry) session(owner uuid.UUID, language, region string) Session {
	s := r.defaults
	s.OwnerID = owner
	if language != "" {
		s.Language = language
	}
	if region != "" {
		s.Region = region
	}
	return s
}
