package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"weeklybrief/internal/model"
)

// Window is the time range a run reports on, in the run's timezone.
type Window struct {
	Start    time.Time
	End      time.Time
	Location *time.Location
}

// Provider is a calendar source. Fetch returns the raw records of one
// calendar that overlap the window.
type Provider interface {
	Fetch(ctx context.Context, sourceID string, w Window) ([]model.RawEvent, error)
}

// Lister is implemented by providers that can enumerate their calendars.
type Lister interface {
	ListSources(ctx context.Context) ([]model.SourceInfo, error)
}

// SourceError identifies the calendar whose fetch failed.
type SourceError struct {
	SourceID string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("failed to fetch events from calendar %s: %v", e.SourceID, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// ErrUnknownSource is returned by Router for IDs nobody registered.
var ErrUnknownSource = errors.New("no provider registered for calendar")

// Router dispatches each source ID to the provider that owns it, so one
// run can mix Google and ICS calendars.
type Router struct {
	order     []Provider
	providers map[string]Provider
}

func NewRouter() *Router {
	return &Router{providers: make(map[string]Provider)}
}

// Add registers p as the provider for sourceID.
func (r *Router) Add(sourceID string, p Provider) {
	r.providers[sourceID] = p
	for _, known := range r.order {
		if known == p {
			return
		}
	}
	r.order = append(r.order, p)
}

func (r *Router) Fetch(ctx context.Context, sourceID string, w Window) ([]model.RawEvent, error) {
	p, ok := r.providers[sourceID]
	if !ok {
		return nil, ErrUnknownSource
	}
	return p.Fetch(ctx, sourceID, w)
}

// ListSources concatenates the listings of every registered provider that
// supports listing, in registration order.
func (r *Router) ListSources(ctx context.Context) ([]model.SourceInfo, error) {
	var out []model.SourceInfo
	for _, p := range r.order {
		l, ok := p.(Lister)
		if !ok {
			continue
		}
		infos, err := l.ListSources(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, infos...)
	}
	return out, nil
}
