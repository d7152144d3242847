// Package ics is a calendar source for ICS subscription URLs: fetch with a
// disk cache, parse VEVENTs and expand recurrences into the week.
package ics

import (
	"context"
	"fmt"

	"weeklybrief/internal/aggregate"
	"weeklybrief/internal/model"
)

// Kind is the source kind reported by ListSources.
const Kind = "ics"

// Provider serves the configured ICS feeds by calendar ID.
type Provider struct {
	fetcher *Fetcher
	feeds   []Feed
	byID    map[string]Feed
}

// NewProvider returns a Provider for feeds. IDs must be unique.
func NewProvider(fetcher *Fetcher, feeds []Feed) (*Provider, error) {
	p := &Provider{fetcher: fetcher, byID: make(map[string]Feed, len(feeds))}
	for _, f := range feeds {
		if _, dup := p.byID[f.ID]; dup {
			return nil, fmt.Errorf("duplicate ics calendar id %q", f.ID)
		}
		p.byID[f.ID] = f
		p.feeds = append(p.feeds, f)
	}
	return p, nil
}

// Fetch returns the raw records of one feed overlapping w.
func (p *Provider) Fetch(ctx context.Context, sourceID string, w aggregate.Window) ([]model.RawEvent, error) {
	feed, ok := p.byID[sourceID]
	if !ok {
		return nil, aggregate.ErrUnknownSource
	}

	res, err := p.fetcher.Fetch(ctx, feed)
	if err != nil {
		return nil, err
	}

	events, err := parseCalendar(feed.ID, res.Body, w.Location)
	if err != nil {
		return nil, err
	}
	return expand(events, expandWindow{Start: w.Start, End: w.End, Location: w.Location})
}

// ListSources reports the configured feeds; ICS has no account to query.
func (p *Provider) ListSources(context.Context) ([]model.SourceInfo, error) {
	out := make([]model.SourceInfo, 0, len(p.feeds))
	for _, f := range p.feeds {
		name := f.Name
		if name == "" {
			name = redactURL(f.URL)
		}
		out = append(out, model.SourceInfo{ID: f.ID, Name: name, Kind: Kind})
	}
	return out, nil
}
