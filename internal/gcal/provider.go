// Package gcal is the Google Calendar source.
package gcal

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"weeklybrief/internal/aggregate"
	"weeklybrief/internal/model"
)

// Kind is the source kind reported by ListSources.
const Kind = "google"

// Provider reads events through the Calendar v3 API.
type Provider struct {
	svc *calendar.Service
}

// New authorizes with auth and builds a Provider. Extra options are
// passed to the calendar service.
func New(ctx context.Context, auth Auth, opts ...option.ClientOption) (*Provider, error) {
	hc, err := auth.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := calendar.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(hc)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return NewProvider(svc), nil
}

func NewProvider(svc *calendar.Service) *Provider {
	return &Provider{svc: svc}
}

// Fetch lists the single (recurrence-expanded) events of calendarID that
// overlap w, across all result pages.
func (p *Provider) Fetch(ctx context.Context, calendarID string, w aggregate.Window) ([]model.RawEvent, error) {
	call := p.svc.Events.List(calendarID).
		TimeMin(w.Start.Format(time.RFC3339)).
		TimeMax(w.End.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250)
	if w.Location != nil {
		call = call.TimeZone(w.Location.String())
	}

	var out []model.RawEvent
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, ev := range page.Items {
			out = append(out, toRawEvent(ev))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListSources returns every calendar the account can read.
func (p *Provider) ListSources(ctx context.Context) ([]model.SourceInfo, error) {
	var out []model.SourceInfo
	err := p.svc.CalendarList.List().Pages(ctx, func(page *calendar.CalendarList) error {
		for _, c := range page.Items {
			name := c.SummaryOverride
			if name == "" {
				name = c.Summary
			}
			if name == "" {
				name = c.Id
			}
			out = append(out, model.SourceInfo{ID: c.Id, Name: name, Kind: Kind})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	return out, nil
}

func toRawEvent(ev *calendar.Event) model.RawEvent {
	raw := model.RawEvent{
		Summary: ev.Summary,
		Status:  ev.Status,
	}
	switch {
	case ev.Creator != nil && ev.Creator.Email != "":
		raw.Creator = ev.Creator.Email
	case ev.Organizer != nil:
		raw.Creator = ev.Organizer.Email
	}
	if ev.Start != nil {
		raw.Start = model.RawTime{DateTime: ev.Start.DateTime, Date: ev.Start.Date}
	}
	if ev.End != nil {
		raw.End = model.RawTime{DateTime: ev.End.DateTime, Date: ev.End.Date}
	}
	return raw
}
