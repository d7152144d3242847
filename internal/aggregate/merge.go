// Package aggregate turns raw per-calendar records into one ordered,
// deduplicated sequence of canonical events for the reporting week.
package aggregate

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	appLog "weeklybrief/internal/log"
	"weeklybrief/internal/model"
)

// Collect fetches every source in order and merges the result. A failure
// of any single source aborts the whole collection.
func Collect(ctx context.Context, p Provider, sourceIDs []string, w Window) ([]model.CanonicalEvent, error) {
	batches := make([][]model.CanonicalEvent, 0, len(sourceIDs))

	for _, id := range sourceIDs {
		raw, err := p.Fetch(ctx, id, w)
		if err != nil {
			return nil, &SourceError{SourceID: id, Err: err}
		}
		events := Normalize(id, raw, w.Location)
		appLog.Info("calendar fetched", "source", id, "raw", len(raw), "kept", len(events))
		batches = append(batches, events)
	}

	merged := Merge(batches...)
	appLog.Info("calendar merge completed", "sources", len(sourceIDs), "events", len(merged))
	return merged, nil
}

// Normalize converts raw records of one source into canonical events in
// loc. Cancelled records are dropped; records whose times cannot be parsed
// are skipped with a warning.
func Normalize(sourceID string, raw []model.RawEvent, loc *time.Location) []model.CanonicalEvent {
	if loc == nil {
		loc = time.Local
	}

	out := make([]model.CanonicalEvent, 0, len(raw))
	for _, r := range raw {
		if strings.EqualFold(strings.TrimSpace(r.Status), model.StatusCancelled) {
			continue
		}
		ev, err := normalizeOne(sourceID, r, loc)
		if err != nil {
			appLog.Warn("skipping malformed event", "source", sourceID, "summary", r.Summary, "err", err)
			continue
		}
		out = append(out, ev)
	}
	return out
}

func normalizeOne(sourceID string, r model.RawEvent, loc *time.Location) (model.CanonicalEvent, error) {
	ev := model.CanonicalEvent{
		SourceID: sourceID,
		Title:    strings.TrimSpace(r.Summary),
		Creator:  strings.TrimSpace(r.Creator),
	}
	if ev.Title == "" {
		ev.Title = model.UntitledEvent
	}

	switch {
	case r.Start.DateTime != "":
		start, err := time.Parse(time.RFC3339, r.Start.DateTime)
		if err != nil {
			return ev, fmt.Errorf("start: %w", err)
		}
		ev.Start = start.In(loc)
		ev.End = ev.Start
		if r.End.DateTime != "" {
			end, err := time.Parse(time.RFC3339, r.End.DateTime)
			if err != nil {
				return ev, fmt.Errorf("end: %w", err)
			}
			ev.End = end.In(loc)
		}

	case r.Start.Date != "":
		// Whole-day records become local midnight so they compare with
		// timed events on the same axis.
		start, err := time.ParseInLocation(model.DateLayout, r.Start.Date, loc)
		if err != nil {
			return ev, fmt.Errorf("start date: %w", err)
		}
		ev.AllDay = true
		ev.Start = start
		ev.End = start.AddDate(0, 0, 1)
		if r.End.Date != "" {
			end, err := time.ParseInLocation(model.DateLayout, r.End.Date, loc)
			if err != nil {
				return ev, fmt.Errorf("end date: %w", err)
			}
			ev.End = end
		}

	default:
		return ev, fmt.Errorf("event has no start time")
	}

	if ev.End.Before(ev.Start) {
		ev.End = ev.Start
	}
	return ev, nil
}

type dedupeKey struct {
	start int64
	title string
}

// Merge concatenates batches in order, stable-sorts by start and drops
// later events that share the exact (start, title) pair of an earlier one.
func Merge(batches ...[]model.CanonicalEvent) []model.CanonicalEvent {
	total := 0
	for _, b := range batches {
		total += len(b)
	}
	all := make([]model.CanonicalEvent, 0, total)
	for _, b := range batches {
		all = append(all, b...)
	}

	slices.SortStableFunc(all, func(a, b model.CanonicalEvent) int {
		return a.Start.Compare(b.Start)
	})

	seen := make(map[dedupeKey]struct{}, len(all))
	out := all[:0]
	for _, ev := range all {
		key := dedupeKey{start: ev.Start.UnixNano(), title: ev.Title}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ev)
	}
	return out
}
