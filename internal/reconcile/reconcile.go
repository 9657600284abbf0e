// Package reconcile keeps a calendar in step with the live alert set.
//
// A pass lists the events this tool owns, diffs them against the alerts
// and issues creates, updates and deletes. There is no locking: two passes
// running at once against one calendar can both create an event for a new
// alert. The next pass deletes such duplicates.
package reconcile

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"mbtalerts/internal/calendar"
	appLog "mbtalerts/internal/log"
	"mbtalerts/internal/mapper"
	"mbtalerts/internal/model"
)

// AlertSource supplies the live alert snapshot for one pass.
type AlertSource interface {
	Alerts(ctx context.Context) ([]model.Alert, error)
}

type Create struct {
	AlertID string
	Payload calendar.Payload
}

type Update struct {
	AlertID string
	EventID string
	Payload calendar.Payload
}

type Delete struct {
	AlertID string
	EventID string
	// Duplicate is set when the event is a second owned event for an alert
	// that already has one.
	Duplicate bool
}

// Plan is the outcome of diffing alerts against owned events.
type Plan struct {
	Creates []Create
	Updates []Update
	Deletes []Delete
	// Skipped lists alert ids left out because of their effect.
	Skipped []string
}

// Empty reports whether applying p would not touch the calendar.
func (p Plan) Empty() bool {
	return len(p.Creates) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0
}

// Counts sizes each part of a plan.
type Counts struct {
	Skipped int
	Creates int
	Updates int
	Deletes int
}

// LogValue groups the counts under one log key.
func (c Counts) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("skipped", c.Skipped),
		slog.Int("creates", c.Creates),
		slog.Int("updates", c.Updates),
		slog.Int("deletes", c.Deletes),
	)
}

func (p Plan) Counts() Counts {
	return Counts{
		Skipped: len(p.Skipped),
		Creates: len(p.Creates),
		Updates: len(p.Updates),
		Deletes: len(p.Deletes),
	}
}

// Result counts the operations that completed.
type Result struct {
	Alerts  int `json:"alerts"`
	Skipped int `json:"skipped"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// Reconciler computes and applies plans. Skip holds effect codes, in
// model.NormalizeEffect form, that are never mirrored. Concurrency <= 1
// applies operations one by one.
type Reconciler struct {
	Mapper      mapper.Mapper
	Skip        map[string]bool
	Concurrency int
}

// Plan diffs alerts against events. Events without the ownership tag are
// ignored. Alerts keep their feed order; deletes are ordered by alert id.
func (r *Reconciler) Plan(alerts []model.Alert, events []calendar.Event) Plan {
	var plan Plan

	owned := make(map[string]string, len(events))
	for _, e := range events {
		alertID, ok := e.AlertID()
		if !ok {
			continue
		}
		if _, dup := owned[alertID]; dup {
			plan.Deletes = append(plan.Deletes, Delete{AlertID: alertID, EventID: e.ID, Duplicate: true})
			continue
		}
		owned[alertID] = e.ID
	}

	seen := make(map[string]bool, len(alerts))
	for _, a := range alerts {
		if seen[a.ID] {
			appLog.Debug("ignoring repeated alert id", "alert_id", a.ID)
			continue
		}
		seen[a.ID] = true

		if r.Skips(a.Effect) {
			plan.Skipped = append(plan.Skipped, a.ID)
			continue
		}

		payload := r.Mapper.ToEvent(a)
		if eventID, ok := owned[a.ID]; ok {
			plan.Updates = append(plan.Updates, Update{AlertID: a.ID, EventID: eventID, Payload: payload})
		} else {
			plan.Creates = append(plan.Creates, Create{AlertID: a.ID, Payload: payload})
		}
	}

	var stale []Delete
	for alertID, eventID := range owned {
		if !seen[alertID] {
			stale = append(stale, Delete{AlertID: alertID, EventID: eventID})
		}
	}
	slices.SortFunc(stale, func(a, b Delete) int { return cmp.Compare(a.AlertID, b.AlertID) })
	plan.Deletes = append(plan.Deletes, stale...)

	return plan
}

// Skips reports whether alerts with this effect are left out of the
// calendar.
func (r *Reconciler) Skips(effect string) bool {
	return r.Skip[model.NormalizeEffect(effect)]
}

// Apply executes p against svc: deletes, then creates, then updates. The
// first failure stops further operations from being issued and is
// returned; operations that already completed are not rolled back.
func (r *Reconciler) Apply(ctx context.Context, svc calendar.Service, p Plan) (Result, error) {
	res := Result{Skipped: len(p.Skipped)}

	n, err := run(ctx, r.Concurrency, p.Deletes, func(ctx context.Context, d Delete) error {
		appLog.Info("deleting event", "alert_id", d.AlertID, "event_id", d.EventID, "duplicate", d.Duplicate)
		if err := svc.Delete(ctx, d.EventID); err != nil {
			return fmt.Errorf("delete event %s for alert %s: %w", d.EventID, d.AlertID, err)
		}
		return nil
	})
	res.Deleted = n
	if err != nil {
		return res, err
	}

	n, err = run(ctx, r.Concurrency, p.Creates, func(ctx context.Context, c Create) error {
		appLog.Info("creating event", "alert_id", c.AlertID, "summary", c.Payload.Summary)
		eventID, err := svc.Create(ctx, c.Payload)
		if err != nil {
			return fmt.Errorf("create event for alert %s: %w", c.AlertID, err)
		}
		appLog.Debug("created event", "alert_id", c.AlertID, "event_id", eventID)
		return nil
	})
	res.Created = n
	if err != nil {
		return res, err
	}

	n, err = run(ctx, r.Concurrency, p.Updates, func(ctx context.Context, u Update) error {
		appLog.Debug("updating event", "alert_id", u.AlertID, "event_id", u.EventID, "summary", u.Payload.Summary)
		if err := svc.Update(ctx, u.EventID, u.Payload); err != nil {
			return fmt.Errorf("update event %s for alert %s: %w", u.EventID, u.AlertID, err)
		}
		return nil
	})
	res.Updated = n
	return res, err
}

// Sync runs one full pass. A feed or listing failure aborts before any
// write, so the calendar is never diffed against a partial view.
func (r *Reconciler) Sync(ctx context.Context, src AlertSource, svc calendar.Service) (Result, error) {
	alerts, err := src.Alerts(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch alerts: %w", err)
	}

	events, err := svc.List(ctx)
	if err != nil {
		return Result{Alerts: len(alerts)}, fmt.Errorf("list calendar events: %w", err)
	}
	appLog.Debug("listed owned events", "events", len(events), "alerts", len(alerts))

	plan := r.Plan(alerts, events)
	appLog.Info("reconciliation plan", "alerts", len(alerts), "plan", plan.Counts())

	res, err := r.Apply(ctx, svc, plan)
	res.Alerts = len(alerts)
	return res, err
}

// run calls fn for every item with at most limit calls in flight and
// returns how many succeeded. After the first error no new calls start.
func run[T any](ctx context.Context, limit int, items []T, fn func(context.Context, T) error) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	if limit < 1 {
		limit = 1
	}

	done := make([]bool, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(gctx, item); err != nil {
				return err
			}
			done[i] = true
			return nil
		})
	}
	err := g.Wait()

	n := 0
	for _, ok := range done {
		if ok {
			n++
		}
	}
	if err == nil {
		err = ctx.Err()
	}
	return n, err
}
