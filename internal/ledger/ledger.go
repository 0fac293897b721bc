// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ledger

import (
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// EventKind enumerates the task-group lifecycle transitions the
// ledger records.
type EventKind string

const (
	EventGroupPlanned       EventKind = "group_planned"
	EventWorkerStarted      EventKind = "worker_started"
	EventElementConstructed EventKind = "element_constructed"
	EventStepError          EventKind = "step_error"
	EventFinalizerRan       EventKind = "finalizer_ran"
	EventFinalizerTimedOut  EventKind = "finalizer_timed_out"
	EventGroupDrained       EventKind = "group_drained"
)

// Event is one recorded lifecycle transition.
type Event struct {
	ID         int64     `db:"id"`
	TaskID     string    `db:"task_id"`
	GroupID    string    `db:"group_id"`
	Kind       string    `db:"kind"`
	Detail     string    `db:"detail"`
	OccurredAt time.Time `db:"occurred_at"`
}

// Record appends one lifecycle event to the ledger.
func (s *Store) Record(groupID, taskID string, kind EventKind, detail string) error {
	query, args, err := sq.Insert("events").
		Columns("task_id", "group_id", "kind", "detail", "occurred_at").
		Values(taskID, groupID, string(kind), detail, time.Now().UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("ledger: building insert: %w", err)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("ledger: recording event: %w", err)
	}
	return nil
}

// History returns every recorded event for a task group, oldest first.
func (s *Store) History(groupID string) ([]Event, error) {
	query, args, err := sq.Select("id", "task_id", "group_id", "kind", "detail", "occurred_at").
		From("events").
		Where(sq.Eq{"group_id": groupID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ledger: building query: %w", err)
	}

	var events []Event
	if err := s.db.Select(&events, query, args...); err != nil {
		return nil, fmt.Errorf("ledger: querying history: %w", err)
	}
	return events, nil
}

// RecentErrors returns the most recent step_error events across every
// group, newest first, capped at limit.
func (s *Store) RecentErrors(limit int) ([]Event, error) {
	query, args, err := sq.Select("id", "task_id", "group_id", "kind", "detail", "occurred_at").
		From("events").
		Where(sq.Eq{"kind": string(EventStepError)}).
		OrderBy("id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ledger: building query: %w", err)
	}

	var events []Event
	if err := s.db.Select(&events, query, args...); err != nil {
		return nil, fmt.Errorf("ledger: querying recent errors: %w", err)
	}
	return events, nil
}
