// Package store persists task records with a configured TTL. It is a record of
// what happened, not a coordination mechanism: the in-flight registry is the
// source of truth while a task runs.
package store

import (
	"context"
	"errors"

	"github.com/entari/mjbridge/internal/task"
)

// ErrNotFound is returned when no record exists (or its TTL has lapsed).
var ErrNotFound = errors.New("store: task not found")

type Store interface {
	Save(ctx context.Context, rec task.Record) error
	Get(ctx context.Context, id string) (task.Record, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]task.Record, error)
	ListBy(ctx context.Context, cond task.Condition) ([]task.Record, error)
	Close() error
}

// FindOne returns the first record matching cond, or ErrNotFound.
func FindOne(ctx context.Context, s Store, cond task.Condition) (task.Record, error) {
	recs, err := s.ListBy(ctx, cond)
	if err != nil {
		return task.Record{}, err
	}
	if len(recs) == 0 {
		return task.Record{}, ErrNotFound
	}
	return recs[0], nil
}

func filterRecords(recs []task.Record, cond task.Condition) []task.Record {
	out := recs[:0]
	for _, rec := range recs {
		if cond.MatchRecord(rec) {
			out = append(out, rec)
		}
	}
	return out
}
