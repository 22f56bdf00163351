package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/entari/mjbridge/internal/task"
)

func imagineRecord(id, prompt string) task.Record {
	tk := task.New(task.ActionImagine)
	tk.SetPrompts(prompt, prompt)
	rec := tk.Record()
	rec.ID = id
	rec.FinalPrompt = task.FormatFinalPrompt(id, prompt)
	return rec
}

func TestMemorySaveGetDelete(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	defer s.Close()
	ctx := context.Background()

	rec := imagineRecord("1", "cat")
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Get(ctx, "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FinalPrompt != rec.FinalPrompt {
		t.Fatalf("record lost final prompt: %+v", got)
	}

	if err := s.Delete(ctx, "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	s := NewMemoryStore(20 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	if err := s.Save(ctx, imagineRecord("1", "cat")); err != nil {
		t.Fatalf("save: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := s.Get(ctx, "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired record to be gone, got %v", err)
	}
	recs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected empty list, got %d", len(recs))
	}
}

func TestMemoryListByAndFindOne(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	defer s.Close()
	ctx := context.Background()

	a := imagineRecord("1", "cat")
	a.Description = "/up 42 U2"
	b := imagineRecord("2", "dog")
	for _, rec := range []task.Record{a, b} {
		if err := s.Save(ctx, rec); err != nil {
			t.Fatalf("save %s: %v", rec.ID, err)
		}
	}

	recs, err := s.ListBy(ctx, task.Condition{Description: "/up 42 U2"})
	if err != nil {
		t.Fatalf("listby: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "1" {
		t.Fatalf("unexpected listby result: %+v", recs)
	}

	if _, err := FindOne(ctx, s, task.Condition{Description: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from FindOne, got %v", err)
	}
	rec, err := FindOne(ctx, s, task.Condition{ID: "2"})
	if err != nil || rec.ID != "2" {
		t.Fatalf("findone: %v %+v", err, rec)
	}
}
