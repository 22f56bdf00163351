package service

import (
	"context"
	"log"
	"time"

	"github.com/entari/mjbridge/internal/registry"
	"github.com/entari/mjbridge/internal/task"
)

const sweepInterval = 30 * time.Second

// Sentinel fails tasks whose conversation with the bot outlived the timeout.
// It is the guarantee that every sleeping worker eventually wakes: a task the
// bot never answers gets failed and woken here.
type Sentinel struct {
	reg      *registry.Registry
	timeout  time.Duration
	interval time.Duration
}

func NewSentinel(reg *registry.Registry, timeout time.Duration) *Sentinel {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Sentinel{reg: reg, timeout: timeout, interval: sweepInterval}
}

// Run sweeps until ctx is canceled.
func (s *Sentinel) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *Sentinel) sweep(now time.Time) {
	limit := s.timeout.Milliseconds()
	pending := s.reg.Find(task.Condition{
		Statuses: []task.Status{task.StatusSubmitted, task.StatusInProgress},
	})
	for _, t := range pending {
		start := t.StartTime()
		if start == 0 {
			start = t.SubmitTime
		}
		if now.UnixMilli()-start <= limit {
			continue
		}
		log.Printf("service: task %s timed out after %s", t.ID, s.timeout)
		t.Fail("timeout")
		t.Wake()
	}
}
