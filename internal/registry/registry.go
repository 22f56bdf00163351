// Package registry tracks the set of in-flight tasks. It is the single shared
// structure between the execution workers, the correlation engine and the
// timeout sweep; size is bounded by the executor (pool + queue).
package registry

import (
	"sync"

	"github.com/entari/mjbridge/internal/task"
)

type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*task.Task
}

func New() *Registry {
	return &Registry{tasks: make(map[string]*task.Task)}
}

// Add registers a task. Idempotent.
func (r *Registry) Add(t *task.Task) {
	if t == nil {
		return
	}
	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()
}

// Remove drops a task. Idempotent.
func (r *Registry) Remove(t *task.Task) {
	if t == nil {
		return
	}
	r.mu.Lock()
	delete(r.tasks, t.ID)
	r.mu.Unlock()
}

// Get returns the in-flight task with the given id, or nil.
func (r *Registry) Get(id string) *task.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tasks[id]
}

// Find returns every in-flight task matching the condition. The scan may race
// with concurrent events; callers treat an empty result as "drop the event".
func (r *Registry) Find(cond task.Condition) []*task.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*task.Task
	for _, t := range r.tasks {
		if cond.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Len reports the number of in-flight tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
