// Package notify pushes task snapshots to caller-supplied webhooks. Delivery
// is best effort: a dead webhook must never stall or fail the task itself.
package notify

import (
	"bytes"
	"log"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/entari/mjbridge/internal/observability"
	"github.com/entari/mjbridge/internal/task"
)

const deliveryTimeout = 10 * time.Second

type Dispatcher struct {
	defaultHook string
	client      *http.Client
	metrics     *observability.Metrics
}

func NewDispatcher(defaultHook string, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		defaultHook: defaultHook,
		client:      &http.Client{Timeout: deliveryTimeout},
		metrics:     metrics,
	}
}

// Notify posts the snapshot to hook, falling back to the configured default.
// Errors are logged and swallowed.
func (d *Dispatcher) Notify(hook string, snap task.Snapshot) {
	if hook == "" {
		hook = d.defaultHook
	}
	if hook == "" {
		return
	}
	body, err := sonic.Marshal(snap)
	if err != nil {
		log.Printf("notify: encode snapshot for task %s: %v", snap.ID, err)
		d.count("error")
		return
	}
	req, err := http.NewRequest(http.MethodPost, hook, bytes.NewReader(body))
	if err != nil {
		log.Printf("notify: build request for task %s: %v", snap.ID, err)
		d.count("error")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-ID", uuid.NewString())
	resp, err := d.client.Do(req)
	if err != nil {
		log.Printf("notify: post task %s to %s: %v", snap.ID, hook, err)
		d.count("error")
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("notify: webhook %s answered %d for task %s", hook, resp.StatusCode, snap.ID)
		d.count("rejected")
		return
	}
	d.count("delivered")
}

func (d *Dispatcher) count(outcome string) {
	if d.metrics != nil {
		d.metrics.WebhookSends.WithLabelValues(outcome).Inc()
	}
}
