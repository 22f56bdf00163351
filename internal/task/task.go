package task

import (
	"sync"
	"time"
)

// Action identifies what kind of request a task carries to the bot.
type Action string

const (
	ActionImagine   Action = "IMAGINE"
	ActionUpscale   Action = "UPSCALE"
	ActionVariation Action = "VARIATION"
	ActionReroll    Action = "REROLL"
	ActionDescribe  Action = "DESCRIBE"
)

// Status is the task lifecycle state. SUCCESS and FAILURE are terminal.
type Status string

const (
	StatusNotStart   Status = "NOT_START"
	StatusSubmitted  Status = "SUBMITTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
	StatusFailure    Status = "FAILURE"
)

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Task is one in-flight request against the bot. Fields above the mutex are
// fixed at submission time; everything below it is written concurrently by the
// executing worker, the correlation engine and the timeout sweep, and must only
// be touched through the accessor methods.
//
// The wake channel is the blocking-wait handle: the worker executing the task
// sleeps on it between "command accepted" and "terminal status reached", and
// every mutator signals it after writing. It is buffered so a wake sent before
// the worker starts sleeping is not lost.
type Task struct {
	ID            string
	Action        Action
	Description   string
	State         string
	NotifyHook    string
	FinalPrompt   string
	RelatedTaskID string
	Key           string
	SubmitTime    int64

	wake chan struct{}

	mu          sync.Mutex
	prompt      string
	promptEn    string
	status      Status
	progress    string
	failReason  string
	imageURL    string
	messageID   string
	messageHash string
	startTime   int64
	finishTime  int64
}

// New creates a NOT_START task with a fresh random ID and the current submit time.
func New(action Action) *Task {
	return &Task{
		ID:         NewID(),
		Action:     action,
		SubmitTime: time.Now().UnixMilli(),
		status:     StatusNotStart,
		wake:       make(chan struct{}, 1),
	}
}

// Sleep blocks the calling worker until some mutator wakes the task.
func (t *Task) Sleep() {
	<-t.wake
}

// Wake releases a sleeping worker. Safe to call from any goroutine, any number
// of times; extra signals collapse into the single buffered slot.
func (t *Task) Wake() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// StampStart records when a worker picked the task up, before the command
// round-trip. The timeout clock runs from here.
func (t *Task) StampStart() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startTime = time.Now().UnixMilli()
}

// Start marks the task submitted to the bot. An earlier StampStart time is
// kept. No-op once terminal.
func (t *Task) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return
	}
	if t.startTime == 0 {
		t.startTime = time.Now().UnixMilli()
	}
	t.status = StatusSubmitted
	t.progress = "0%"
}

// Succeed moves the task to SUCCESS. No-op once terminal.
func (t *Task) Succeed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return
	}
	t.finishTime = time.Now().UnixMilli()
	t.status = StatusSuccess
	t.progress = "100%"
}

// Fail moves the task to FAILURE with the given reason. No-op once terminal.
func (t *Task) Fail(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return
	}
	t.finishTime = time.Now().UnixMilli()
	t.status = StatusFailure
	t.failReason = reason
	t.progress = ""
}

func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// SetStatus writes a non-terminal transition (SUBMITTED ⇄ IN_PROGRESS).
// Ignored once the task is terminal so a late progress event cannot resurrect
// a timed-out or finished task.
func (t *Task) SetStatus(s Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return
	}
	t.status = s
}

func (t *Task) Progress() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

func (t *Task) SetProgress(p string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return
	}
	t.progress = p
}

func (t *Task) ImageURL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.imageURL
}

func (t *Task) SetImageURL(u string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.imageURL = u
}

func (t *Task) MessageID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.messageID
}

func (t *Task) SetMessageID(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageID = id
}

func (t *Task) MessageHash() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.messageHash
}

func (t *Task) SetMessageHash(h string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHash = h
}

func (t *Task) Prompt() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prompt
}

// SetPrompts writes both prompt variants; describe results rewrite them with
// the generated prompt.
func (t *Task) SetPrompts(prompt, promptEn string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prompt = prompt
	t.promptEn = promptEn
}

func (t *Task) PromptEn() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.promptEn
}

func (t *Task) FailReason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failReason
}

func (t *Task) StartTime() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startTime
}

func (t *Task) FinishTime() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finishTime
}

// Oldest returns the task with the smallest submit time, or nil.
func Oldest(tasks []*Task) *Task {
	var out *Task
	for _, t := range tasks {
		if out == nil || t.SubmitTime < out.SubmitTime {
			out = t
		}
	}
	return out
}

// Newest returns the task with the largest submit time, or nil.
func Newest(tasks []*Task) *Task {
	var out *Task
	for _, t := range tasks {
		if out == nil || t.SubmitTime > out.SubmitTime {
			out = t
		}
	}
	return out
}
