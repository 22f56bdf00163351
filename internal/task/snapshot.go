package task

// Snapshot is the caller-visible view of a task, serialized to webhooks and API
// responses. Correlation internals (final prompt, message ids, keys) stay out.
type Snapshot struct {
	ID          string `json:"id"`
	Action      Action `json:"action"`
	Prompt      string `json:"prompt,omitempty"`
	PromptEn    string `json:"promptEn,omitempty"`
	Description string `json:"description,omitempty"`
	State       string `json:"state,omitempty"`
	SubmitTime  int64  `json:"submitTime"`
	StartTime   int64  `json:"startTime,omitempty"`
	FinishTime  int64  `json:"finishTime,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Status      Status `json:"status"`
	Progress    string `json:"progress,omitempty"`
	FailReason  string `json:"failReason,omitempty"`
}

// Record is the persistence view. Unlike Snapshot it keeps the hidden
// correlation fields: a stored task must stay upscalable/variable after a
// restart, which needs its message id, message hash and final prompt.
type Record struct {
	Snapshot
	FinalPrompt   string `json:"finalPrompt,omitempty"`
	NotifyHook    string `json:"notifyHook,omitempty"`
	RelatedTaskID string `json:"relatedTaskId,omitempty"`
	MessageID     string `json:"messageId,omitempty"`
	MessageHash   string `json:"messageHash,omitempty"`
	Key           string `json:"key,omitempty"`
}

// Snapshot returns a consistent public copy of the task.
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		ID:          t.ID,
		Action:      t.Action,
		Prompt:      t.prompt,
		PromptEn:    t.promptEn,
		Description: t.Description,
		State:       t.State,
		SubmitTime:  t.SubmitTime,
		StartTime:   t.startTime,
		FinishTime:  t.finishTime,
		ImageURL:    t.imageURL,
		Status:      t.status,
		Progress:    t.progress,
		FailReason:  t.failReason,
	}
}

// Record returns a consistent full copy of the task for the store.
func (t *Task) Record() Record {
	snap := t.Snapshot()
	t.mu.Lock()
	defer t.mu.Unlock()
	return Record{
		Snapshot:      snap,
		FinalPrompt:   t.FinalPrompt,
		NotifyHook:    t.NotifyHook,
		RelatedTaskID: t.RelatedTaskID,
		MessageID:     t.messageID,
		MessageHash:   t.messageHash,
		Key:           t.Key,
	}
}

// FromRecord rebuilds a live task from its persisted form.
func FromRecord(rec Record) *Task {
	return &Task{
		ID:            rec.ID,
		Action:        rec.Action,
		Description:   rec.Description,
		State:         rec.State,
		NotifyHook:    rec.NotifyHook,
		FinalPrompt:   rec.FinalPrompt,
		RelatedTaskID: rec.RelatedTaskID,
		Key:           rec.Key,
		SubmitTime:    rec.SubmitTime,
		wake:          make(chan struct{}, 1),
		prompt:        rec.Prompt,
		promptEn:      rec.PromptEn,
		status:        rec.Status,
		progress:      rec.Progress,
		failReason:    rec.FailReason,
		imageURL:      rec.ImageURL,
		messageID:     rec.MessageID,
		messageHash:   rec.MessageHash,
		startTime:     rec.StartTime,
		finishTime:    rec.FinishTime,
	}
}
