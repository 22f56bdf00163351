package task

// Condition is an immutable filter over task fields. Zero-value fields are
// wildcards; status/action sets match by membership. Build one with the
// struct literal, never mutate a shared one.
type Condition struct {
	ID            string
	Key           string
	Prompt        string
	PromptEn      string
	FinalPrompt   string
	Description   string
	RelatedTaskID string
	MessageID     string
	Statuses      []Status
	Actions       []Action
}

// Match reports whether a live task satisfies the condition.
func (c Condition) Match(t *Task) bool {
	return c.matches(t.Record())
}

// MatchRecord reports whether a stored record satisfies the condition.
func (c Condition) MatchRecord(rec Record) bool {
	return c.matches(rec)
}

func (c Condition) matches(rec Record) bool {
	if c.ID != "" && c.ID != rec.ID {
		return false
	}
	if c.Key != "" && c.Key != rec.Key {
		return false
	}
	if c.Prompt != "" && c.Prompt != rec.Prompt {
		return false
	}
	if c.PromptEn != "" && c.PromptEn != rec.PromptEn {
		return false
	}
	if c.FinalPrompt != "" && c.FinalPrompt != rec.FinalPrompt {
		return false
	}
	if c.Description != "" && c.Description != rec.Description {
		return false
	}
	if c.RelatedTaskID != "" && c.RelatedTaskID != rec.RelatedTaskID {
		return false
	}
	if c.MessageID != "" && c.MessageID != rec.MessageID {
		return false
	}
	if len(c.Statuses) > 0 && !containsStatus(c.Statuses, rec.Status) {
		return false
	}
	if len(c.Actions) > 0 && !containsAction(c.Actions, rec.Action) {
		return false
	}
	return true
}

func containsStatus(set []Status, s Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func containsAction(set []Action, a Action) bool {
	for _, v := range set {
		if v == a {
			return true
		}
	}
	return false
}
