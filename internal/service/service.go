// Package service owns the task lifecycle: validation, queueing, the worker
// loop that converses with the bot, persistence and webhook notification.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/entari/mjbridge/internal/banned"
	"github.com/entari/mjbridge/internal/discord"
	"github.com/entari/mjbridge/internal/notify"
	"github.com/entari/mjbridge/internal/observability"
	"github.com/entari/mjbridge/internal/queue"
	"github.com/entari/mjbridge/internal/registry"
	"github.com/entari/mjbridge/internal/store"
	"github.com/entari/mjbridge/internal/task"
	"github.com/entari/mjbridge/internal/translate"
)

// SubmitCode classifies a submission outcome for API callers.
type SubmitCode int

const (
	CodeSuccess    SubmitCode = 1
	CodeInQueue    SubmitCode = 2
	CodeNotFound   SubmitCode = 3
	CodeValidation SubmitCode = 4
	CodeExisted    SubmitCode = 5
	CodeBanned     SubmitCode = 6
	CodeFailure    SubmitCode = 9
)

// SubmitResult is what a submit endpoint returns: an outcome code, a
// human-readable description, and the task id when one was created.
type SubmitResult struct {
	Code          SubmitCode
	Description   string
	TaskID        string
	QueuePosition int
}

// Commander is the outbound command surface of the Discord sender.
type Commander interface {
	Imagine(prompt string) discord.Result
	Upscale(messageID string, index int, messageHash string) discord.Result
	Variation(messageID string, index int, messageHash string) discord.Result
	Reroll(messageID, messageHash string) discord.Result
	Describe(finalFileName string) discord.Result
	Upload(fileName, contentType string, data []byte) discord.Result
}

type Config struct {
	// Timeout bounds a task's whole conversation with the bot.
	Timeout time.Duration
}

type Service struct {
	cfg        Config
	store      store.Store
	reg        *registry.Registry
	exec       *queue.Executor
	sender     Commander
	notifier   *notify.Dispatcher
	translator translate.Translator
	metrics    *observability.Metrics
}

func New(cfg Config, st store.Store, reg *registry.Registry, exec *queue.Executor,
	sender Commander, notifier *notify.Dispatcher, translator translate.Translator,
	metrics *observability.Metrics) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if translator == nil {
		translator = translate.None{}
	}
	return &Service{
		cfg:        cfg,
		store:      st,
		reg:        reg,
		exec:       exec,
		sender:     sender,
		notifier:   notifier,
		translator: translator,
		metrics:    metrics,
	}
}

// SubmitImagine validates and queues an /imagine task.
func (s *Service) SubmitImagine(ctx context.Context, prompt, notifyHook string) SubmitResult {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return SubmitResult{Code: CodeValidation, Description: "prompt must not be blank"}
	}
	promptEn, err := s.translator.Translate(ctx, prompt)
	if err != nil {
		log.Printf("service: translate prompt failed, using original: %v", err)
		promptEn = prompt
	}
	if w, ok := banned.Word(promptEn); ok {
		return SubmitResult{Code: CodeBanned, Description: "prompt contains banned word: " + w}
	}
	t := task.New(task.ActionImagine)
	t.SetPrompts(prompt, promptEn)
	t.Description = "/imagine " + prompt
	t.NotifyHook = notifyHook
	t.FinalPrompt = task.FormatFinalPrompt(t.ID, promptEn)
	return s.submit(ctx, t, func() discord.Result {
		return s.sender.Imagine(t.FinalPrompt)
	})
}

// SubmitChange queues an upscale, variation or reroll against a finished
// task's result message.
func (s *Service) SubmitChange(ctx context.Context, relatedID string, action task.Action,
	index int, notifyHook string) SubmitResult {
	switch action {
	case task.ActionUpscale, task.ActionVariation:
		if index < 1 || index > 4 {
			return SubmitResult{Code: CodeValidation, Description: "index must be between 1 and 4"}
		}
	case task.ActionReroll:
		index = 0
	default:
		return SubmitResult{Code: CodeValidation, Description: "action must be UPSCALE, VARIATION or REROLL"}
	}
	rec, err := s.store.Get(ctx, relatedID)
	if errors.Is(err, store.ErrNotFound) {
		return SubmitResult{Code: CodeNotFound, Description: "related task not found"}
	}
	if err != nil {
		log.Printf("service: load related task %s: %v", relatedID, err)
		return SubmitResult{Code: CodeFailure, Description: "load related task failed"}
	}
	if rec.Status != task.StatusSuccess {
		return SubmitResult{Code: CodeValidation, Description: "related task has not finished"}
	}
	if rec.MessageID == "" || rec.MessageHash == "" {
		return SubmitResult{Code: CodeValidation, Description: "related task is missing message info"}
	}

	description := changeDescription(relatedID, action, index)
	if action == task.ActionUpscale {
		// The bot refuses duplicate upscales of the same grid slot, so a
		// repeat submission is answered with the task that already did it.
		if prior, err := store.FindOne(ctx, s.store, task.Condition{Description: description}); err == nil {
			return SubmitResult{
				Code:        CodeExisted,
				Description: "the same upscale was already submitted",
				TaskID:      prior.ID,
			}
		}
	}

	t := task.New(action)
	t.SetPrompts(rec.Prompt, rec.PromptEn)
	t.Description = description
	t.NotifyHook = notifyHook
	t.FinalPrompt = rec.FinalPrompt
	t.RelatedTaskID = relatedBracketID(rec)
	t.Key = rec.MessageID + "-" + string(action)

	messageID, messageHash := rec.MessageID, rec.MessageHash
	return s.submit(ctx, t, func() discord.Result {
		switch action {
		case task.ActionUpscale:
			return s.sender.Upscale(messageID, index, messageHash)
		case task.ActionVariation:
			return s.sender.Variation(messageID, index, messageHash)
		default:
			return s.sender.Reroll(messageID, messageHash)
		}
	})
}

// SubmitDescribe uploads the image and queues a /describe task. The upload is
// named after the task id so the result can be matched back by filename.
func (s *Service) SubmitDescribe(ctx context.Context, fileName, contentType string,
	data []byte, notifyHook string) SubmitResult {
	if len(data) == 0 {
		return SubmitResult{Code: CodeValidation, Description: "image data must not be empty"}
	}
	ext := path.Ext(fileName)
	if ext == "" {
		ext = ".png"
	}
	t := task.New(task.ActionDescribe)
	t.Description = "/describe " + fileName
	t.NotifyHook = notifyHook

	upload := s.sender.Upload(t.ID+ext, contentType, data)
	if !upload.OK() {
		return SubmitResult{Code: CodeFailure, Description: "upload image: " + upload.Description}
	}
	finalFileName := upload.Value
	return s.submit(ctx, t, func() discord.Result {
		return s.sender.Describe(finalFileName)
	})
}

// Fetch returns the task snapshot, preferring the live in-flight state over
// the persisted record.
func (s *Service) Fetch(ctx context.Context, id string) (task.Snapshot, bool) {
	if t := s.reg.Get(id); t != nil {
		return t.Snapshot(), true
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return task.Snapshot{}, false
	}
	return rec.Snapshot, true
}

// List returns all stored snapshots, newest first. Live tasks shadow their
// stored versions.
func (s *Service) List(ctx context.Context) ([]task.Snapshot, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]task.Snapshot, 0, len(recs))
	for _, rec := range recs {
		if t := s.reg.Get(rec.ID); t != nil {
			out = append(out, t.Snapshot())
			continue
		}
		out = append(out, rec.Snapshot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmitTime > out[j].SubmitTime })
	return out, nil
}

// submit persists the task and hands it to the executor. The queue position
// sampled at enqueue time decides between "submitted" and "queued" responses.
func (s *Service) submit(ctx context.Context, t *task.Task, command func() discord.Result) SubmitResult {
	if err := s.store.Save(ctx, t.Record()); err != nil {
		log.Printf("service: save task %s: %v", t.ID, err)
		return SubmitResult{Code: CodeFailure, Description: "store task failed"}
	}
	depth, err := s.exec.Submit(func() { s.run(t, command) })
	if err != nil {
		if s.metrics != nil {
			s.metrics.QueueRejected.Inc()
		}
		if derr := s.store.Delete(context.Background(), t.ID); derr != nil {
			log.Printf("service: drop rejected task %s: %v", t.ID, derr)
		}
		return SubmitResult{Code: CodeFailure, Description: "queue is full, try again later"}
	}
	if s.metrics != nil {
		s.metrics.TasksSubmitted.WithLabelValues(string(t.Action)).Inc()
		s.metrics.QueueDepth.Set(float64(s.exec.Depth()))
	}
	if depth == 0 {
		return SubmitResult{Code: CodeSuccess, Description: "submit success", TaskID: t.ID}
	}
	return SubmitResult{
		Code:          CodeInQueue,
		Description:   fmt.Sprintf("queued, %d task(s) ahead", depth),
		TaskID:        t.ID,
		QueuePosition: depth,
	}
}

// run is the worker loop for one task. It registers the task for correlation,
// sends the command, then sleeps between correlation events until a terminal
// status is reached. The timeout sweep guarantees the final wake.
func (s *Service) run(t *task.Task, command func() discord.Result) {
	s.reg.Add(t)
	if s.metrics != nil {
		s.metrics.RunningTasks.Inc()
		s.metrics.QueueDepth.Set(float64(s.exec.Depth()))
	}
	defer func() {
		s.reg.Remove(t)
		if s.metrics != nil {
			s.metrics.RunningTasks.Dec()
		}
	}()

	t.StampStart()
	s.save(t)

	// The task turns SUBMITTED only once the bot accepted the command.
	if res := command(); !res.OK() {
		log.Printf("service: task %s command rejected: %s", t.ID, res.Description)
		t.Fail(res.Description)
		s.saveAndNotify(t)
		s.settle(t)
		return
	}
	t.Start()
	s.saveAndNotify(t)

	for !t.Status().Terminal() {
		t.Sleep()
		s.saveAndNotify(t)
	}
	s.settle(t)
}

// settle records completion metrics. The terminal snapshot was already
// persisted and notified by the wake that produced it.
func (s *Service) settle(t *task.Task) {
	if s.metrics == nil {
		return
	}
	snap := t.Snapshot()
	s.metrics.TasksCompleted.WithLabelValues(string(snap.Status)).Inc()
	if snap.FinishTime > 0 {
		s.metrics.ObserveTaskDuration(string(snap.Action),
			time.Duration(snap.FinishTime-snap.SubmitTime)*time.Millisecond)
	}
}

func (s *Service) saveAndNotify(t *task.Task) {
	s.save(t)
	if s.notifier != nil {
		s.notifier.Notify(t.NotifyHook, t.Snapshot())
	}
}

func (s *Service) save(t *task.Task) {
	if err := s.store.Save(context.Background(), t.Record()); err != nil {
		log.Printf("service: save task %s: %v", t.ID, err)
	}
}

// changeDescription is also the duplicate-submission key for upscales.
func changeDescription(relatedID string, action task.Action, index int) string {
	switch action {
	case task.ActionUpscale:
		return fmt.Sprintf("/up %s U%d", relatedID, index)
	case task.ActionVariation:
		return fmt.Sprintf("/up %s V%d", relatedID, index)
	default:
		return fmt.Sprintf("/up %s R", relatedID)
	}
}

// relatedBracketID returns the task id the bot will echo in chat text for
// changes against rec: the bracketed id inside the grid prompt, which for
// chained changes differs from rec's own id.
func relatedBracketID(rec task.Record) string {
	if id := task.IDFromPrompt(rec.FinalPrompt); id != "" {
		return id
	}
	return rec.ID
}
