// Package engine correlates the bot's chat messages back to in-flight tasks.
// The bot never echoes a request ID, so every handler re-derives identity from
// message text: the bracketed task id embedded in prompts, the composite key
// of grid replies, or the filename stem of uploaded images.
package engine

import (
	"fmt"
	"log"
	"strings"

	"github.com/entari/mjbridge/internal/discord"
	"github.com/entari/mjbridge/internal/observability"
	"github.com/entari/mjbridge/internal/registry"
	"github.com/entari/mjbridge/internal/task"
)

const statusWaitingToStart = "Waiting to start"

// Progress strings carrying only the generation mode, not a percentage.
var nonProgressStatuses = map[string]bool{
	"relaxed": true,
	"fast":    true,
}

var errEmbedTitles = map[string]bool{
	"Action needed to continue":   true,
	"Action required to continue": true,
	"Internal error":              true,
}

var errEmbedFragments = []string{
	"against our community standards",
	"verify you're human",
}

// Config narrows the event stream to one channel and one bot author.
type Config struct {
	ChannelID string
	BotName   string
}

// Engine routes gateway message events to correlation handlers. It implements
// discord.MessageHandler.
type Engine struct {
	cfg     Config
	reg     *registry.Registry
	metrics *observability.Metrics
}

func New(cfg Config, reg *registry.Registry, metrics *observability.Metrics) *Engine {
	if cfg.BotName == "" {
		cfg.BotName = "Midjourney Bot"
	}
	return &Engine{cfg: cfg, reg: reg, metrics: metrics}
}

// OnMessageCreate handles freshly posted bot messages: command acknowledgments
// and final results.
func (e *Engine) OnMessageCreate(msg discord.Message) {
	if !e.relevant(msg) {
		return
	}
	handled := e.handleErrorEmbeds(msg) ||
		e.handleUpscaleStart(msg) ||
		e.handleUpscaleEnd(msg) ||
		e.handleVariationStart(msg) ||
		e.handleVariationEnd(msg) ||
		e.handleImagine(msg) ||
		e.handleGridReply(msg)
	e.count("create", handled)
}

// OnMessageUpdate handles in-place edits, which carry progress percentages and
// describe results.
func (e *Engine) OnMessageUpdate(msg discord.Message) {
	if !e.relevant(msg) {
		return
	}
	handled := e.handleDescribe(msg) ||
		e.handleErrorEmbeds(msg) ||
		e.handleImagineProgress(msg) ||
		e.handleVariationProgress(msg)
	e.count("update", handled)
}

func (e *Engine) relevant(msg discord.Message) bool {
	if e.cfg.ChannelID != "" && msg.ChannelID != e.cfg.ChannelID {
		return false
	}
	return msg.Author.Username == e.cfg.BotName
}

func (e *Engine) count(event string, handled bool) {
	if e.metrics == nil {
		return
	}
	outcome := "ignored"
	if handled {
		outcome = "matched"
	}
	e.metrics.GatewayEvents.WithLabelValues(event, outcome).Inc()
}

// handleImagine correlates imagine and reroll messages by their full prompt
// text, which carries the bracketed task id. "Waiting to start" is the start
// acknowledgment; anything else on a create is the final result.
func (e *Engine) handleImagine(msg discord.Message) bool {
	p, ok := parseImagineContent(msg.Content)
	if !ok || p.prompt == "" {
		return false
	}
	matches := e.reg.Find(task.Condition{
		FinalPrompt: p.prompt,
		Actions:     []task.Action{task.ActionImagine, task.ActionReroll},
		Statuses:    []task.Status{task.StatusSubmitted, task.StatusInProgress},
	})
	// Start acknowledgments go to the oldest waiting task, results to the newest.
	if p.status == statusWaitingToStart {
		t := task.Oldest(matches)
		if t == nil {
			return false
		}
		t.SetMessageID(msg.ID)
		t.SetStatus(task.StatusInProgress)
		t.Wake()
		return true
	}
	t := task.Newest(matches)
	if t == nil {
		return false
	}
	t.SetMessageID(msg.ID)
	e.finishTask(t, msg)
	t.Wake()
	return true
}

func (e *Engine) handleImagineProgress(msg discord.Message) bool {
	p, ok := parseImagineContent(msg.Content)
	if !ok || p.prompt == "" || nonProgressStatuses[p.status] {
		return false
	}
	t := task.Newest(e.reg.Find(task.Condition{
		FinalPrompt: p.prompt,
		Actions:     []task.Action{task.ActionImagine, task.ActionReroll},
		Statuses:    []task.Status{task.StatusSubmitted, task.StatusInProgress},
	}))
	if t == nil {
		return false
	}
	t.SetStatus(task.StatusInProgress)
	t.SetProgress(p.status)
	if len(msg.Attachments) > 0 {
		t.SetImageURL(msg.Attachments[0].URL)
	}
	t.Wake()
	return true
}

func (e *Engine) handleUpscaleStart(msg discord.Message) bool {
	p, ok := parseUpscaleStart(msg.Content)
	if !ok {
		return false
	}
	t := task.Oldest(filterByDescSuffix(e.reg.Find(task.Condition{
		RelatedTaskID: p.taskID,
		Actions:       []task.Action{task.ActionUpscale},
		Statuses:      []task.Status{task.StatusSubmitted},
	}), fmt.Sprintf("U%d", p.index)))
	if t == nil {
		return false
	}
	t.SetStatus(task.StatusInProgress)
	t.Wake()
	return true
}

func (e *Engine) handleUpscaleEnd(msg discord.Message) bool {
	p, ok := parseUpscaleEnd(msg.Content)
	if !ok {
		return false
	}
	t := task.Oldest(filterByDescSuffix(e.reg.Find(task.Condition{
		RelatedTaskID: p.taskID,
		Actions:       []task.Action{task.ActionUpscale},
		Statuses:      []task.Status{task.StatusSubmitted, task.StatusInProgress},
	}), fmt.Sprintf("U%d", p.index)))
	if t == nil {
		return false
	}
	t.SetMessageID(msg.ID)
	e.finishTask(t, msg)
	t.Wake()
	return true
}

func (e *Engine) handleVariationStart(msg discord.Message) bool {
	p, ok := parseVariationStart(msg.Content)
	if !ok {
		return false
	}
	t := task.Oldest(filterByDescSuffix(e.reg.Find(task.Condition{
		RelatedTaskID: p.taskID,
		Actions:       []task.Action{task.ActionVariation},
		Statuses:      []task.Status{task.StatusSubmitted},
	}), fmt.Sprintf("V%d", p.index)))
	if t == nil {
		return false
	}
	t.SetStatus(task.StatusInProgress)
	t.Wake()
	return true
}

func (e *Engine) handleVariationEnd(msg discord.Message) bool {
	p, ok := parseVariationUpdate(msg.Content)
	if !ok {
		return false
	}
	t := task.Oldest(e.reg.Find(task.Condition{
		RelatedTaskID: p.taskID,
		Actions:       []task.Action{task.ActionVariation},
		Statuses:      []task.Status{task.StatusSubmitted, task.StatusInProgress},
	}))
	if t == nil {
		return false
	}
	t.SetMessageID(msg.ID)
	e.finishTask(t, msg)
	t.Wake()
	return true
}

func (e *Engine) handleVariationProgress(msg discord.Message) bool {
	p, ok := parseVariationUpdate(msg.Content)
	if !ok || nonProgressStatuses[p.status] {
		return false
	}
	t := task.Oldest(e.reg.Find(task.Condition{
		RelatedTaskID: p.taskID,
		Actions:       []task.Action{task.ActionVariation},
		Statuses:      []task.Status{task.StatusInProgress},
	}))
	if t == nil {
		return false
	}
	t.SetProgress(p.status)
	if len(msg.Attachments) > 0 {
		t.SetImageURL(msg.Attachments[0].URL)
	}
	t.Wake()
	return true
}

// handleGridReply correlates action results posted as replies to a grid
// message. The slot key was fixed at submit time from the grid's message id
// and the requested action.
func (e *Engine) handleGridReply(msg discord.Message) bool {
	if msg.ReferencedMessage == nil {
		return false
	}
	p, ok := parseUVContent(msg.Content)
	if !ok {
		return false
	}
	t := task.Newest(e.reg.Find(task.Condition{
		Key:      msg.ReferencedMessage.ID + "-" + string(p.action),
		Statuses: []task.Status{task.StatusSubmitted, task.StatusInProgress},
	}))
	if t == nil {
		return false
	}
	t.SetMessageID(msg.ID)
	e.finishTask(t, msg)
	t.Wake()
	return true
}

// handleDescribe matches describe results through the uploaded filename, which
// the submit path names after the task id.
func (e *Engine) handleDescribe(msg discord.Message) bool {
	if msg.Interaction == nil || msg.Interaction.Name != "describe" {
		return false
	}
	if len(msg.Embeds) == 0 || msg.Embeds[0].Image == nil {
		return false
	}
	em := msg.Embeds[0]
	t := e.reg.Get(taskIDFromFileURL(em.Image.URL))
	if t == nil || t.Action != task.ActionDescribe {
		return false
	}
	t.SetMessageID(msg.ID)
	t.SetPrompts(em.Description, em.Description)
	t.SetImageURL(em.Image.URL)
	t.Succeed()
	t.Wake()
	return true
}

// handleErrorEmbeds fails tasks named by moderation and error embeds. The
// embed footer repeats the offending command, which is the only way back to
// the task.
func (e *Engine) handleErrorEmbeds(msg discord.Message) bool {
	for _, em := range msg.Embeds {
		if !isErrorEmbed(em) {
			continue
		}
		t := e.findByFooter(em.Footer)
		if t == nil {
			log.Printf("engine: error embed %q matched no task", em.Title)
			continue
		}
		t.Fail(errorReason(em))
		t.Wake()
		return true
	}
	return false
}

func (e *Engine) findByFooter(footer *discord.EmbedFooter) *task.Task {
	if footer == nil {
		return nil
	}
	text := footer.Text
	switch {
	case strings.HasPrefix(text, "/imagine "):
		return task.Newest(e.reg.Find(task.Condition{
			FinalPrompt: strings.TrimPrefix(text, "/imagine "),
			Statuses:    []task.Status{task.StatusSubmitted, task.StatusInProgress},
		}))
	case strings.HasPrefix(text, "/describe "):
		return e.reg.Get(taskIDFromFileURL(strings.TrimPrefix(text, "/describe ")))
	}
	return nil
}

// finishTask settles a task from its result message. A result without an
// attachment means the bot dropped the image and the task cannot succeed.
func (e *Engine) finishTask(t *task.Task, msg discord.Message) {
	if len(msg.Attachments) == 0 {
		t.Fail("result message carried no image")
		return
	}
	url := msg.Attachments[0].URL
	t.SetImageURL(url)
	t.SetMessageHash(messageHashFromURL(url))
	t.Succeed()
}

func errorReason(em discord.Embed) string {
	switch {
	case strings.Contains(em.Description, "against our community standards"):
		return "prompt blocked by content moderation"
	case strings.Contains(em.Description, "verify you're human"):
		return "account requires human verification"
	case em.Description != "":
		return em.Description
	default:
		return em.Title
	}
}

func isErrorEmbed(em discord.Embed) bool {
	if errEmbedTitles[em.Title] {
		return true
	}
	for _, frag := range errEmbedFragments {
		if strings.Contains(em.Description, frag) {
			return true
		}
	}
	return false
}

func filterByDescSuffix(tasks []*task.Task, suffix string) []*task.Task {
	var out []*task.Task
	for _, t := range tasks {
		if strings.HasSuffix(t.Description, suffix) {
			out = append(out, t)
		}
	}
	return out
}
