package engine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/entari/mjbridge/internal/task"
)

// The bot has no structured reply format; these grammars over its chat text
// are the only contract it honors.
//
// imagine   start:  **<prompt>** - <@botid> (<status>)
// upscale   start:  Upscaling image #<n> with **[<id>] <prompt>** - <@botid> (<status>)
// upscale   end:    **[<id>] <prompt>** - Image #<n> <@botid>
// variation start:  Making variations for image #<n> with prompt **[<id>] <prompt>** - <@botid> (<status>)
// variation run:    **[<id>] <prompt>** - Variations by <@botid> (<status>)
var (
	reImagineContent  = regexp.MustCompile(`\*\*(.*?)\*\* - <@(\d+)> \((.*?)\)`)
	reUVContent       = regexp.MustCompile(`\*\*(.*?)\*\* - (.*?) by <@(\d+)> \((.*?)\)`)
	reUFinishContent  = regexp.MustCompile(`\*\*(.*?)\*\* - Image #(\d) <@(\d+)>`)
	reUpscaleStart    = regexp.MustCompile(`Upscaling image #(\d) with \*\*\[(\d+)\] (.*?)\*\* - <@\d+> \((.*?)\)`)
	reUpscaleEnd      = regexp.MustCompile(`\*\*\[(\d+)\] (.*?)\*\* - Image #(\d) <@\d+>`)
	reVariationStart  = regexp.MustCompile(`Making variations for image #(\d) with prompt \*\*\[(\d+)\] (.*?)\*\* - <@\d+> \((.*?)\)`)
	reVariationUpdate = regexp.MustCompile(`\*\*\[(\d+)\] (.*?)\*\* - Variations by <@\d+> \((.*?)\)`)
)

// parsed is the typed event extracted from one chat fragment.
type parsed struct {
	action task.Action
	taskID string
	prompt string
	status string
	index  int
}

func parseImagineContent(content string) (parsed, bool) {
	m := reImagineContent.FindStringSubmatch(content)
	if m == nil {
		return parsed{}, false
	}
	return parsed{
		action: task.ActionImagine,
		prompt: m[1],
		taskID: task.IDFromPrompt(m[1]),
		status: m[3],
	}, true
}

// parseUVContent recognizes upscale/variation result text, falling back to the
// "Image #<n>" terminal form which omits the action word.
func parseUVContent(content string) (parsed, bool) {
	if m := reUVContent.FindStringSubmatch(content); m != nil {
		action := task.ActionUpscale
		if strings.HasPrefix(m[2], "Variation") {
			action = task.ActionVariation
		}
		return parsed{
			action: action,
			prompt: m[1],
			taskID: task.IDFromPrompt(m[1]),
			status: m[4],
		}, true
	}
	if m := reUFinishContent.FindStringSubmatch(content); m != nil {
		index, _ := strconv.Atoi(m[2])
		return parsed{
			action: task.ActionUpscale,
			prompt: m[1],
			taskID: task.IDFromPrompt(m[1]),
			status: "complete",
			index:  index,
		}, true
	}
	return parsed{}, false
}

func parseUpscaleStart(content string) (parsed, bool) {
	m := reUpscaleStart.FindStringSubmatch(content)
	if m == nil {
		return parsed{}, false
	}
	index, _ := strconv.Atoi(m[1])
	return parsed{
		action: task.ActionUpscale,
		index:  index,
		taskID: m[2],
		prompt: m[3],
		status: m[4],
	}, true
}

func parseUpscaleEnd(content string) (parsed, bool) {
	m := reUpscaleEnd.FindStringSubmatch(content)
	if m == nil {
		return parsed{}, false
	}
	index, _ := strconv.Atoi(m[3])
	return parsed{
		action: task.ActionUpscale,
		taskID: m[1],
		prompt: m[2],
		index:  index,
		status: "done",
	}, true
}

func parseVariationStart(content string) (parsed, bool) {
	m := reVariationStart.FindStringSubmatch(content)
	if m == nil {
		return parsed{}, false
	}
	index, _ := strconv.Atoi(m[1])
	return parsed{
		action: task.ActionVariation,
		index:  index,
		taskID: m[2],
		prompt: m[3],
		status: m[4],
	}, true
}

func parseVariationUpdate(content string) (parsed, bool) {
	m := reVariationUpdate.FindStringSubmatch(content)
	if m == nil {
		return parsed{}, false
	}
	return parsed{
		action: task.ActionVariation,
		taskID: m[1],
		prompt: m[2],
		status: m[3],
	}, true
}

// messageHashFromURL pulls the bot-assigned hash out of an image URL: the
// segment between the last underscore and the extension.
func messageHashFromURL(imageURL string) string {
	i := strings.LastIndex(imageURL, "_")
	if i < 0 {
		return ""
	}
	tail := imageURL[i+1:]
	if j := strings.LastIndex(tail, "."); j >= 0 {
		tail = tail[:j]
	}
	return tail
}

// taskIDFromFileURL pulls a task id out of an uploaded file URL: the filename
// stem. Describe uploads are named "<task id>.<ext>".
func taskIDFromFileURL(fileURL string) string {
	name := fileURL
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if j := strings.LastIndex(name, "."); j >= 0 {
		name = name[:j]
	}
	return name
}
