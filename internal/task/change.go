package task

import (
	"regexp"
	"strconv"
)

// ChangeParams is the decoded form of compact change content such as
// "1320098173412546560 U2".
type ChangeParams struct {
	TaskID string
	Action Action
	Index  int
}

var reChangeContent = regexp.MustCompile(`^(\d+)\s([UV])(\d)$`)

// ParseChange decodes compact change content. The index must be 1-4 and the
// action letter U (upscale) or V (variation).
func ParseChange(content string) (ChangeParams, bool) {
	m := reChangeContent.FindStringSubmatch(content)
	if m == nil {
		return ChangeParams{}, false
	}
	index, err := strconv.Atoi(m[3])
	if err != nil || index < 1 || index > 4 {
		return ChangeParams{}, false
	}
	action := ActionUpscale
	if m[2] == "V" {
		action = ActionVariation
	}
	return ChangeParams{TaskID: m[1], Action: action, Index: index}, true
}
