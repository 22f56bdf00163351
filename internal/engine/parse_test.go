package engine

import (
	"testing"

	"github.com/entari/mjbridge/internal/task"
)

func TestParseImagineContent(t *testing.T) {
	p, ok := parseImagineContent("**[0152010266005012] cat --v 5** - <@1012983546824114217> (Waiting to start)")
	if !ok {
		t.Fatalf("expected match")
	}
	if p.prompt != "[0152010266005012] cat --v 5" {
		t.Fatalf("prompt %q", p.prompt)
	}
	if p.taskID != "0152010266005012" {
		t.Fatalf("task id %q", p.taskID)
	}
	if p.status != "Waiting to start" {
		t.Fatalf("status %q", p.status)
	}

	if _, ok := parseImagineContent("just chatting"); ok {
		t.Fatalf("plain text must not match")
	}
}

func TestParseUpscaleStart(t *testing.T) {
	p, ok := parseUpscaleStart("Upscaling image #2 with **[42] dog** - <@1> (Waiting to start)")
	if !ok {
		t.Fatalf("expected match")
	}
	if p.index != 2 || p.taskID != "42" || p.prompt != "dog" || p.status != "Waiting to start" {
		t.Fatalf("unexpected parse: %+v", p)
	}
}

func TestParseUpscaleEnd(t *testing.T) {
	p, ok := parseUpscaleEnd("**[0152010266005012] cat** - Image #1 <@1012983546824114217>")
	if !ok {
		t.Fatalf("expected match")
	}
	if p.taskID != "0152010266005012" || p.prompt != "cat" || p.index != 1 {
		t.Fatalf("unexpected parse: %+v", p)
	}
}

func TestParseVariationForms(t *testing.T) {
	p, ok := parseVariationStart("Making variations for image #3 with prompt **[42] dog** - <@1> (Waiting to start)")
	if !ok || p.index != 3 || p.taskID != "42" {
		t.Fatalf("variation start: %+v ok=%v", p, ok)
	}

	p, ok = parseVariationUpdate("**[42] dog** - Variations by <@1> (31%)")
	if !ok || p.taskID != "42" || p.status != "31%" {
		t.Fatalf("variation update: %+v ok=%v", p, ok)
	}
}

func TestParseUVContent(t *testing.T) {
	p, ok := parseUVContent("**[42] dog** - Variations by <@1> (relaxed)")
	if !ok || p.action != task.ActionVariation {
		t.Fatalf("variation form: %+v ok=%v", p, ok)
	}

	p, ok = parseUVContent("**[42] dog** - Image #4 <@1>")
	if !ok || p.action != task.ActionUpscale || p.index != 4 {
		t.Fatalf("upscale terminal form: %+v ok=%v", p, ok)
	}
}

func TestMessageHashFromURL(t *testing.T) {
	url := "https://cdn.example.com/attachments/1/2/user_cat_4f0092d6-3e5a-4e3b-9f2a-111122223333.png"
	if got := messageHashFromURL(url); got != "4f0092d6-3e5a-4e3b-9f2a-111122223333" {
		t.Fatalf("hash %q", got)
	}
	if got := messageHashFromURL("nounderscore.png"); got != "" {
		t.Fatalf("expected empty hash, got %q", got)
	}
}

func TestTaskIDFromFileURL(t *testing.T) {
	url := "https://cdn.example.com/ephemeral-attachments/1/2/0152010266005012.png"
	if got := taskIDFromFileURL(url); got != "0152010266005012" {
		t.Fatalf("task id %q", got)
	}
	if got := taskIDFromFileURL("0152010266005012.jpg"); got != "0152010266005012" {
		t.Fatalf("bare filename: %q", got)
	}
}
