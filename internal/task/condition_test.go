package task

import "testing"

func TestEmptyConditionMatchesEverything(t *testing.T) {
	tk := New(ActionImagine)
	if !(Condition{}).Match(tk) {
		t.Fatalf("zero condition should be a wildcard")
	}
}

func TestConditionFieldEquality(t *testing.T) {
	tk := New(ActionUpscale)
	tk.RelatedTaskID = "42"
	tk.Key = "m1-UPSCALE"
	tk.Description = "/up 42 U2"
	tk.Start()

	cases := []struct {
		name string
		cond Condition
		want bool
	}{
		{"by id", Condition{ID: tk.ID}, true},
		{"wrong id", Condition{ID: "other"}, false},
		{"by key", Condition{Key: "m1-UPSCALE"}, true},
		{"by related", Condition{RelatedTaskID: "42"}, true},
		{"by description", Condition{Description: "/up 42 U2"}, true},
		{"status member", Condition{Statuses: []Status{StatusSubmitted, StatusInProgress}}, true},
		{"status not member", Condition{Statuses: []Status{StatusSuccess}}, false},
		{"action member", Condition{Actions: []Action{ActionUpscale, ActionVariation}}, true},
		{"action not member", Condition{Actions: []Action{ActionImagine}}, false},
		{"combined", Condition{RelatedTaskID: "42", Actions: []Action{ActionUpscale}, Statuses: []Status{StatusSubmitted}}, true},
		{"combined miss", Condition{RelatedTaskID: "42", Actions: []Action{ActionVariation}}, false},
	}
	for _, tc := range cases {
		if got := tc.cond.Match(tk); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestParseChange(t *testing.T) {
	p, ok := ParseChange("1320098173412546560 U2")
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if p.TaskID != "1320098173412546560" || p.Action != ActionUpscale || p.Index != 2 {
		t.Fatalf("unexpected params: %+v", p)
	}

	p, ok = ParseChange("7 V4")
	if !ok || p.Action != ActionVariation || p.Index != 4 {
		t.Fatalf("unexpected variation params: %+v", p)
	}

	for _, bad := range []string{"", "abc U1", "1 X2", "1 U5", "1 U0", "1U2", "1 U2 extra"} {
		if _, ok := ParseChange(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
