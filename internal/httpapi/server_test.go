package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/entari/mjbridge/internal/discord"
	"github.com/entari/mjbridge/internal/queue"
	"github.com/entari/mjbridge/internal/registry"
	"github.com/entari/mjbridge/internal/service"
	"github.com/entari/mjbridge/internal/store"
	"github.com/entari/mjbridge/internal/task"
)

// stubCommander answers every command immediately so worker loops can settle
// without a live gateway: the command "succeeds" and the test finishes the
// task by hand, or the command fails and the worker settles on its own.
type stubCommander struct {
	result discord.Result
}

func (s stubCommander) Imagine(string) discord.Result                { return s.result }
func (s stubCommander) Upscale(string, int, string) discord.Result   { return s.result }
func (s stubCommander) Variation(string, int, string) discord.Result { return s.result }
func (s stubCommander) Reroll(string, string) discord.Result         { return s.result }
func (s stubCommander) Describe(string) discord.Result               { return s.result }
func (s stubCommander) Upload(fileName string, _ string, _ []byte) discord.Result {
	return discord.Result{Code: discord.CodeSuccess, Value: "attachments/1/" + fileName}
}

type apiHarness struct {
	server *httptest.Server
	store  store.Store
	reg    *registry.Registry
}

func newAPIHarness(t *testing.T, result discord.Result) *apiHarness {
	t.Helper()
	st := store.NewMemoryStore(time.Hour)
	t.Cleanup(func() { _ = st.Close() })
	reg := registry.New()
	exec := queue.NewExecutor(2, 4)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = exec.Stop(ctx)
	})
	svc := service.New(service.Config{Timeout: time.Minute}, st, reg, exec,
		stubCommander{result: result}, nil, nil, nil)
	srv := httptest.NewServer(New(svc, nil).Router())
	t.Cleanup(srv.Close)
	return &apiHarness{server: srv, store: st, reg: reg}
}

func (h *apiHarness) postJSON(t *testing.T, path, body string) (int, submitResponse) {
	t.Helper()
	resp, err := http.Post(h.server.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	defer resp.Body.Close()
	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

// settle finishes the freshly queued task so the executor is not left pinned.
func (h *apiHarness) settle(t *testing.T, id string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tk := h.reg.Get(id); tk != nil {
			tk.Succeed()
			tk.Wake()
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never registered", id)
}

func TestSubmitImagineEndpoint(t *testing.T) {
	h := newAPIHarness(t, discord.Result{Code: discord.CodeSuccess})

	status, out := h.postJSON(t, "/submit/imagine", `{"prompt":"a red fox"}`)
	if status != http.StatusOK {
		t.Fatalf("status %d", status)
	}
	if out.Code != int(service.CodeSuccess) || out.Result == "" {
		t.Fatalf("response %+v", out)
	}
	h.settle(t, out.Result)
}

func TestSubmitImagineValidation(t *testing.T) {
	h := newAPIHarness(t, discord.Result{Code: discord.CodeSuccess})

	_, out := h.postJSON(t, "/submit/imagine", `{"prompt":""}`)
	if out.Code != int(service.CodeValidation) {
		t.Fatalf("blank prompt: %+v", out)
	}
	_, out = h.postJSON(t, "/submit/imagine", `not json`)
	if out.Code != int(service.CodeValidation) {
		t.Fatalf("bad body: %+v", out)
	}
}

func TestSubmitSimpleChangeParsing(t *testing.T) {
	h := newAPIHarness(t, discord.Result{Code: discord.CodeSuccess})

	_, out := h.postJSON(t, "/submit/simple-change", `{"content":"garbage"}`)
	if out.Code != int(service.CodeValidation) {
		t.Fatalf("bad content: %+v", out)
	}
	// Well-formed content against a missing related task.
	_, out = h.postJSON(t, "/submit/simple-change", `{"content":"1320098173412546560 U2"}`)
	if out.Code != int(service.CodeNotFound) {
		t.Fatalf("missing related: %+v", out)
	}
}

func TestSubmitDescribeEndpoint(t *testing.T) {
	h := newAPIHarness(t, discord.Result{Code: discord.CodeSuccess})

	_, out := h.postJSON(t, "/submit/describe", `{"base64":"definitely not a data url"}`)
	if out.Code != int(service.CodeValidation) {
		t.Fatalf("bad data url: %+v", out)
	}

	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("fake png bytes"))
	body, _ := json.Marshal(map[string]string{"base64": payload})
	_, out = h.postJSON(t, "/submit/describe", string(body))
	if out.Code != int(service.CodeSuccess) || out.Result == "" {
		t.Fatalf("describe submit: %+v", out)
	}
	h.settle(t, out.Result)
}

func TestFetchTask(t *testing.T) {
	h := newAPIHarness(t, discord.Result{Code: discord.CodeSuccess})

	tk := task.New(task.ActionImagine)
	tk.SetPrompts("a cat", "a cat")
	tk.Start()
	tk.Succeed()
	if err := h.store.Save(context.Background(), tk.Record()); err != nil {
		t.Fatalf("save: %v", err)
	}

	resp, err := http.Get(h.server.URL + "/task/" + tk.ID + "/fetch")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var snap task.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.ID != tk.ID || snap.Status != task.StatusSuccess {
		t.Fatalf("snapshot %+v", snap)
	}

	missing, err := http.Get(h.server.URL + "/task/0000000000000000/fetch")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing task status %d", missing.StatusCode)
	}
}

func TestFetchHidesCorrelationFields(t *testing.T) {
	h := newAPIHarness(t, discord.Result{Code: discord.CodeSuccess})

	tk := task.New(task.ActionImagine)
	tk.FinalPrompt = "[1] secret"
	tk.SetMessageID("m1")
	tk.SetMessageHash("h1")
	tk.Start()
	if err := h.store.Save(context.Background(), tk.Record()); err != nil {
		t.Fatalf("save: %v", err)
	}

	resp, err := http.Get(h.server.URL + "/task/" + tk.ID + "/fetch")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, hidden := range []string{"finalPrompt", "messageId", "messageHash", "secret"} {
		if strings.Contains(buf.String(), hidden) {
			t.Fatalf("response leaks %q: %s", hidden, buf.String())
		}
	}
}

func TestListTasks(t *testing.T) {
	h := newAPIHarness(t, discord.Result{Code: discord.CodeSuccess})

	older := task.New(task.ActionImagine)
	older.SubmitTime = 100
	newer := task.New(task.ActionImagine)
	newer.SubmitTime = 200
	for _, tk := range []*task.Task{older, newer} {
		if err := h.store.Save(context.Background(), tk.Record()); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	resp, err := http.Get(h.server.URL + "/task/list")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var snaps []task.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snaps); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snaps) != 2 || snaps[0].SubmitTime < snaps[1].SubmitTime {
		t.Fatalf("expected newest first, got %+v", snaps)
	}
}

func TestHealthz(t *testing.T) {
	h := newAPIHarness(t, discord.Result{Code: discord.CodeSuccess})
	resp, err := http.Get(h.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
}
