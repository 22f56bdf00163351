package discord

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestSender(t *testing.T, handler http.Handler) (*Sender, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s, err := NewSender(SenderConfig{
		GuildID:   "guild-1",
		ChannelID: "chan-1",
		UserToken: "token-1",
		BaseURL:   srv.URL,
	})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	return s, srv
}

func TestImagineEscapesPrompt(t *testing.T) {
	var captured map[string]any
	s, _ := newTestSender(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &captured); err != nil {
			t.Errorf("payload is not valid json: %v", err)
		}
		if got := r.Header.Get("Authorization"); got != "token-1" {
			t.Errorf("authorization header %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	prompt := `[1] a "quoted" prompt with \backslash --v 5`
	res := s.Imagine(prompt)
	if !res.OK() {
		t.Fatalf("imagine: %+v", res)
	}

	data := captured["data"].(map[string]any)
	options := data["options"].([]any)
	value := options[0].(map[string]any)["value"].(string)
	if value != prompt {
		t.Fatalf("prompt mangled: %q", value)
	}
	if captured["guild_id"] != "guild-1" || captured["channel_id"] != "chan-1" {
		t.Fatalf("ids not filled: %v %v", captured["guild_id"], captured["channel_id"])
	}
}

func TestUpscaleFillsCustomID(t *testing.T) {
	var body string
	s, _ := newTestSender(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.WriteHeader(http.StatusNoContent)
	}))

	if res := s.Upscale("msg-9", 2, "hash-abc"); !res.OK() {
		t.Fatalf("upscale: %+v", res)
	}
	if !strings.Contains(body, "MJ::JOB::upsample::2::hash-abc") {
		t.Fatalf("custom id not filled: %s", body)
	}
	if !strings.Contains(body, `"msg-9"`) {
		t.Fatalf("message id not filled: %s", body)
	}
}

func TestPostInteractionStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		code   ResultCode
	}{
		{http.StatusNoContent, CodeSuccess},
		{http.StatusOK, CodeSuccess},
		{http.StatusTooManyRequests, CodeRateLimited},
		{http.StatusBadRequest, CodeValidationError},
		{http.StatusInternalServerError, CodeFailure},
	}
	for _, tc := range cases {
		s, _ := newTestSender(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))
		if res := s.Reroll("m", "h"); res.Code != tc.code {
			t.Fatalf("status %d mapped to %d, want %d", tc.status, res.Code, tc.code)
		}
	}
}

func TestUploadTwoStepFlow(t *testing.T) {
	var putBody []byte
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/api/v9/channels/chan-1/attachments", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Files []struct {
				Filename string `json:"filename"`
				FileSize int    `json:"file_size"`
			} `json:"files"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Files) != 1 {
			t.Errorf("bad attachment request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"attachments": []map[string]any{{
				"upload_url":      srvURL + "/upload-slot",
				"upload_filename": "attachments/77/" + req.Files[0].Filename,
			}},
		})
	})
	mux.HandleFunc("/upload-slot", func(w http.ResponseWriter, r *http.Request) {
		putBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})

	s, srv := newTestSender(t, mux)
	srvURL = srv.URL

	res := s.Upload("0152010266005012.png", "image/png", []byte("png bytes"))
	if !res.OK() {
		t.Fatalf("upload: %+v", res)
	}
	if res.Value != "attachments/77/0152010266005012.png" {
		t.Fatalf("upload filename %q", res.Value)
	}
	if string(putBody) != "png bytes" {
		t.Fatalf("put body %q", putBody)
	}
}

func TestDescribeUsesUploadFilename(t *testing.T) {
	var body string
	s, _ := newTestSender(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.WriteHeader(http.StatusNoContent)
	}))

	if res := s.Describe("attachments/77/0152010266005012.png"); !res.OK() {
		t.Fatalf("describe: %+v", res)
	}
	if !strings.Contains(body, "attachments/77/0152010266005012.png") {
		t.Fatalf("uploaded filename missing: %s", body)
	}
	if !strings.Contains(body, `"0152010266005012.png"`) {
		t.Fatalf("bare filename missing: %s", body)
	}
}
