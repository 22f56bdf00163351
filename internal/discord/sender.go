package discord

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

//go:embed api-params/*.json
var apiParams embed.FS

// ResultCode classifies the outcome of a command call.
type ResultCode int

const (
	CodeSuccess         ResultCode = 1
	CodeValidationError ResultCode = 4
	CodeRateLimited     ResultCode = 5
	CodeFailure         ResultCode = 9
)

// Result is the uniform outcome of an outbound command.
type Result struct {
	Code        ResultCode
	Description string
	Value       string
}

func (r Result) OK() bool { return r.Code == CodeSuccess }

func success(value string) Result {
	return Result{Code: CodeSuccess, Description: "success", Value: value}
}

func failure(code ResultCode, description string) Result {
	return Result{Code: code, Description: description}
}

// SenderConfig carries the Discord identifiers and credentials for outbound
// commands.
type SenderConfig struct {
	GuildID   string
	ChannelID string
	UserToken string
	UserAgent string
	// BaseURL overrides the Discord API origin, for tests.
	BaseURL string
}

// Sender issues slash commands and component interactions to the Discord API
// using templated JSON payloads, the only wire format the bot accepts.
type Sender struct {
	cfg    SenderConfig
	client *http.Client

	imagineParams   string
	upscaleParams   string
	variationParams string
	rerollParams    string
	describeParams  string
}

func NewSender(cfg SenderConfig) (*Sender, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://discord.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	s := &Sender{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, tpl := range []struct {
		name string
		dst  *string
	}{
		{"imagine", &s.imagineParams},
		{"upscale", &s.upscaleParams},
		{"variation", &s.variationParams},
		{"reroll", &s.rerollParams},
		{"describe", &s.describeParams},
	} {
		raw, err := apiParams.ReadFile("api-params/" + tpl.name + ".json")
		if err != nil {
			return nil, fmt.Errorf("load %s params: %w", tpl.name, err)
		}
		*tpl.dst = string(raw)
	}
	return s, nil
}

func (s *Sender) interactionsURL() string {
	return s.cfg.BaseURL + "/api/v9/interactions"
}

func (s *Sender) attachmentsURL() string {
	return s.cfg.BaseURL + "/api/v9/channels/" + s.cfg.ChannelID + "/attachments"
}

// Imagine submits an /imagine command with the given final prompt.
func (s *Sender) Imagine(prompt string) Result {
	params := s.fill(s.imagineParams, nil)
	var payload map[string]any
	if err := json.Unmarshal([]byte(params), &payload); err != nil {
		return failure(CodeFailure, "bad imagine params template")
	}
	// The prompt goes through the JSON encoder, not string substitution, so
	// quotes and backslashes in user prompts survive.
	data := payload["data"].(map[string]any)
	options := data["options"].([]any)
	options[0].(map[string]any)["value"] = prompt
	encoded, err := json.Marshal(payload)
	if err != nil {
		return failure(CodeFailure, "encode imagine params")
	}
	return s.postInteraction(string(encoded))
}

// Upscale presses the U<index> button on a generated grid message.
func (s *Sender) Upscale(messageID string, index int, messageHash string) Result {
	params := s.fill(s.upscaleParams, map[string]string{
		"$message_id":   messageID,
		"$index":        strconv.Itoa(index),
		"$message_hash": messageHash,
	})
	return s.postInteraction(params)
}

// Variation presses the V<index> button on a generated grid message.
func (s *Sender) Variation(messageID string, index int, messageHash string) Result {
	params := s.fill(s.variationParams, map[string]string{
		"$message_id":   messageID,
		"$index":        strconv.Itoa(index),
		"$message_hash": messageHash,
	})
	return s.postInteraction(params)
}

// Reroll presses the reroll button on a generated grid message.
func (s *Sender) Reroll(messageID, messageHash string) Result {
	params := s.fill(s.rerollParams, map[string]string{
		"$message_id":   messageID,
		"$message_hash": messageHash,
	})
	return s.postInteraction(params)
}

// Describe issues a /describe command referencing an uploaded attachment.
func (s *Sender) Describe(finalFileName string) Result {
	fileName := finalFileName
	if i := strings.LastIndex(finalFileName, "/"); i >= 0 {
		fileName = finalFileName[i+1:]
	}
	params := s.fill(s.describeParams, map[string]string{
		"$file_name":       fileName,
		"$final_file_name": finalFileName,
	})
	return s.postInteraction(params)
}

// Upload pushes a binary payload through the attachment two-step flow and
// returns the server-assigned upload filename.
func (s *Sender) Upload(fileName, contentType string, data []byte) Result {
	reqBody, _ := json.Marshal(map[string]any{
		"files": []map[string]any{
			{"filename": fileName, "file_size": len(data), "id": "0"},
		},
	})
	status, body, err := s.post(s.attachmentsURL(), "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return failure(CodeFailure, "attachment request failed: "+err.Error())
	}
	if status != http.StatusOK {
		log.Printf("discord upload rejected, status: %d, body: %s", status, body)
		return failure(CodeValidationError, "attachment upload rejected")
	}
	var resp struct {
		Attachments []struct {
			UploadURL      string `json:"upload_url"`
			UploadFilename string `json:"upload_filename"`
		} `json:"attachments"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil || len(resp.Attachments) == 0 {
		return failure(CodeValidationError, "attachment response missing upload slot")
	}
	slot := resp.Attachments[0]
	if err := s.put(slot.UploadURL, contentType, data); err != nil {
		return failure(CodeFailure, "attachment put failed: "+err.Error())
	}
	return success(slot.UploadFilename)
}

func (s *Sender) fill(template string, vars map[string]string) string {
	out := strings.ReplaceAll(template, "$guild_id", s.cfg.GuildID)
	out = strings.ReplaceAll(out, "$channel_id", s.cfg.ChannelID)
	for k, v := range vars {
		out = strings.ReplaceAll(out, k, v)
	}
	return out
}

func (s *Sender) postInteraction(params string) Result {
	status, body, err := s.post(s.interactionsURL(), "application/json", strings.NewReader(params))
	if err != nil {
		return failure(CodeFailure, "interaction request failed: "+err.Error())
	}
	switch {
	case status == http.StatusNoContent || status == http.StatusOK:
		return success("")
	case status == http.StatusTooManyRequests:
		return failure(CodeRateLimited, "rate limited by discord")
	case status >= 400 && status < 500:
		log.Printf("discord interaction rejected, status: %d, body: %s", status, body)
		return failure(CodeValidationError, "interaction rejected: "+strings.TrimSpace(body))
	default:
		log.Printf("discord interaction failed, status: %d, body: %s", status, body)
		return failure(CodeFailure, "interaction failed with status "+strconv.Itoa(status))
	}
}

func (s *Sender) post(url, contentType string, body io.Reader) (int, string, error) {
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", s.cfg.UserToken)
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, string(raw), nil
}

func (s *Sender) put(url, contentType string, data []byte) error {
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("upload put status %d", resp.StatusCode)
	}
	return nil
}
