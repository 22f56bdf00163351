package translate

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const baiduEndpoint = "https://fanyi-api.baidu.com/api/trans/vip/translate"

// Baidu translates prompts through the Baidu fanyi API.
type Baidu struct {
	appID    string
	secret   string
	endpoint string
	client   *http.Client
}

type BaiduConfig struct {
	AppID  string
	Secret string
	// Endpoint overrides the API origin, for tests.
	Endpoint string
}

func NewBaidu(cfg BaiduConfig) *Baidu {
	if cfg.Endpoint == "" {
		cfg.Endpoint = baiduEndpoint
	}
	return &Baidu{
		appID:    cfg.AppID,
		secret:   cfg.Secret,
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type baiduResponse struct {
	ErrorCode   string `json:"error_code"`
	ErrorMsg    string `json:"error_msg"`
	TransResult []struct {
		Dst string `json:"dst"`
	} `json:"trans_result"`
}

func (b *Baidu) Translate(ctx context.Context, text string) (string, error) {
	body, suffix := splitSuffix(text)
	if !containsCJK(body) {
		return text, nil
	}
	salt := strconv.FormatInt(time.Now().UnixNano(), 10)
	sum := md5.Sum([]byte(b.appID + body + salt + b.secret))
	form := url.Values{
		"from":  {"zh"},
		"to":    {"en"},
		"appid": {b.appID},
		"salt":  {salt},
		"q":     {body},
		"sign":  {hex.EncodeToString(sum[:])},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var out baiduResponse
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("translate: decode baidu response: %w", err)
	}
	if out.ErrorCode != "" && out.ErrorCode != "52000" {
		return "", fmt.Errorf("translate: baidu error %s: %s", out.ErrorCode, out.ErrorMsg)
	}
	if len(out.TransResult) == 0 {
		return "", fmt.Errorf("translate: baidu returned no result")
	}
	parts := make([]string, 0, len(out.TransResult))
	for _, r := range out.TransResult {
		parts = append(parts, r.Dst)
	}
	return strings.Join(parts, "\n") + suffix, nil
}
