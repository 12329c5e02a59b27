// Package captcha wraps the Cloudflare Turnstile siteverify oracle.
package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const siteVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// Verifier answers whether a challenge token is valid. The result is a plain
// boolean; the oracle carries no further semantics.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// TurnstileVerifier is the Cloudflare Turnstile implementation.
type TurnstileVerifier struct {
	httpClient *http.Client
	secret     string
	endpoint   string
}

var _ Verifier = (*TurnstileVerifier)(nil)

// NewTurnstileVerifier constructs the verifier with the site secret.
func NewTurnstileVerifier(client *http.Client, secret string) *TurnstileVerifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TurnstileVerifier{httpClient: client, secret: secret, endpoint: siteVerifyURL}
}

func (v *TurnstileVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	payload, err := json.Marshal(map[string]string{
		"secret":   v.secret,
		"response": token,
		"remoteip": remoteIP,
	})
	if err != nil {
		return false, fmt.Errorf("marshal siteverify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("siteverify request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, fmt.Errorf("read siteverify response: %w", err)
	}

	var outcome struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &outcome); err != nil {
		return false, fmt.Errorf("decode siteverify response: %w", err)
	}
	return outcome.Success, nil
}
