// Package identity verifies federated identity assertions against the
// issuing provider.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/theseyan/418-nits-hacks/internal/apperr"
	"github.com/theseyan/418-nits-hacks/internal/domain"
)

const googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// Verifier validates a raw identity assertion and returns the verified
// identity, failing with Unauthorized for anything the provider rejects.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (domain.Identity, error)
}

// GoogleVerifier checks Google Identity Services ID tokens via the tokeninfo
// endpoint and enforces the audience against the registered client IDs.
type GoogleVerifier struct {
	httpClient *http.Client
	audiences  []string
	endpoint   string
}

var _ Verifier = (*GoogleVerifier)(nil)

// NewGoogleVerifier constructs the verifier. audiences is the set of OAuth
// client IDs this deployment accepts tokens for.
func NewGoogleVerifier(client *http.Client, audiences []string) *GoogleVerifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleVerifier{httpClient: client, audiences: audiences, endpoint: googleTokenInfoURL}
}

type tokenInfoResponse struct {
	Subject  string `json:"sub"`
	Audience string `json:"aud"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Picture  string `json:"picture"`
	Expiry   string `json:"exp"`
}

func (v *GoogleVerifier) Verify(ctx context.Context, rawToken string) (domain.Identity, error) {
	if strings.TrimSpace(rawToken) == "" {
		return domain.Identity{}, apperr.Unauthorized("Invalid GIS ID token")
	}

	endpoint := v.endpoint + "?id_token=" + url.QueryEscape(rawToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("build tokeninfo request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("tokeninfo request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("read tokeninfo response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Identity{}, apperr.Unauthorized("Invalid GIS ID token")
	}

	var info tokenInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return domain.Identity{}, fmt.Errorf("decode tokeninfo response: %w", err)
	}

	if !v.audienceAllowed(info.Audience) {
		return domain.Identity{}, apperr.Unauthorized("Invalid GIS ID token")
	}
	if exp, err := strconv.ParseInt(info.Expiry, 10, 64); err != nil || time.Now().Unix() >= exp {
		return domain.Identity{}, apperr.Unauthorized("Invalid GIS ID token")
	}
	if info.Subject == "" {
		return domain.Identity{}, apperr.Unauthorized("Invalid GIS ID token")
	}

	return domain.Identity{
		ExternalID: info.Subject,
		Email:      info.Email,
		Name:       info.Name,
		Picture:    info.Picture,
	}, nil
}

func (v *GoogleVerifier) audienceAllowed(aud string) bool {
	for _, allowed := range v.audiences {
		if strings.TrimSpace(allowed) == aud && aud != "" {
			return true
		}
	}
	return false
}
