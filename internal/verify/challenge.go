package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	apperrors "redemption-gate/pkg/errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultRecaptchaURL is Google's siteverify endpoint.
const DefaultRecaptchaURL = "https://www.google.com/recaptcha/api/siteverify"

// ChallengeVerifier checks a human-challenge token server side.
type ChallengeVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// NewChallengeVerifier returns a reCAPTCHA verifier when a secret is
// configured and a static one otherwise.
func NewChallengeVerifier(secret, verifyURL string) ChallengeVerifier {
	if secret == "" {
		log.Warn("RECAPTCHA_SECRET not set, accepting any non-empty challenge token")
		return StaticVerifier{}
	}
	return NewRecaptchaVerifier(secret, verifyURL)
}

// StaticVerifier accepts any non-empty token. Development only.
type StaticVerifier struct{}

// Verify implements ChallengeVerifier
func (StaticVerifier) Verify(_ context.Context, token, _ string) (bool, error) {
	return strings.TrimSpace(token) != "", nil
}

// RecaptchaVerifier calls the reCAPTCHA siteverify API.
type RecaptchaVerifier struct {
	secret    string
	verifyURL string
	client    *http.Client
}

// NewRecaptchaVerifier creates a siteverify client
func NewRecaptchaVerifier(secret, verifyURL string) *RecaptchaVerifier {
	if verifyURL == "" {
		verifyURL = DefaultRecaptchaURL
	}
	return &RecaptchaVerifier{
		secret:    secret,
		verifyURL: verifyURL,
		client:    &http.Client{Timeout: 5 * time.Second},
	}
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify implements ChallengeVerifier. An unreachable or failing API is a
// transient error; a rejected token is (false, nil).
func (v *RecaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: siteverify: %w", apperrors.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: siteverify returned status %d", apperrors.ErrTransient, resp.StatusCode)
	}

	var body siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("%w: decode siteverify response: %w", apperrors.ErrTransient, err)
	}
	if !body.Success {
		log.WithField("error_codes", body.ErrorCodes).Debug("challenge token rejected")
	}
	return body.Success, nil
}
