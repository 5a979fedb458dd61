package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent"

// FailurePlaceholder is returned in place of a summary when the model call
// fails permanently. Callers persist it like any other summary.
const FailurePlaceholder = "Summary unavailable"

// ErrRateLimited is returned once the retry budget for rate-limited calls is
// exhausted.
var ErrRateLimited = errors.New("gemini: still rate limited after retries")

const promptTemplate = `You are an email assistant. Summarize the following email in one or two short sentences. Mention any action item or deadline if present. Output only the summary.

Subject: %s

Body: %s

Summary:`

type Service struct {
	apiKey     string
	baseURL    string
	maxTries   int
	httpClient *http.Client
}

func NewService(apiKey, baseURL string, maxTries int) *Service {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if maxTries <= 0 {
		maxTries = 5
	}
	return &Service{
		apiKey:     apiKey,
		baseURL:    baseURL,
		maxTries:   maxTries,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Summarize produces a short semantic summary of one message. Rate limits
// and transient transport errors are retried with capped exponential
// backoff; once the budget is spent the call fails with ErrRateLimited. Any
// other failure yields the placeholder text instead of an error.
func (s *Service) Summarize(ctx context.Context, subject, body string) (string, error) {
	emailText := fmt.Sprintf(promptTemplate, subject, truncate(body, 5000))

	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: emailText}}}},
	})
	if err != nil {
		return FailurePlaceholder, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.Multiplier = 2

	var summary string
	err = backoff.Retry(func() error {
		var callErr error
		summary, callErr = s.call(ctx, payload)
		return callErr
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.maxTries-1)), ctx))

	if err != nil {
		var permanent *permanentError
		if errors.As(err, &permanent) {
			return FailurePlaceholder, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", ErrRateLimited
	}

	return strings.TrimSpace(summary), nil
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func (s *Service) call(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"?key="+s.apiKey, bytes.NewReader(payload))
	if err != nil {
		return "", backoff.Permanent(&permanentError{err})
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// Connection reset / timeout: retryable.
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", fmt.Errorf("gemini API %d: %s", resp.StatusCode, respBody)
	default:
		return "", backoff.Permanent(&permanentError{fmt.Errorf("gemini API %d: %s", resp.StatusCode, respBody)})
	}

	var result generateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", backoff.Permanent(&permanentError{err})
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", backoff.Permanent(&permanentError{errors.New("no summary returned")})
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
