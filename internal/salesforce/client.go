package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/svbridge/validation-bridge/internal/session"
)

// Tokens is the per-request credential set for Tooling API calls, derived
// from an authenticated session.
type Tokens struct {
	AccessToken string
	InstanceURL string
	DomainType  DomainType
}

// DeriveTokens extracts API credentials from a session record. It reports
// false when the record is missing, unauthenticated, or lacks either the
// access token or the instance URL.
func DeriveTokens(rec *session.Record) (Tokens, bool) {
	if rec == nil || !rec.Authenticated {
		return Tokens{}, false
	}
	if rec.AccessToken == "" || rec.InstanceURL == "" {
		return Tokens{}, false
	}
	return Tokens{
		AccessToken: rec.AccessToken,
		InstanceURL: rec.InstanceURL,
		DomainType:  ParseDomainType(rec.DomainType),
	}, true
}

// APIError is a failure reported by the Salesforce API, carrying the
// upstream HTTP status and error code so handlers can pass them through.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("salesforce API error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("salesforce API error %d: %s", e.Status, e.Message)
}

// Client performs raw Tooling API requests against an org's instance URL.
type Client struct {
	apiVersion string
	httpClient *http.Client
}

// NewClient creates a Tooling API client pinned to one API version. Every
// request is bounded by the given timeout.
func NewClient(apiVersion string, timeout time.Duration) *Client {
	return &Client{
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// do issues a Tooling API request. path is relative to the instance URL and
// must begin with a slash. A non-2xx response is returned as *APIError with
// the upstream status and first error code.
func (c *Client) do(ctx context.Context, tokens Tokens, method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, tokens.InstanceURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("salesforce request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseAPIError(resp.StatusCode, data)
	}
	return data, nil
}

// parseAPIError extracts the upstream error code and message. Salesforce
// normally returns an array of {message, errorCode} objects; the first entry
// wins. Other shapes degrade to a generic message.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{
		Status:  status,
		Message: "Salesforce API error",
	}

	var entries []struct {
		Message   string `json:"message"`
		ErrorCode string `json:"errorCode"`
	}
	if err := json.Unmarshal(body, &entries); err == nil && len(entries) > 0 {
		if entries[0].ErrorCode != "" {
			apiErr.Code = entries[0].ErrorCode
		}
		if entries[0].Message != "" {
			apiErr.Message = entries[0].Message
		}
		return apiErr
	}

	var obj struct {
		Message          string `json:"message"`
		ErrorCode        string `json:"errorCode"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &obj); err == nil {
		switch {
		case obj.ErrorCode != "" || obj.Message != "":
			apiErr.Code = obj.ErrorCode
			if obj.Message != "" {
				apiErr.Message = obj.Message
			}
		case obj.Error != "":
			apiErr.Code = obj.Error
			if obj.ErrorDescription != "" {
				apiErr.Message = obj.ErrorDescription
			}
		}
	}
	return apiErr
}

// toolingPath builds a Tooling API path under the configured version.
func (c *Client) toolingPath(suffix string) string {
	return "/services/data/" + c.apiVersion + "/tooling" + suffix
}
