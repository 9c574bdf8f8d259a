package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Error codes present in provider error envelopes.
const (
	codeInvalidCode        = "invalid_code"
	codeTransactionExpired = "transaction_expired"
)

// Client calls the identity provider's HTTP API. All endpoints are bearer
// authenticated; token acquisition is lazy and the token is reused until it
// expires or the provider rejects it.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       *slog.Logger
	tokens       *tokenCache
}

// NewClient builds a provider client. Every request is bounded by timeout.
func NewClient(baseURL, clientID, clientSecret string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
		tokens:       &tokenCache{},
	}
}

type envelope struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// VerifyIdentity resolves a national identity number into a verified profile.
// Returns ErrNotFound when the provider has no such identity.
func (c *Client) VerifyIdentity(ctx context.Context, nationalID string) (IdentityRecord, error) {
	var out struct {
		envelope
		Record IdentityRecord `json:"record"`
	}
	payload := map[string]string{"nationalId": nationalID}
	if err := c.post(ctx, "/authorize", payload, &out); err != nil {
		return IdentityRecord{}, err
	}
	return out.Record, nil
}

// RequestOTP starts a new OTP transaction for the given identity and mobile
// number. The returned transaction identifier is opaque and must accompany
// every later verify call for this attempt.
func (c *Client) RequestOTP(ctx context.Context, nationalID, mobileNumber string) (string, error) {
	var out struct {
		envelope
		TransactionID string `json:"transactionId"`
	}
	payload := map[string]string{"nationalId": nationalID, "mobileNumber": mobileNumber}
	if err := c.post(ctx, "/authenticate", payload, &out); err != nil {
		return "", err
	}
	if out.TransactionID == "" {
		return "", &Error{Status: http.StatusOK, Message: "provider returned no transaction id"}
	}
	return out.TransactionID, nil
}

// VerifyOTP checks a submitted code against a transaction. A mismatch is
// reported structurally: ErrInvalidCode means the caller may retry,
// ErrTransactionExpired means the transaction must be re-issued.
func (c *Client) VerifyOTP(ctx context.Context, transactionID, code string) error {
	var out envelope
	payload := map[string]string{"transactionId": transactionID, "code": code}
	return c.post(ctx, "/verify", payload, &out)
}

// post performs one bearer-authenticated request. On a 401 it performs exactly
// one silent token refresh and retries the original request once; a second
// rejection surfaces as ErrAuthRejected rather than looping.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	token, err := c.tokens.get(ctx, "", c.fetchToken)
	if err != nil {
		return err
	}

	status, body, err := c.send(ctx, path, token, payload)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		c.logger.Debug("provider rejected bearer token, refreshing once", slog.String("path", path))
		token, err = c.tokens.get(ctx, token, c.fetchToken)
		if err != nil {
			return err
		}
		status, body, err = c.send(ctx, path, token, payload)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return fmt.Errorf("%s: %w", path, ErrAuthRejected)
		}
	}

	return c.decode(path, status, body, out)
}

// send executes a single HTTP round trip. Transport failures come back as
// *Error so callers can classify them as transient.
func (c *Client) send(ctx context.Context, path, token string, payload any) (int, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &Error{Status: resp.StatusCode, Message: err.Error()}
	}
	return resp.StatusCode, body, nil
}

// decode maps a provider response onto typed outcomes.
func (c *Client) decode(path string, status int, body []byte, out any) error {
	var env envelope
	_ = json.Unmarshal(body, &env)

	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	case status >= 200 && status < 300 && env.Status == "success":
		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				return &Error{Status: status, Message: "malformed provider response"}
			}
		}
		return nil
	case env.Code == codeInvalidCode:
		return fmt.Errorf("%s: %w", path, ErrInvalidCode)
	case env.Code == codeTransactionExpired:
		return fmt.Errorf("%s: %w", path, ErrTransactionExpired)
	default:
		return &Error{Status: status, Code: env.Code, Message: env.Message}
	}
}

// fetchToken acquires a fresh bearer token with the configured client
// credentials.
func (c *Client) fetchToken(ctx context.Context) (string, time.Time, error) {
	raw, err := json.Marshal(map[string]string{
		"clientId":     c.clientID,
		"clientSecret": c.clientSecret,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", bytes.NewReader(raw))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	var out struct {
		envelope
		AccessToken string `json:"accessToken"`
		ExpiresIn   int    `json:"expiresIn"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || resp.StatusCode != http.StatusOK || out.AccessToken == "" {
		return "", time.Time{}, &Error{Status: resp.StatusCode, Code: out.Code, Message: "token acquisition failed"}
	}

	c.logger.Debug("acquired provider bearer token", slog.Int("expires_in", out.ExpiresIn))
	return out.AccessToken, time.Now().Add(time.Duration(out.ExpiresIn) * time.Second), nil
}
