package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pos-sync/internal/common/models"
	"pos-sync/internal/config"
	"pos-sync/internal/syncerr"

	"go.uber.org/zap"
)

// largest response body kept in memory and in last_error
const maxBodyBytes = 1 << 20

// ImportResult is the answer of POST /import/sqlite-data.
type ImportResult struct {
	Stats map[string]any `json:"stats"`
}

// Client talks to the remote POS API. Every call gets its own timeout.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	session *Session
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, session *Session, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{},
		session: session,
		logger:  logger,
	}
}

// NewRemoteClient builds the client and its session from config.
func NewRemoteClient(cfg *config.Config, logger *zap.Logger) *Client {
	session := NewSession(Credentials{Email: cfg.RemoteEmail, Password: cfg.RemotePassword})
	return NewClient(cfg.RemoteBaseURL, cfg.RemoteTimeout, session, logger)
}

func (c *Client) Session() *Session {
	return c.session
}

// Authenticate implements Authenticator against POST /auth/login. Any
// failure, network errors included, is an AUTH_ERROR.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}

	status, resp, err := c.send(ctx, http.MethodPost, "/auth/login", "", body)
	if err != nil {
		return "", syncerr.Auth("login failed", err)
	}
	if status < 200 || status > 299 {
		return "", syncerr.Auth(fmt.Sprintf("login rejected (HTTP %d)", status), nil)
	}

	var out struct {
		AccessToken string `json:"accessToken"`
		Token       string `json:"access_token"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return "", syncerr.Auth("invalid login response", err)
	}
	token := out.AccessToken
	if token == "" {
		token = out.Token
	}
	if token == "" {
		return "", syncerr.Auth("login response has no access token", nil)
	}

	c.logger.Info("Authenticated against remote API", zap.String("email", creds.Email))
	return token, nil
}

// List fetches GET /<resource>. Both a bare array and {"data": [...]} are accepted.
func (c *Client) List(ctx context.Context, resource string) ([]models.Record, error) {
	body, err := c.do(ctx, http.MethodGet, "/"+resource, nil)
	if err != nil {
		return nil, err
	}
	return decodeRecords(body)
}

// Import upserts records of one local table through POST /import/sqlite-data.
// The remote keys rows by their id, so replaying an import is harmless.
func (c *Client) Import(ctx context.Context, table string, records []models.Record) (*ImportResult, error) {
	payload, err := json.Marshal(map[string][]models.Record{table: records})
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPost, "/import/sqlite-data", payload)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			c.logger.Warn("Unreadable import response", zap.String("table", table), zap.Error(err))
		}
	}
	return result, nil
}

func (c *Client) Delete(ctx context.Context, resource, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/"+resource+"/"+url.PathEscape(id), nil)
	return err
}

// IsNotFound reports a 404 from the remote API.
func IsNotFound(err error) bool {
	var e *syncerr.Error
	return errors.As(err, &e) && e.Status == http.StatusNotFound
}

// do performs an authenticated call. A 401 drops the session token, logs in
// once more and retries; a second 401 is an AUTH_ERROR.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	token, err := c.session.Ensure(ctx, c)
	if err != nil {
		return nil, err
	}

	status, body, err := c.send(ctx, method, path, token, payload)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		c.logger.Info("Remote token rejected, logging in again", zap.String("path", path))
		c.session.Invalidate()
		if token, err = c.session.Refresh(ctx, c); err != nil {
			return nil, err
		}
		if status, body, err = c.send(ctx, method, path, token, payload); err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			c.session.Invalidate()
			return nil, syncerr.Auth("remote rejected a fresh token", nil)
		}
	}

	if err := classify(status, body); err != nil {
		return nil, err
	}
	return body, nil
}

// send issues one HTTP request bounded by the client timeout. Transport
// failures come back as TRANSIENT_ERROR; a timeout is marked ambiguous.
func (c *Client) send(ctx context.Context, method, path, token string, payload []byte) (int, []byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return 0, nil, syncerr.Timeout(err)
		}
		return 0, nil, syncerr.Transient(fmt.Sprintf("%s %s failed", method, path), 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return 0, nil, syncerr.Timeout(err)
		}
		return 0, nil, syncerr.Transient(fmt.Sprintf("%s %s: reading response", method, path), resp.StatusCode, err)
	}

	c.logger.Debug("Remote call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return resp.StatusCode, body, nil
}

func classify(status int, body []byte) error {
	switch {
	case status >= 200 && status <= 299:
		return nil
	case status == http.StatusUnauthorized:
		return syncerr.Auth("unauthorized", nil)
	case status >= 400 && status <= 499:
		return syncerr.Validation(status, strings.TrimSpace(string(body)))
	default:
		return &syncerr.Error{
			Kind:    syncerr.KindTransient,
			Message: "remote server error",
			Status:  status,
			Body:    strings.TrimSpace(string(body)),
		}
	}
}

func decodeRecords(body []byte) ([]models.Record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if trimmed[0] == '[' {
		var records []models.Record
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("failed to decode list: %w", err)
		}
		return records, nil
	}

	var wrapped struct {
		Data []models.Record `json:"data"`
	}
	if err := dec.Decode(&wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	return wrapped.Data, nil
}
