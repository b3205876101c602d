// Package gas is the client for the Google Apps Script web app that fronts
// the diagnosis spreadsheet, the mail sender and the report folder.
//
// Every call is a POST of {"action": ..., "token": ..., ...} to the script
// URL. The script answers {"success": bool, "data": ..., "error": ...,
// "code": ...}. Saves are keyed by diagnosisId on the script side, so a
// retried save overwrites rather than duplicates.
package gas

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pavelanni/aidiag/internal/model"
)

// Script actions.
const (
	ActionSave         = "saveDiagnosis"
	ActionGet          = "getDiagnosisResult"
	ActionFindByEmail  = "findDiagnosisByEmail"
	ActionList         = "listDiagnoses"
	ActionNotify       = "sendNotification"
	ActionUploadReport = "uploadReport"
	ActionPing         = "ping"
)

const codeNotFound = "NOT_FOUND"

// Config holds the settings for a Client.
type Config struct {
	URL        string
	Token      string
	AdminEmail string
	// ResultURL is the public result page; the diagnosis id is appended
	// as a query parameter in notification emails.
	ResultURL  string
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
}

// Client calls the Apps Script web app.
type Client struct {
	url        string
	token      string
	adminEmail string
	resultURL  string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

// New creates a client. The URL is required.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("gas: script URL is required")
	}
	c := &Client{
		url:        cfg.URL,
		token:      cfg.Token,
		adminEmail: cfg.AdminEmail,
		resultURL:  cfg.ResultURL,
		httpClient: cfg.HTTPClient,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
	if c.httpClient == nil {
		// per-call deadlines come from the caller's context
		c.httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if c.maxRetries <= 0 {
		c.maxRetries = 3
	}
	if c.backoff <= 0 {
		c.backoff = 500 * time.Millisecond
	}
	return c, nil
}

// StatusError is a non-2xx answer or a script-level failure.
type StatusError struct {
	Action string
	Status int
	Code   string
	Msg    string
}

func (e *StatusError) Error() string {
	if e.Status != 0 && e.Status != http.StatusOK {
		return fmt.Sprintf("gas %s: HTTP %d: %s", e.Action, e.Status, e.Msg)
	}
	return fmt.Sprintf("gas %s: %s", e.Action, e.Msg)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

// SaveDiagnosis appends (or replaces) the row for r.
func (c *Client) SaveDiagnosis(ctx context.Context, r model.DiagnosisResult) error {
	row, err := ToRow(r)
	if err != nil {
		return err
	}
	return c.call(ctx, ActionSave, map[string]any{"row": row}, nil)
}

// GetDiagnosis looks up a row by exact diagnosis id.
func (c *Client) GetDiagnosis(ctx context.Context, id string) (model.DiagnosisResult, error) {
	var row Row
	if err := c.call(ctx, ActionGet, map[string]any{"diagnosisId": id}, &row); err != nil {
		return model.DiagnosisResult{}, err
	}
	if row.DiagnosisID == "" {
		return model.DiagnosisResult{}, model.ErrNotFound
	}
	return row.Result()
}

// FindLatestByEmail returns the most recent row whose contact email matches.
func (c *Client) FindLatestByEmail(ctx context.Context, email string) (model.DiagnosisResult, error) {
	var rows []Row
	payload := map[string]any{"email": strings.ToLower(strings.TrimSpace(email))}
	if err := c.call(ctx, ActionFindByEmail, payload, &rows); err != nil {
		return model.DiagnosisResult{}, err
	}
	if len(rows) == 0 {
		return model.DiagnosisResult{}, model.ErrNotFound
	}
	latest := rows[0]
	for _, row := range rows[1:] {
		// RFC 3339 UTC timestamps sort lexically
		if row.Timestamp > latest.Timestamp {
			latest = row
		}
	}
	return latest.Result()
}

// ListDiagnoses returns up to limit summaries, most recent first.
func (c *Client) ListDiagnoses(ctx context.Context, limit int) ([]model.DiagnosisSummary, error) {
	var rows []Row
	if err := c.call(ctx, ActionList, map[string]any{"limit": limit}, &rows); err != nil {
		return nil, err
	}
	out := make([]model.DiagnosisSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Summary())
	}
	return out, nil
}

// SendNotification asks the script to email the contact and the admin.
func (c *Client) SendNotification(ctx context.Context, r model.DiagnosisResult) error {
	payload := map[string]any{
		"diagnosisId":   r.DiagnosisID,
		"to":            r.Company.ContactEmail,
		"contactName":   r.Company.ContactName,
		"companyName":   r.Company.Name,
		"overallScore":  r.OverallScore,
		"grade":         r.Grade,
		"maturityLevel": r.MaturityLevel,
	}
	if c.adminEmail != "" {
		payload["adminEmail"] = c.adminEmail
	}
	if c.resultURL != "" {
		payload["resultUrl"] = c.resultURL + "?diagnosisId=" + r.DiagnosisID
	}
	return c.call(ctx, ActionNotify, payload, nil)
}

// UploadReport stores an HTML report in the script's Drive folder and
// returns its shareable URL.
func (c *Client) UploadReport(ctx context.Context, fileName, html string) (string, error) {
	var out struct {
		URL    string `json:"url"`
		FileID string `json:"fileId"`
	}
	payload := map[string]any{
		"fileName": fileName,
		"mimeType": "text/html",
		"content":  base64.StdEncoding.EncodeToString([]byte(html)),
	}
	if err := c.call(ctx, ActionUploadReport, payload, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", &StatusError{Action: ActionUploadReport, Msg: "script returned no URL"}
	}
	return out.URL, nil
}

// Ping checks that the script answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, ActionPing, nil, nil)
}

// call posts one action and decodes the data field into out when non-nil.
func (c *Client) call(ctx context.Context, action string, payload map[string]any, out any) error {
	body := map[string]any{"action": action}
	if c.token != "" {
		body["token"] = c.token
	}
	for k, v := range payload {
		body[k] = v
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("gas %s: marshal request: %w", action, err)
	}

	attempts := c.maxRetries
	if action == ActionNotify {
		// The script may have sent the mail before failing.
		attempts = 1
	}
	respBody, status, err := c.doRequest(ctx, action, data, attempts)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return &StatusError{Action: action, Status: status, Msg: "invalid JSON response: " + truncate(string(respBody), 200)}
	}
	if !env.Success {
		if env.Code == codeNotFound {
			return model.ErrNotFound
		}
		msg := env.Error
		if msg == "" {
			msg = "script reported failure"
		}
		return &StatusError{Action: action, Status: status, Code: env.Code, Msg: msg}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("gas %s: decode data: %w", action, err)
		}
	}
	return nil
}

// doRequest performs the HTTP request, retrying transport errors, 429
// and 5xx up to attempts times. It stops early when ctx is done.
func (c *Client) doRequest(ctx context.Context, action string, data []byte, attempts int) ([]byte, int, error) {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(math.Pow(2, float64(attempt-1))) * c.backoff
			slog.Warn("gas retry", "action", action, "attempt", attempt+1, "max", attempts, "wait", wait, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, 0, fmt.Errorf("gas %s: %w (last error: %v)", action, ctx.Err(), lastErr)
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
		if err != nil {
			return nil, 0, fmt.Errorf("gas %s: create request: %w", action, err)
		}
		req.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, fmt.Errorf("gas %s: %w", action, ctx.Err())
			}
			lastErr = err
			continue
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		slog.Debug("gas response", "action", action, "status", resp.StatusCode, "bytes", len(respBody), "elapsed", time.Since(start))

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &StatusError{Action: action, Status: resp.StatusCode, Msg: truncate(string(respBody), 200)}
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, resp.StatusCode, &StatusError{Action: action, Status: resp.StatusCode, Msg: truncate(string(respBody), 200)}
		}
		return respBody, resp.StatusCode, nil
	}
	return nil, 0, fmt.Errorf("gas %s: giving up after %d attempts: %w", action, attempts, lastErr)
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
