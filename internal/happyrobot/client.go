// Package happyrobot is the adapter for the HappyRobot calling platform.
// It owns the wire formats and the loose-shape extraction of platform
// responses; business logic never sees raw platform payloads except through
// the extractors in this package.
package happyrobot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"salesops-console/internal/config"
)

// ErrNotConfigured marks a capability whose credentials are absent. Callers
// usually guard with the *Configured() helpers instead of hitting this.
var ErrNotConfigured = errors.New("happyrobot: capability not configured")

// APIError is a non-2xx platform response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("happyrobot: api error %d: %s", e.StatusCode, e.Body)
}

const defaultTimeout = 10 * time.Second
const maxErrorBody = 2048

type Client struct {
	endpoint string
	apiKey   string
	apiBase  string

	pollingSecret string
	orgID         string

	reconcileToken string
	useCaseID      string

	http *http.Client
}

// NewClient builds a platform client. httpClient may be nil; a client with
// a bounded timeout is used then. Every outbound call is also bounded by
// the caller's context.
func NewClient(cfg config.HappyRobotConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		endpoint:       cfg.Endpoint,
		apiKey:         cfg.APIKey,
		apiBase:        cfg.APIBase,
		pollingSecret:  cfg.PollingSecret,
		orgID:          cfg.OrgID,
		reconcileToken: cfg.ReconcileToken,
		useCaseID:      cfg.UseCaseID,
		http:           httpClient,
	}
}

func (c *Client) TriggerConfigured() bool   { return c.endpoint != "" }
func (c *Client) PollingConfigured() bool   { return c.pollingSecret != "" && c.orgID != "" }
func (c *Client) ReconcileConfigured() bool { return c.reconcileToken != "" && c.useCaseID != "" }

// StartRunRequest carries everything the workflow trigger webhook needs.
// CallID is echoed back verbatim by the platform in its callback, which is
// how asynchronous signals are correlated to a record.
type StartRunRequest struct {
	PhoneNumber string
	CallbackURL string
	CallID      string
	SubjectName string
}

type StartRunResult struct {
	// RunID is extracted from the response with first-present-wins
	// preference over the known shapes. May be empty when the platform
	// accepted the run but returned no recognizable id.
	RunID string
	Raw   map[string]any
}

func (c *Client) StartRun(ctx context.Context, req StartRunRequest) (StartRunResult, error) {
	if !c.TriggerConfigured() {
		return StartRunResult{}, ErrNotConfigured
	}

	body := map[string]any{
		"phone_number": req.PhoneNumber,
		"context": map[string]any{
			"source": map[string]any{"call_id": req.CallID},
		},
		"metadata": map[string]any{
			"callId":      req.CallID,
			"subjectName": req.SubjectName,
		},
	}
	if req.CallbackURL != "" {
		body["callback_url"] = req.CallbackURL
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return StartRunResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return StartRunResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-Api-Key", c.apiKey)
	}

	doc, err := c.do(httpReq)
	if err != nil {
		return StartRunResult{}, err
	}
	return StartRunResult{RunID: ExtractRunID(doc), Raw: doc}, nil
}

// PollRun fetches the platform-native status string for a run.
func (c *Client) PollRun(ctx context.Context, runID string) (string, error) {
	if !c.PollingConfigured() {
		return "", ErrNotConfigured
	}
	if runID == "" {
		return "", errors.New("happyrobot: run id required")
	}

	u := c.apiBase + "/runs/" + url.PathEscape(runID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.pollingSecret)
	httpReq.Header.Set("X-Organization-Id", c.orgID)

	doc, err := c.do(httpReq)
	if err != nil {
		return "", err
	}
	status, _ := doc["status"].(string)
	return status, nil
}

// RunSummary is one entry of the failed-runs feed.
type RunSummary struct {
	RunID     string
	CreatedAt time.Time
	// Data is the run's free-form payload; phone numbers hide under
	// dynamically named keys in here (see PhoneFromRunData).
	Data map[string]any
}

const failedRunsPageSize = 100

// ListFailedRuns fetches recently failed runs for the configured use case,
// bounded by since.
func (c *Client) ListFailedRuns(ctx context.Context, since time.Time) ([]RunSummary, error) {
	if !c.ReconcileConfigured() {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("use_case_id", c.useCaseID)
	q.Set("status", "failed")
	q.Set("limit", strconv.Itoa(failedRunsPageSize))
	if !since.IsZero() {
		q.Set("created_after", since.UTC().Format(time.RFC3339))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/runs?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.reconcileToken)

	raw, err := c.doRaw(httpReq)
	if err != nil {
		return nil, err
	}
	return parseRunSummaries(raw)
}

// do executes the request and decodes a JSON object response.
func (c *Client) do(req *http.Request) (map[string]any, error) {
	raw, err := c.doRaw(req)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("happyrobot: decode response: %w", err)
	}
	return doc, nil
}

func (c *Client) doRaw(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("happyrobot: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("happyrobot: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// parseRunSummaries tolerates the feed arriving as a bare array or wrapped
// under "runs", "data" or "items".
func parseRunSummaries(raw []byte) ([]RunSummary, error) {
	var items []map[string]any

	var arr []map[string]any
	if err := json.Unmarshal(raw, &arr); err == nil {
		items = arr
	} else {
		var wrapper map[string]any
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, fmt.Errorf("happyrobot: decode failed-runs feed: %w", err)
		}
		for _, key := range []string{"runs", "data", "items"} {
			if list, ok := wrapper[key].([]any); ok {
				for _, it := range list {
					if m, ok := it.(map[string]any); ok {
						items = append(items, m)
					}
				}
				break
			}
		}
	}

	out := make([]RunSummary, 0, len(items))
	for _, item := range items {
		s := RunSummary{RunID: FirstString(item, "run_id", "id")}
		if ts := FirstString(item, "created_at", "createdAt"); ts != "" {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				s.CreatedAt = t
			}
		}
		if data, ok := item["data"].(map[string]any); ok {
			s.Data = data
		} else {
			// Some feed variants inline the payload on the item itself.
			s.Data = item
		}
		out = append(out, s)
	}
	return out, nil
}
