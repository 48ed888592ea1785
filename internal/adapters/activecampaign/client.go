// Package activecampaign is a small client for the ActiveCampaign v3 REST API,
// covering tags and automations.
package activecampaign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/skipshean/linear-agent-tasks/internal/logging"
	"github.com/skipshean/linear-agent-tasks/internal/remedy"
)

// findLimit is the page size used when searching tags by name.
const findLimit = 1000

// Client is an ActiveCampaign API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	interval   time.Duration

	mu   sync.Mutex
	last time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default 30s-timeout HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRequestInterval sets the minimum spacing between requests (default 100ms).
func WithRequestInterval(d time.Duration) Option {
	return func(c *Client) { c.interval = d }
}

// NewClient creates a client for the account at apiURL
// (e.g. https://myaccount.api-us1.com).
func NewClient(apiURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(apiURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		interval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// throttle waits until interval has passed since the previous request.
func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	wait := c.interval - time.Since(c.last)
	c.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	c.mu.Lock()
	c.last = time.Now()
	c.mu.Unlock()
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, result interface{}) error {
	if err := c.throttle(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Api-Token", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("API error (%d) %s %s: %s", resp.StatusCode, method, endpoint, strings.TrimSpace(string(respBody)))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return remedy.Wrap(err,
				"Check activecampaign.api_url and activecampaign.api_key in the team configuration",
				"Find both under Settings → Developer in ActiveCampaign")
		}
		return err
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// ListTags returns one page of tags.
func (c *Client) ListTags(ctx context.Context, limit, offset int) ([]Tag, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	q.Set("offset", fmt.Sprint(offset))

	var resp tagsResponse
	if err := c.do(ctx, http.MethodGet, "/api/3/tags?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tags, nil
}

// FindTag looks a tag up by name, case-insensitively. A nil tag with a nil
// error means no match.
func (c *Client) FindTag(ctx context.Context, name string) (*Tag, error) {
	tags, err := c.ListTags(ctx, findLimit, 0)
	if err != nil {
		return nil, err
	}
	for i := range tags {
		if strings.EqualFold(tags[i].Tag, name) {
			return &tags[i], nil
		}
	}
	return nil, nil
}

// CreateTag creates a tag unless one with the same name (case-insensitive)
// already exists, in which case the existing tag is returned and created is
// false.
func (c *Client) CreateTag(ctx context.Context, name, tagType, description string) (tag *Tag, created bool, err error) {
	existing, err := c.FindTag(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	if tagType == "" {
		tagType = TagTypeContact
	}
	body := tagResponse{Tag: Tag{Tag: name, TagType: tagType, Description: description}}

	var resp tagResponse
	if err := c.do(ctx, http.MethodPost, "/api/3/tags", body, &resp); err != nil {
		return nil, false, err
	}
	logging.WithComponent("activecampaign").Debug("Created tag", slog.String("tag", name), slog.String("id", resp.Tag.ID))
	return &resp.Tag, true, nil
}

// ListAutomations returns the account's automations.
func (c *Client) ListAutomations(ctx context.Context) ([]Automation, error) {
	var resp automationsResponse
	if err := c.do(ctx, http.MethodGet, "/api/3/automations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Automations, nil
}

// GetAutomation returns one automation together with its blocks.
func (c *Client) GetAutomation(ctx context.Context, id string) (*Automation, error) {
	var resp automationResponse
	if err := c.do(ctx, http.MethodGet, "/api/3/automations/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}

	var blocks blocksResponse
	if err := c.do(ctx, http.MethodGet, "/api/3/automations/"+url.PathEscape(id)+"/blocks", nil, &blocks); err != nil {
		return nil, err
	}

	a := resp.Automation
	if a.ID == "" {
		a.ID = id
	}
	a.Blocks = blocks.AutomationBlocks
	return &a, nil
}

// PlanGoal builds the manual instructions for adding a goal to an automation.
// The v3 API has no endpoint for creating goal blocks.
func (c *Client) PlanGoal(ctx context.Context, automationID, goalName string) (*GoalPlan, error) {
	a, err := c.GetAutomation(ctx, automationID)
	if err != nil {
		return nil, err
	}

	name := a.Name
	if name == "" {
		name = "Automation " + automationID
	}

	return &GoalPlan{
		GoalName:       goalName,
		AutomationID:   automationID,
		AutomationName: name,
		Instructions: []string{
			"Go to ActiveCampaign → Automations → " + name,
			`Add a "Goal" block to the automation`,
			fmt.Sprintf("Name the goal: %q", goalName),
			"Configure the goal trigger conditions",
			"Save the automation",
		},
		AutomationURL:   c.AutomationURL(automationID),
		BlocksAvailable: len(a.Blocks) > 0,
	}, nil
}

// AutomationURL is the UI link for an automation.
func (c *Client) AutomationURL(id string) string {
	host := c.baseURL
	if u, err := url.Parse(c.baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return "https://" + host + "/app/automations/" + id
}
