package activecampaign

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/skipshean/linear-agent-tasks/internal/remedy"
	"github.com/skipshean/linear-agent-tasks/internal/testutil"
)

// fakeCRM is an in-memory stand-in for the tags and automations endpoints.
type fakeCRM struct {
	t        *testing.T
	tags     []Tag
	posts    int
	requests []string
}

func (f *fakeCRM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	if r.Header.Get("Api-Token") != testutil.FakeActiveCampaignKey {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/3/tags":
		_ = json.NewEncoder(w).Encode(tagsResponse{Tags: f.tags})
	case r.Method == http.MethodPost && r.URL.Path == "/api/3/tags":
		var body tagResponse
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			f.t.Errorf("decode tag body: %v", err)
		}
		f.posts++
		body.Tag.ID = "new-" + body.Tag.Tag
		f.tags = append(f.tags, body.Tag)
		_ = json.NewEncoder(w).Encode(body)
	case r.URL.Path == "/api/3/automations":
		_, _ = w.Write([]byte(`{"automations": [{"id": "7", "name": "Onboarding Sequence"}, {"id": "8", "name": "Win-back"}]}`))
	case r.URL.Path == "/api/3/automations/7":
		_, _ = w.Write([]byte(`{"automation": {"id": "7", "name": "Onboarding Sequence"}}`))
	case r.URL.Path == "/api/3/automations/7/blocks":
		_, _ = w.Write([]byte(`{"automationBlocks": [{"id": "b1", "type": "start"}, {"id": "b2", "type": "send"}]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newFake(t *testing.T, tags ...Tag) (*fakeCRM, *Client) {
	f := &fakeCRM{t: t, tags: tags}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, NewClient(srv.URL+"/", testutil.FakeActiveCampaignKey, WithRequestInterval(0))
}

func TestNewClient(t *testing.T) {
	c := NewClient(testutil.FakeActiveCampaignURL+"/", testutil.FakeActiveCampaignKey)
	if c.baseURL != testutil.FakeActiveCampaignURL {
		t.Errorf("baseURL = %q, trailing slash should be trimmed", c.baseURL)
	}
	if c.interval != 100*time.Millisecond {
		t.Errorf("interval = %v, want 100ms", c.interval)
	}
}

func TestListTags_Pagination(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"tags": [{"id": "1", "tag": "[Lifecycle] Trial Started"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testutil.FakeActiveCampaignKey, WithRequestInterval(0))
	tags, err := c.ListTags(context.Background(), 50, 100)
	if err != nil {
		t.Fatalf("ListTags() error = %v", err)
	}
	if gotQuery != "limit=50&offset=100" {
		t.Errorf("query = %q", gotQuery)
	}
	if len(tags) != 1 || tags[0].Tag != "[Lifecycle] Trial Started" {
		t.Errorf("tags = %+v", tags)
	}
}

func TestFindTag_CaseInsensitive(t *testing.T) {
	_, c := newFake(t, Tag{ID: "1", Tag: "[Lifecycle] Trial Started"})

	tag, err := c.FindTag(context.Background(), "[lifecycle] trial STARTED")
	if err != nil {
		t.Fatalf("FindTag() error = %v", err)
	}
	if tag == nil || tag.ID != "1" {
		t.Errorf("tag = %+v, want id 1", tag)
	}

	missing, err := c.FindTag(context.Background(), "[Lifecycle] Churned")
	if err != nil || missing != nil {
		t.Errorf("FindTag(missing) = %+v, %v; want nil, nil", missing, err)
	}
}

func TestCreateTag_Idempotent(t *testing.T) {
	f, c := newFake(t)
	ctx := context.Background()

	first, created, err := c.CreateTag(ctx, "[Plan] Pro", "", "")
	if err != nil {
		t.Fatalf("CreateTag() error = %v", err)
	}
	if !created || first.TagType != TagTypeContact {
		t.Errorf("first call: created=%v tag=%+v", created, first)
	}

	second, created, err := c.CreateTag(ctx, "[plan] pro", TagTypeContact, "")
	if err != nil {
		t.Fatalf("CreateTag() error = %v", err)
	}
	if created {
		t.Error("second call with same name should not create")
	}
	if second.ID != first.ID {
		t.Errorf("second.ID = %q, want existing %q", second.ID, first.ID)
	}
	if f.posts != 1 {
		t.Errorf("POSTs = %d, want 1", f.posts)
	}
}

func TestListAutomations(t *testing.T) {
	_, c := newFake(t)
	autos, err := c.ListAutomations(context.Background())
	if err != nil {
		t.Fatalf("ListAutomations() error = %v", err)
	}
	want := []Automation{{ID: "7", Name: "Onboarding Sequence"}, {ID: "8", Name: "Win-back"}}
	if diff := cmp.Diff(want, autos); diff != "" {
		t.Errorf("automations mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanGoal(t *testing.T) {
	f, c := newFake(t)

	plan, err := c.PlanGoal(context.Background(), "7", "Completed Onboarding")
	if err != nil {
		t.Fatalf("PlanGoal() error = %v", err)
	}

	if plan.Status() != "manual_required" {
		t.Errorf("Status() = %q", plan.Status())
	}
	if plan.AutomationName != "Onboarding Sequence" || !plan.BlocksAvailable {
		t.Errorf("plan = %+v", plan)
	}
	if len(plan.Instructions) != 5 || !strings.Contains(plan.Instructions[2], `"Completed Onboarding"`) {
		t.Errorf("instructions = %v", plan.Instructions)
	}
	if !strings.HasPrefix(plan.AutomationURL, "https://127.0.0.1:") || !strings.HasSuffix(plan.AutomationURL, "/app/automations/7") {
		t.Errorf("AutomationURL = %q", plan.AutomationURL)
	}

	wantReqs := []string{"GET /api/3/automations/7", "GET /api/3/automations/7/blocks"}
	if diff := cmp.Diff(wantReqs, f.requests); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestAuthErrorCarriesSteps(t *testing.T) {
	f := &fakeCRM{t: t}
	srv := httptest.NewServer(f)
	defer srv.Close()

	c := NewClient(srv.URL, "wrong-key", WithRequestInterval(0))
	_, err := c.ListAutomations(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "API error (403)") {
		t.Errorf("error = %q", err)
	}
	if len(remedy.Steps(err)) == 0 {
		t.Error("auth failure should carry next steps")
	}
}

func TestThrottle_RespectsContext(t *testing.T) {
	c := NewClient("http://unused", "k", WithRequestInterval(time.Hour))
	c.last = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.throttle(ctx); err == nil {
		t.Error("throttle should return the context error when cancelled")
	}
}

func TestAutomationURL(t *testing.T) {
	c := NewClient(testutil.FakeActiveCampaignURL, "k")
	if got := c.AutomationURL("42"); got != "https://example.api-us1.test/app/automations/42" {
		t.Errorf("AutomationURL = %q", got)
	}
}
