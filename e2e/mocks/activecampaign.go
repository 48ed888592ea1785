package mocks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/skipshean/linear-agent-tasks/internal/adapters/activecampaign"
)

// ActiveCampaignMock is a fake ActiveCampaign v3 API covering tags and
// automations.
type ActiveCampaignMock struct {
	server *httptest.Server
	apiKey string

	mu          sync.RWMutex
	tags        []activecampaign.Tag
	automations []activecampaign.Automation
	blocks      map[string][]activecampaign.Block
	nextID      int
	created     int
}

// NewActiveCampaignMock starts a server that accepts only apiKey.
func NewActiveCampaignMock(apiKey string) *ActiveCampaignMock {
	m := &ActiveCampaignMock{apiKey: apiKey, blocks: make(map[string][]activecampaign.Block), nextID: 1}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/3/tags", m.listTags)
	mux.HandleFunc("POST /api/3/tags", m.createTag)
	mux.HandleFunc("GET /api/3/automations", m.listAutomations)
	mux.HandleFunc("GET /api/3/automations/{id}", m.getAutomation)
	mux.HandleFunc("GET /api/3/automations/{id}/blocks", m.getBlocks)

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Api-Token") != m.apiKey {
			http.Error(w, `{"message":"No Result found for Subscriber with id 0"}`, http.StatusForbidden)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	return m
}

// URL is the account URL to configure as api_url.
func (m *ActiveCampaignMock) URL() string { return m.server.URL }

// Close shuts down the server.
func (m *ActiveCampaignMock) Close() { m.server.Close() }

// AddTag seeds an existing tag.
func (m *ActiveCampaignMock) AddTag(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags = append(m.tags, activecampaign.Tag{ID: strconv.Itoa(m.nextID), Tag: name, TagType: activecampaign.TagTypeContact})
	m.nextID++
}

// AddAutomation seeds an automation with blocks.
func (m *ActiveCampaignMock) AddAutomation(id, name string, blocks ...activecampaign.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.automations = append(m.automations, activecampaign.Automation{ID: id, Name: name, Status: "1"})
	m.blocks[id] = blocks
}

// TagNames lists every tag name in creation order.
func (m *ActiveCampaignMock) TagNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.tags))
	for i, t := range m.tags {
		names[i] = t.Tag
	}
	return names
}

// Created counts tags created through the API.
func (m *ActiveCampaignMock) Created() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.created
}

func (m *ActiveCampaignMock) listTags(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	m.mu.RLock()
	defer m.mu.RUnlock()
	page := []activecampaign.Tag{}
	if offset < len(m.tags) {
		end := len(m.tags)
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}
		page = append(page, m.tags[offset:end]...)
	}
	writeJSON(w, map[string]any{"tags": page, "meta": map[string]string{"total": strconv.Itoa(len(m.tags))}})
}

func (m *ActiveCampaignMock) createTag(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tag activecampaign.Tag `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Tag.Tag == "" {
		http.Error(w, `{"errors":[{"title":"The tag name is required"}]}`, http.StatusUnprocessableEntity)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	tag := body.Tag
	tag.ID = strconv.Itoa(m.nextID)
	m.nextID++
	m.tags = append(m.tags, tag)
	m.created++

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]any{"tag": tag})
}

func (m *ActiveCampaignMock) listAutomations(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	writeJSON(w, map[string]any{"automations": append([]activecampaign.Automation{}, m.automations...)})
}

func (m *ActiveCampaignMock) getAutomation(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.automations {
		if a.ID == r.PathValue("id") {
			writeJSON(w, map[string]any{"automation": a})
			return
		}
	}
	http.Error(w, `{"message":"No Result found for Automation"}`, http.StatusNotFound)
}

func (m *ActiveCampaignMock) getBlocks(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blocks := m.blocks[r.PathValue("id")]
	if blocks == nil {
		blocks = []activecampaign.Block{}
	}
	writeJSON(w, map[string]any{"automationBlocks": blocks})
}
