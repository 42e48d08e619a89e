package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"guild-contributions/internal/types"
)

// guildPage opens a menu and dialog immediately for every member
type guildPage struct {
	mu      sync.Mutex
	names   []string
	menu    int
	panel   int
	release chan struct{} // when set, discovery blocks until closed
}

func newGuildPage(names ...string) *guildPage {
	return &guildPage{names: names, menu: -1, panel: -1}
}

func (g *guildPage) DiscoverEntities(ctx context.Context) ([]types.EntityRef, error) {
	if g.release != nil {
		<-g.release
	}
	refs := make([]types.EntityRef, len(g.names))
	for i, name := range g.names {
		refs[i] = types.EntityRef{Index: i, Name: name, Trigger: types.Handle(fmt.Sprintf("t%d", i))}
	}
	return refs, nil
}

func (g *guildPage) Activate(ctx context.Context, handle types.Handle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case handle == "close":
		g.panel = -1
	case handle == "contributions":
		g.panel, g.menu = g.menu, -1
	default:
		fmt.Sscanf(string(handle), "t%d", &g.menu)
	}
	return nil
}

func (g *guildPage) MenuItems(ctx context.Context) ([]types.Control, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.menu < 0 {
		return nil, nil
	}
	return []types.Control{{Label: "Contributions", Handle: "contributions"}}, nil
}

func (g *guildPage) PanelHTML(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.panel < 0 {
		return "", nil
	}
	gold := (g.panel + 1) * 100
	return fmt.Sprintf(`<div role="dialog"><div data-slot="dialog-header"><div><span>[Gold]</span> <span title="%d">%d</span></div></div></div>`, gold, gold), nil
}

func (g *guildPage) DismissControl() types.Handle { return "close" }

func (g *guildPage) Reset(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.menu, g.panel = -1, -1
	return nil
}

func newTestServer(page *guildPage) (*Server, *httptest.Server) {
	config := types.DefaultConfig()
	config.Domain = "manarion.com"
	config.EntityDelay = time.Millisecond
	config.MenuTimeout = 50 * time.Millisecond
	config.PanelTimeout = 50 * time.Millisecond
	config.PollInterval = 5 * time.Millisecond
	config.Fields = types.FieldSet{"Gold", "Wood"}

	server := NewServer(config, logrus.New(), page)
	return server, httptest.NewServer(server.Handler())
}

func decode(t *testing.T, resp *http.Response) APIResponse {
	t.Helper()
	defer resp.Body.Close()
	var body APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(newGuildPage())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestScrape_ThenExport(t *testing.T) {
	server, ts := newTestServer(newGuildPage("Aria", "Bram"))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/scrape", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()
	server.Wait()

	resp, err = http.Get(ts.URL + "/export")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="manarion.com_contributions.csv"`, resp.Header.Get("Content-Disposition"))
	csv, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Name,Gold,Wood\nAria,100,\nBram,200,\n", string(csv))
}

func TestScrape_StatusReportsSummary(t *testing.T) {
	server, ts := newTestServer(newGuildPage("Aria"))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/scrape", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	server.Wait()

	resp, err = http.Get(ts.URL + "/status")
	require.NoError(t, err)
	body := decode(t, resp)

	require.True(t, body.Success)
	status := body.Data.(map[string]interface{})
	assert.Equal(t, false, status["running"])
	summary := status["summary"].(map[string]interface{})
	assert.EqualValues(t, 1, summary["succeeded"])
	assert.Len(t, status["progress"], 1)
}

func TestScrape_RejectsConcurrentRun(t *testing.T) {
	page := newGuildPage("Aria")
	page.release = make(chan struct{})
	server, ts := newTestServer(page)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/scrape", "", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Post(ts.URL+"/scrape", "", nil)
	require.NoError(t, err)
	body := decode(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.False(t, body.Success)

	close(page.release)
	server.Wait()
}

func TestScrape_MethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(newGuildPage())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/scrape")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAbort_NoRun(t *testing.T) {
	_, ts := newTestServer(newGuildPage())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/abort", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAbort_StopsRun(t *testing.T) {
	page := newGuildPage("Aria", "Bram", "Cato")
	page.release = make(chan struct{})
	server, ts := newTestServer(page)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/scrape", "", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Post(ts.URL+"/abort", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	close(page.release)
	server.Wait()

	// discovery finished after the abort, so no member is visited
	assert.Empty(t, server.extractor.Records())
	assert.True(t, server.summary.Aborted)
}

func TestExport_EmptyIsNotFound(t *testing.T) {
	_, ts := newTestServer(newGuildPage())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/export")
	require.NoError(t, err)
	body := decode(t, resp)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "No records to export", body.Error)
}

func TestRecords_Empty(t *testing.T) {
	_, ts := newTestServer(newGuildPage())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/records")
	require.NoError(t, err)
	body := decode(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)
}
