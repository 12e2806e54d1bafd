// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shahabnazari/litstream/internal/reconcile"
	"github.com/shahabnazari/litstream/internal/store"
	"github.com/shahabnazari/litstream/pkg/types"
)

var upgrader = websocket.Upgrader{}

// fakeServer runs a scripted search server: it waits for a start-search
// command, then emits the scripted frames with the client's searchId
// substituted for %s.
func fakeServer(t *testing.T, script []string, commands chan<- map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var searchID string
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd map[string]any
			if err := json.Unmarshal(data, &cmd); err != nil {
				continue
			}
			if commands != nil {
				commands <- cmd
			}
			if cmd["command"] == "start-search" {
				searchID = cmd["searchId"].(string)
				break
			}
		}

		for _, frame := range script {
			msg := strings.ReplaceAll(frame, "%s", searchID)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		// Keep reading so cancel commands still land here.
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd map[string]any
			if err := json.Unmarshal(data, &cmd); err != nil {
				continue
			}
			if commands != nil {
				commands <- cmd
			}
		}
	}))
}

func testClientConfig(url string) types.ClientConfig {
	cfg := types.ClientConfig{
		Stream: types.StreamConfig{
			ServerURL:            "ws" + strings.TrimPrefix(url, "http"),
			DialTimeout:          2 * time.Second,
			MaxReconnectAttempts: 2,
			ReconnectBaseDelay:   10 * time.Millisecond,
		},
	}
	return cfg.WithDefaults()
}

func waitTerminal(t *testing.T, updates <-chan reconcile.Snapshot) reconcile.Snapshot {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case snap := <-updates:
			if snap.Status.Terminal() {
				return snap
			}
		case <-deadline:
			t.Fatal("search never reached a terminal snapshot")
		}
	}
}

var happyScript = []string{
	`{"event":"search:started","searchId":"%s","timestamp":1,"query":"remote work wellbeing","sources":["openalex","arxiv"]}`,
	`{"event":"search:source-started","searchId":"%s","timestamp":2,"source":"openalex"}`,
	`{"event":"search:papers","searchId":"%s","timestamp":3,"source":"openalex","batchNumber":1,"cumulativeCount":2,
		"papers":[{"id":"w1","doi":"10.1/a","title":"Remote Work and Wellbeing","sources":["openalex"]},
		          {"id":"w2","title":"Home Office Ergonomics","sources":["openalex"]}]}`,
	`{"event":"search:source-complete","searchId":"%s","timestamp":4,"source":"openalex","paperCount":2,"timeMs":1100}`,
	`{"event":"search:progress","searchId":"%s","timestamp":5,"stage":"fast-sources","percent":40,"sourcesComplete":1,"sourcesTotal":2,"papersFound":2}`,
	`{"event":"search:semantic-tier","searchId":"%s","timestamp":6,"tier":"immediate","version":1,
		"papers":[{"id":"w2","semanticScore":0.92},{"id":"w1","semanticScore":0.85}],"latencyMs":480}`,
	`{"event":"search:selection-complete","searchId":"%s","timestamp":7,"rankedCount":2,"selectedCount":2,"targetCount":300,"avgQualityScore":0.88}`,
	`{"event":"search:complete","searchId":"%s","timestamp":8,"papersFound":2,"timeMs":9000}`,
}

func TestSearchEndToEnd(t *testing.T) {
	commands := make(chan map[string]any, 8)
	ts := fakeServer(t, happyScript, commands)
	defer ts.Close()

	client := New(testClientConfig(ts.URL), nil, nil)
	require.NoError(t, client.Open(context.Background()))
	defer client.Close()

	searchID, updates, err := client.Search("remote work wellbeing", types.SearchOptions{
		Purpose: types.PurposeQMethodology,
		Sources: []string{"openalex", "arxiv"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, searchID)

	start := <-commands
	assert.Equal(t, "start-search", start["command"])
	assert.Equal(t, "remote work wellbeing", start["query"])

	final := waitTerminal(t, updates)
	assert.Equal(t, types.SessionComplete, final.Status)
	require.Len(t, final.Papers, 2)
	assert.Equal(t, "w2", final.Papers[0].ID, "semantic tier ordering should hold")
	assert.Equal(t, int64(9000), final.FinalTimeMs)
	require.NotNil(t, final.Selection)
	assert.Equal(t, 2, final.Selection.SelectedCount)

	snap, ok := client.Snapshot(searchID)
	require.True(t, ok)
	assert.Equal(t, types.SessionComplete, snap.Status)
}

func TestSearchPersistsTerminalSession(t *testing.T) {
	ts := fakeServer(t, happyScript, nil)
	defer ts.Close()

	sessions, err := store.Open(types.StoreConfig{Path: t.TempDir() + "/sessions.db"})
	require.NoError(t, err)
	defer sessions.Close()

	client := New(testClientConfig(ts.URL), sessions, nil)
	require.NoError(t, client.Open(context.Background()))
	defer client.Close()

	searchID, updates, err := client.Search("remote work wellbeing", types.SearchOptions{})
	require.NoError(t, err)
	waitTerminal(t, updates)

	// Persistence happens before the terminal snapshot is published.
	stored, err := sessions.Get(searchID)
	require.NoError(t, err)
	assert.Equal(t, types.SessionComplete, stored.Status)
	assert.Len(t, stored.Papers, 2)
}

func TestCancelTerminatesLocally(t *testing.T) {
	// A server that starts but never finishes the search.
	script := []string{
		`{"event":"search:started","searchId":"%s","timestamp":1,"query":"q"}`,
	}
	commands := make(chan map[string]any, 8)
	ts := fakeServer(t, script, commands)
	defer ts.Close()

	client := New(testClientConfig(ts.URL), nil, nil)
	require.NoError(t, client.Open(context.Background()))
	defer client.Close()

	searchID, updates, err := client.Search("q", types.SearchOptions{})
	require.NoError(t, err)
	<-commands // start-search

	client.Cancel(searchID)

	final := waitTerminal(t, updates)
	assert.Equal(t, types.SessionCancelled, final.Status)

	select {
	case cmd := <-commands:
		assert.Equal(t, "cancel-search", cmd["command"])
		assert.Equal(t, searchID, cmd["searchId"])
	case <-time.After(3 * time.Second):
		t.Fatal("cancel-search command never sent")
	}
}

func TestSearchValidation(t *testing.T) {
	client := New(types.ClientConfig{}, nil, nil)

	_, _, err := client.Search("", types.SearchOptions{})
	assert.ErrorContains(t, err, "query")

	_, _, err = client.Search("q", types.SearchOptions{Purpose: "time_travel"})
	assert.ErrorContains(t, err, "purpose")

	_, _, err = client.Search("q", types.SearchOptions{Sources: []string{"geocities"}})
	assert.ErrorContains(t, err, "source")
}

// --- search files ---

func TestSearchFileRoundTrip(t *testing.T) {
	path := t.TempDir() + "/search.yaml"
	opts := types.SearchOptions{
		Limit:    100,
		YearFrom: 2018,
		Purpose:  types.PurposeLiteratureSynthesis,
		Sources:  []string{"openalex", "pubmed"},
	}
	snap := reconcile.Snapshot{
		SearchID: "s1",
		Query:    "microplastics exposure",
		Status:   types.SessionComplete,
		Papers: []types.Paper{
			{ID: "w1", Title: "Paper One", Sources: []string{"openalex"}},
		},
		Sources: []types.SourceRecord{
			{Source: "openalex", Status: types.SourceComplete},
			{Source: "scopus", Status: types.SourceError, Error: "timeout"},
		},
		FinalTimeMs: 8000,
	}

	require.NoError(t, WriteSearchFile(path, opts, snap))

	sf, err := ReadSearchFile(path)
	require.NoError(t, err)
	assert.Equal(t, "microplastics exposure", sf.Query)
	assert.Equal(t, opts, sf.Options)
	require.Len(t, sf.Results, 1)
	assert.Equal(t, "Paper One", sf.Results[0].Title)
	assert.Equal(t, "s1", sf.Summary.SearchID)
	assert.Equal(t, int64(8000), sf.Summary.TimeMs)
	require.Len(t, sf.Summary.SourceErrors, 1)
	assert.Contains(t, sf.Summary.SourceErrors[0], "scopus")
}

func TestReadSearchFileMissing(t *testing.T) {
	_, err := ReadSearchFile(t.TempDir() + "/nope.yaml")
	assert.Error(t, err)
}

func TestReadSearchFileInvalidYAML(t *testing.T) {
	path := t.TempDir() + "/bad.yaml"
	require.NoError(t, os.WriteFile(path, []byte("query: [unclosed"), 0o644))
	_, err := ReadSearchFile(path)
	assert.ErrorContains(t, err, "parsing")
}
