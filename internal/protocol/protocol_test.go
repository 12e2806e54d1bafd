package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// --- Parse: valid frames ---

func TestParseStarted(t *testing.T) {
	frame := `{"event":"search:started","searchId":"s1","timestamp":1700000000000,
		"query":"climate attitudes","correctedQuery":"climate attitudes",
		"sources":["openalex","pubmed"]}`

	ev, err := Parse([]byte(frame))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	started, ok := ev.(*Started)
	if !ok {
		t.Fatalf("Parse returned %T, want *Started", ev)
	}
	if started.Session() != "s1" {
		t.Errorf("Session() = %q, want %q", started.Session(), "s1")
	}
	if started.Time() != 1700000000000 {
		t.Errorf("Time() = %d", started.Time())
	}
	if started.Query != "climate attitudes" {
		t.Errorf("Query = %q", started.Query)
	}
	if len(started.Sources) != 2 {
		t.Errorf("len(Sources) = %d, want 2", len(started.Sources))
	}
}

func TestParsePapers(t *testing.T) {
	frame := `{"event":"search:papers","searchId":"s1","timestamp":1,
		"source":"openalex","batchNumber":2,"cumulativeCount":40,
		"papers":[{"id":"W1","doi":"10.1/a","title":"Paper A","sources":["openalex"]},
		          {"id":"W2","title":"Paper B","sources":["openalex"]}]}`

	ev, err := Parse([]byte(frame))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	papers, ok := ev.(*Papers)
	if !ok {
		t.Fatalf("Parse returned %T, want *Papers", ev)
	}
	if papers.Source != "openalex" {
		t.Errorf("Source = %q", papers.Source)
	}
	if papers.BatchNumber != 2 {
		t.Errorf("BatchNumber = %d, want 2", papers.BatchNumber)
	}
	if len(papers.Papers) != 2 {
		t.Fatalf("len(Papers) = %d, want 2", len(papers.Papers))
	}
	if papers.Papers[0].DOI != "10.1/a" {
		t.Errorf("Papers[0].DOI = %q", papers.Papers[0].DOI)
	}
}

func TestParseSemanticTier(t *testing.T) {
	frame := `{"event":"search:semantic-tier","searchId":"s1","timestamp":1,
		"tier":"refined","version":2,"latencyMs":2900,"isComplete":false,
		"papers":[{"id":"W2","semanticScore":0.91,"combinedScore":0.88},
		          {"id":"W1","semanticScore":0.85}],
		"metadata":{"papersProcessed":150,"cacheHits":40,"embedGenerated":110,"usedWorkerPool":true}}`

	ev, err := Parse([]byte(frame))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tier, ok := ev.(*SemanticTier)
	if !ok {
		t.Fatalf("Parse returned %T, want *SemanticTier", ev)
	}
	if tier.Version != 2 {
		t.Errorf("Version = %d, want 2", tier.Version)
	}
	if tier.Papers[0].CombinedScore == nil || *tier.Papers[0].CombinedScore != 0.88 {
		t.Errorf("Papers[0].CombinedScore = %v, want 0.88", tier.Papers[0].CombinedScore)
	}
	if tier.Papers[1].CombinedScore != nil {
		t.Errorf("Papers[1].CombinedScore should be nil when absent")
	}
	if !tier.Metadata.UsedWorkerPool {
		t.Error("Metadata.UsedWorkerPool should be true")
	}
}

func TestParseAllEventNames(t *testing.T) {
	frames := map[string]string{
		EventStarted:           `{"event":"search:started","searchId":"s","timestamp":1,"query":"q"}`,
		EventSourceStarted:     `{"event":"search:source-started","searchId":"s","timestamp":1,"source":"arxiv"}`,
		EventSourceComplete:    `{"event":"search:source-complete","searchId":"s","timestamp":1,"source":"arxiv","paperCount":12,"timeMs":900}`,
		EventSourceError:       `{"event":"search:source-error","searchId":"s","timestamp":1,"source":"scopus","error":"rate limited"}`,
		EventPapers:            `{"event":"search:papers","searchId":"s","timestamp":1,"source":"arxiv","papers":[]}`,
		EventProgress:          `{"event":"search:progress","searchId":"s","timestamp":1,"stage":"fast-sources","percent":40}`,
		EventEnrichment:        `{"event":"search:enrichment","searchId":"s","timestamp":1,"paperId":"W1","citationCount":30}`,
		EventSemanticTier:      `{"event":"search:semantic-tier","searchId":"s","timestamp":1,"tier":"immediate","version":1,"papers":[]}`,
		EventSemanticProgress:  `{"event":"search:semantic-progress","searchId":"s","timestamp":1,"tier":"complete","processed":300,"total":600}`,
		EventSelectionComplete: `{"event":"search:selection-complete","searchId":"s","timestamp":1,"rankedCount":600,"selectedCount":300,"targetCount":300}`,
		EventComplete:          `{"event":"search:complete","searchId":"s","timestamp":1,"papersFound":600,"timeMs":14000}`,
		EventError:             `{"event":"search:error","searchId":"s","timestamp":1,"error":"backend down","recoverable":true}`,
	}
	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			ev, err := Parse([]byte(frame))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if ev.Name() != name {
				t.Errorf("Name() = %q, want %q", ev.Name(), name)
			}
			if ev.Session() != "s" {
				t.Errorf("Session() = %q, want %q", ev.Session(), "s")
			}
		})
	}
}

// --- Parse: rejected frames ---

func TestParseUnknownEvent(t *testing.T) {
	_, err := Parse([]byte(`{"event":"search:future-thing","searchId":"s1","timestamp":1}`))
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("err = %v, want ErrUnknownEvent", err)
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not json", `{{{`},
		{"missing event name", `{"searchId":"s1","timestamp":1}`},
		{"missing searchId", `{"event":"search:started","timestamp":1,"query":"q"}`},
		{"started without query", `{"event":"search:started","searchId":"s1","timestamp":1}`},
		{"source event without source", `{"event":"search:source-started","searchId":"s1","timestamp":1}`},
		{"papers without array", `{"event":"search:papers","searchId":"s1","timestamp":1,"source":"arxiv"}`},
		{"paper without identity", `{"event":"search:papers","searchId":"s1","timestamp":1,"source":"arxiv","papers":[{"year":2020}]}`},
		{"progress bad stage", `{"event":"search:progress","searchId":"s1","timestamp":1,"stage":"warp","percent":10}`},
		{"progress percent over 100", `{"event":"search:progress","searchId":"s1","timestamp":1,"stage":"ranking","percent":101}`},
		{"enrichment without paperId", `{"event":"search:enrichment","searchId":"s1","timestamp":1}`},
		{"tier bad name", `{"event":"search:semantic-tier","searchId":"s1","timestamp":1,"tier":"ultra","version":1,"papers":[]}`},
		{"tier version zero", `{"event":"search:semantic-tier","searchId":"s1","timestamp":1,"tier":"immediate","version":0,"papers":[]}`},
		{"tier paper without id", `{"event":"search:semantic-tier","searchId":"s1","timestamp":1,"tier":"immediate","version":1,"papers":[{"semanticScore":0.5}]}`},
		{"selection over ranked", `{"event":"search:selection-complete","searchId":"s1","timestamp":1,"rankedCount":10,"selectedCount":20}`},
		{"error without message", `{"event":"search:error","searchId":"s1","timestamp":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.frame))
			if !errors.Is(err, ErrMalformedEvent) {
				t.Errorf("err = %v, want ErrMalformedEvent", err)
			}
		})
	}
}

func TestParseToleratesUnknownFields(t *testing.T) {
	frame := `{"event":"search:complete","searchId":"s1","timestamp":1,
		"papersFound":10,"timeMs":5000,"experimentalField":{"nested":true}}`
	if _, err := Parse([]byte(frame)); err != nil {
		t.Errorf("unknown fields should be ignored, got: %v", err)
	}
}

// --- Commands ---

func TestEncodeStartSearch(t *testing.T) {
	data, err := EncodeCommand(StartSearch{
		SearchID: "s1",
		Query:    "digital privacy",
	})
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if string(decoded["command"]) != `"start-search"` {
		t.Errorf("command field = %s", decoded["command"])
	}
	if string(decoded["searchId"]) != `"s1"` {
		t.Errorf("searchId field = %s", decoded["searchId"])
	}
}

func TestEncodeResubscribe(t *testing.T) {
	data, err := EncodeCommand(Resubscribe{SearchIDs: []string{"s1", "s2"}})
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"resubscribe-search"`) {
		t.Errorf("encoded = %s, missing command name", s)
	}
	if !strings.Contains(s, `"s2"`) {
		t.Errorf("encoded = %s, missing search ids", s)
	}
}
