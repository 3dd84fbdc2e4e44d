package qdrant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/custodia-labs/lectern/internal/core/domain"
)

// fakeQdrant is an in-process stand-in for the Qdrant REST endpoints the
// store uses.
type fakeQdrant struct {
	t          *testing.T
	mu         sync.Mutex
	collection string
	created    bool
	size       int
	indexes    []string
	points     map[string]point
	failStatus int
	requests   []string
	apiKeys    []string
}

func newFakeQdrant(t *testing.T, collection string) (*fakeQdrant, *httptest.Server) {
	t.Helper()
	f := &fakeQdrant{t: t, collection: collection, points: make(map[string]point)}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	if f.failStatus != 0 {
		http.Error(w, `{"status":{"error":"unavailable"}}`, f.failStatus)
		return
	}

	prefix := "/collections/" + f.collection
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	route := strings.TrimPrefix(r.URL.Path, prefix)

	if route == "" {
		f.collectionRoute(w, r)
		return
	}
	if !f.created {
		http.NotFound(w, r)
		return
	}

	switch r.Method + " " + route {
	case "PUT /index":
		var body struct {
			FieldName string `json:"field_name"`
		}
		f.decode(r, &body)
		f.indexes = append(f.indexes, body.FieldName)
		f.ok(w, true)
	case "PUT /points":
		var body struct {
			Points []point `json:"points"`
		}
		f.decode(r, &body)
		for _, p := range body.Points {
			f.points[p.ID] = p
		}
		f.ok(w, map[string]string{"status": "completed"})
	case "POST /points/delete":
		var body struct {
			Filter filter `json:"filter"`
		}
		f.decode(r, &body)
		for id, p := range f.points {
			if matchesFilter(&body.Filter, p.Payload) {
				delete(f.points, id)
			}
		}
		f.ok(w, map[string]string{"status": "completed"})
	case "POST /points/search":
		f.search(w, r)
	case "POST /points/scroll":
		f.scroll(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeQdrant) collectionRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !f.created {
			http.NotFound(w, r)
			return
		}
		f.ok(w, map[string]any{"status": "green"})
	case http.MethodPut:
		var body struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		}
		f.decode(r, &body)
		f.created = true
		f.size = body.Vectors.Size
		f.ok(w, true)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeQdrant) search(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Vector         []float32 `json:"vector"`
		Limit          int       `json:"limit"`
		ScoreThreshold float64   `json:"score_threshold"`
		Filter         *filter   `json:"filter"`
	}
	f.decode(r, &body)

	type hit struct {
		Score   float64 `json:"score"`
		Payload payload `json:"payload"`
	}
	hits := []hit{}
	for _, p := range f.points {
		if body.Filter != nil && !matchesFilter(body.Filter, p.Payload) {
			continue
		}
		score := domain.CosineSimilarity(body.Vector, p.Vector)
		if score < body.ScoreThreshold {
			continue
		}
		hits = append(hits, hit{Score: score, Payload: p.Payload})
	}
	// reverse id order on ties so the client has to sort
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Payload.ChunkID > hits[j].Payload.ChunkID
	})
	if len(hits) > body.Limit {
		hits = hits[:body.Limit]
	}
	f.ok(w, hits)
}

// scroll pages two points at a time to exercise pagination.
func (f *fakeQdrant) scroll(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Offset *string `json:"offset"`
	}
	f.decode(r, &body)

	ids := make([]string, 0, len(f.points))
	for id := range f.points {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start := 0
	if body.Offset != nil {
		start = sort.SearchStrings(ids, *body.Offset)
	}
	end := min(start+2, len(ids))

	points := []map[string]any{}
	for _, id := range ids[start:end] {
		points = append(points, map[string]any{"id": id, "payload": f.points[id].Payload})
	}
	var next any
	if end < len(ids) {
		next = ids[end]
	}
	f.ok(w, map[string]any{"points": points, "next_page_offset": next})
}

func (f *fakeQdrant) decode(r *http.Request, v any) {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		f.t.Errorf("decoding %s: %v", r.URL.Path, err)
	}
}

func (f *fakeQdrant) ok(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok", "time": 0.001})
}

func matchesFilter(f *filter, p payload) bool {
	for _, c := range f.Must {
		var field string
		var number int
		switch c.Key {
		case "book_id":
			field = p.BookID
		case "author_key":
			field = p.AuthorKey
		case "index":
			number = p.Index
		}
		if c.Range != nil && number < c.Range.Gte {
			return false
		}
		if c.Match != nil {
			if c.Match.Value != "" && field != c.Match.Value {
				return false
			}
			if len(c.Match.Any) > 0 && !contains(c.Match.Any, field) {
				return false
			}
		}
	}
	return true
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
