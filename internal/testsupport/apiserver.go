package testsupport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// APIPrefix is the path prefix the fake server mounts its routes under.
const APIPrefix = "/api/v1"

// Reply is one scripted response. Raw, when set, is written verbatim instead
// of encoding Body as JSON.
type Reply struct {
	Status      int
	Body        any
	Raw         []byte
	ContentType string
	Header      http.Header
}

// RecordedRequest captures a request received by the fake server.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Decode unmarshals the recorded JSON body into v.
func (r RecordedRequest) Decode(t testing.TB, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		t.Fatalf("decode request body %q: %v", r.Body, err)
	}
}

// HandlerFunc computes a reply from the incoming request.
type HandlerFunc func(req RecordedRequest) Reply

// APIServer is a scriptable envelope service backed by httptest.
type APIServer struct {
	t      testing.TB
	server *httptest.Server

	mu       sync.Mutex
	routes   map[string]HandlerFunc
	requests []RecordedRequest
}

// NewAPIServer starts a fake service and registers cleanup.
func NewAPIServer(t testing.TB) *APIServer {
	t.Helper()
	s := &APIServer{t: t, routes: map[string]HandlerFunc{}}
	s.server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.server.Close)
	return s
}

// URL returns the base URL clients should be configured with.
func (s *APIServer) URL() string {
	return s.server.URL + APIPrefix
}

// Close stops the server early, making later requests fail at the network level.
func (s *APIServer) Close() {
	s.server.Close()
}

// Handle installs fn for method and path (path relative to the API prefix).
func (s *APIServer) Handle(method, path string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[routeKey(method, path)] = fn
}

// Sequence scripts successive replies for a route; the last reply repeats.
func (s *APIServer) Sequence(method, path string, replies ...Reply) {
	if len(replies) == 0 {
		s.t.Fatalf("Sequence %s %s: no replies", method, path)
	}
	var (
		mu   sync.Mutex
		next int
	)
	s.Handle(method, path, func(RecordedRequest) Reply {
		mu.Lock()
		defer mu.Unlock()
		reply := replies[next]
		if next < len(replies)-1 {
			next++
		}
		return reply
	})
}

// Succeed answers a route with a success envelope around data.
func (s *APIServer) Succeed(method, path string, data any) {
	s.Sequence(method, path, OK(data))
}

// Fail answers a route with an error envelope and the given status.
func (s *APIServer) Fail(method, path string, status int, message, detail string) {
	s.Sequence(method, path, Failure(status, message, detail))
}

// Requests returns a copy of every request received so far.
func (s *APIServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsFor returns the requests received for one route.
func (s *APIServer) RequestsFor(method, path string) []RecordedRequest {
	var out []RecordedRequest
	for _, req := range s.Requests() {
		if req.Method == method && req.Path == path {
			out = append(out, req)
		}
	}
	return out
}

// Count reports how many times a route was hit.
func (s *APIServer) Count(method, path string) int {
	return len(s.RequestsFor(method, path))
}

func (s *APIServer) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	path := strings.TrimPrefix(r.URL.Path, APIPrefix)
	req := RecordedRequest{
		Method: r.Method,
		Path:   path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	fn := s.routes[routeKey(r.Method, path)]
	s.mu.Unlock()

	reply := Failure(http.StatusNotFound, "not found", r.Method+" "+path)
	if fn != nil {
		reply = fn(req)
	}
	writeReply(w, reply)
}

func writeReply(w http.ResponseWriter, reply Reply) {
	for key, values := range reply.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	payload := reply.Raw
	contentType := reply.ContentType
	if payload == nil {
		encoded, err := json.Marshal(reply.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		payload = encoded
		if contentType == "" {
			contentType = "application/json"
		}
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func routeKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// OK builds a 200 success envelope around data.
func OK(data any) Reply {
	return Reply{Status: http.StatusOK, Body: map[string]any{
		"success": true,
		"message": "ok",
		"data":    data,
	}}
}

// Failure builds an error envelope with the given status.
func Failure(status int, message, detail string) Reply {
	body := map[string]any{
		"success": false,
		"message": message,
	}
	if detail != "" {
		body["error"] = detail
	}
	return Reply{Status: status, Body: body}
}

// PageOf builds a list payload keyed the way the service keys it.
func PageOf(key string, items any, page, pageSize int, total int64) map[string]any {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return map[string]any{
		key:           items,
		"page":        page,
		"page_size":   pageSize,
		"total":       total,
		"total_pages": totalPages,
	}
}
