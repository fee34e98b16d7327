package testhelper

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

// APIServer is a fake JSON API. The body it serves can be swapped between
// requests.
type APIServer struct {
	*httptest.Server

	mu      sync.RWMutex
	status  int
	body    string
	headers http.Header
	hits    atomic.Int64
}

// NewAPIServer starts a server answering every request with body and
// status 200. It is closed when the test ends.
func NewAPIServer(t testing.TB, body string) *APIServer {
	t.Helper()

	s := &APIServer{status: http.StatusOK, body: body}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *APIServer) serve(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)

	s.mu.Lock()
	s.headers = r.Header.Clone()
	status, body := s.status, s.body
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Respond changes the status and body served from now on.
func (s *APIServer) Respond(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.body = body
}

// Hits returns the number of requests served.
func (s *APIServer) Hits() int {
	return int(s.hits.Load())
}

// LastHeaders returns the headers of the latest request.
func (s *APIServer) LastHeaders() http.Header {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.headers
}
