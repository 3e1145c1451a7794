package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"
)

// TempDir creates a temporary directory for testing
// It returns the directory path and a cleanup function
func TempDir(t *testing.T) (string, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "nuupdater-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	cleanup := func() {
		os.RemoveAll(dir)
	}

	return dir, cleanup
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return true
		}

		if time.Now().After(deadline) {
			return false
		}

		<-ticker.C
	}
}

// AssertEventually asserts that a condition becomes true within timeout
func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msgAndArgs ...interface{}) {
	t.Helper()

	if !WaitForCondition(timeout, condition) {
		if len(msgAndArgs) > 0 {
			t.Fatalf("condition not met within %v: %v", timeout, msgAndArgs[0])
		} else {
			t.Fatalf("condition not met within %v", timeout)
		}
	}
}

// TLE returns a three-line element set for name with a fake catalog number
func TLE(name string, catnr int) string {
	return fmt.Sprintf("%s\n1 %05dU 17073A   24001.50000000  .00000000  00000-0  00000-0 0  9990\n2 %05d  98.7000 100.0000 0001000  90.0000 270.0000 14.19500000    10\n",
		name, catnr, catnr)
}

// Response is a canned reply of a TLEServer route
type Response struct {
	Status int
	Body   string
	Delay  time.Duration
}

// TLEServer serves canned responses by path and counts hits
type TLEServer struct {
	*httptest.Server

	mu     sync.Mutex
	routes map[string]Response
	hits   map[string]int
}

// NewTLEServer starts a server closed at test cleanup. Unknown paths get 404.
func NewTLEServer(t *testing.T, routes map[string]Response) *TLEServer {
	t.Helper()

	s := &TLEServer{routes: routes, hits: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *TLEServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	resp, ok := s.routes[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(resp.Body))
}

// SetRoute replaces the response for path
func (s *TLEServer) SetRoute(path string, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = resp
}

// Hits returns how many requests path received
func (s *TLEServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// URLFor returns the absolute URL of path
func (s *TLEServer) URLFor(path string) string {
	return s.URL + path
}

// Chdir changes the working directory to dir and restores it when the test
// ends (equivalent of testing.T.Chdir, which requires Go 1.24)
func Chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("Chdir: restoring %s: %v", prev, err)
		}
	})
}
