package generator

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type cannedReply struct {
	status int
	body   string
}

// fakeUpstream replays canned replies in order (the last one repeats) and
// records every request body it receives.
type fakeUpstream struct {
	mu      sync.Mutex
	replies []cannedReply
	paths   []string
	bodies  [][]byte
}

func newFakeUpstream(t *testing.T, replies ...cannedReply) (*fakeUpstream, *httptest.Server, *http.Client) {
	t.Helper()
	f := &fakeUpstream{replies: replies}
	ts := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(ts.Close)

	tr := &http.Transport{}
	t.Cleanup(tr.CloseIdleConnections)
	return f, ts, &http.Client{Transport: tr}
}

func (f *fakeUpstream) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	i := len(f.bodies)
	f.paths = append(f.paths, r.URL.Path)
	f.bodies = append(f.bodies, body)
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	reply := f.replies[i]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.status)
	_, _ = io.WriteString(w, reply.body)
}

func (f *fakeUpstream) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

func (f *fakeUpstream) lastBody() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[len(f.bodies)-1]
}

func (f *fakeUpstream) lastPath() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paths[len(f.paths)-1]
}
