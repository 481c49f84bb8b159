// Package runpodtest provides an in-process fake of a RunPod serverless
// endpoint for tests.
package runpodtest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmorgan81/zimagebot/internal/runpod"
)

const APIKey = "test-key"

// PNG is a valid 1x1 PNG image.
var PNG = mustDecode("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

func mustDecode(s string) []byte {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return data
}

// Reply is a scripted response. A string Body is written verbatim, anything
// else is JSON encoded.
type Reply struct {
	Code  int
	Body  any
	Delay time.Duration
}

// Call is a request received by the endpoint.
type Call struct {
	Method string
	Path   string
	Auth   string
	Input  *runpod.Request
}

type Endpoint struct {
	*httptest.Server

	// Run and RunSync answer submissions. They default to queueing a job and
	// to completing the job with PNG.
	Run     func(id string, input runpod.Request) Reply
	RunSync func(id string, input runpod.Request) Reply
	Health  Reply

	mu       sync.Mutex
	calls    []Call
	statuses map[string][]Reply
	jobs     int
}

// New starts an endpoint that is closed when the test ends.
func New(t testing.TB) *Endpoint {
	e := &Endpoint{
		statuses: make(map[string][]Reply),
		Run: func(id string, _ runpod.Request) Reply {
			return Reply{Body: map[string]any{"id": id, "status": "IN_QUEUE"}}
		},
		RunSync: func(id string, input runpod.Request) Reply {
			return Completed(id, PNG, input)
		},
		Health: Reply{Body: map[string]any{"workers": map[string]int{"idle": 1}}},
	}
	e.Server = httptest.NewServer(http.HandlerFunc(e.serve))
	t.Cleanup(e.Close)
	return e
}

// Client returns a client pointed at the endpoint, with a short poll
// interval unless opts say otherwise.
func (e *Endpoint) Client(opts ...runpod.Option) *runpod.Client {
	base := []runpod.Option{
		runpod.WithBaseURL(e.URL),
		runpod.WithHTTPClient(e.Server.Client()),
		runpod.WithPollInterval(5 * time.Millisecond),
	}
	return runpod.New("test-endpoint", APIKey, append(base, opts...)...)
}

// Script queues the replies returned by successive status queries for id.
// The last reply is repeated once the queue runs out.
func (e *Endpoint) Script(id string, replies ...Reply) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statuses[id] = append(e.statuses[id], replies...)
}

// Calls returns the requests received so far.
func (e *Endpoint) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Count returns the number of requests whose path starts with prefix.
func (e *Endpoint) Count(prefix string) int {
	n := 0
	for _, c := range e.Calls() {
		if strings.HasPrefix(c.Path, prefix) {
			n++
		}
	}
	return n
}

// Status is a status reply without output.
func Status(id, status string) Reply {
	return Reply{Body: map[string]any{"id": id, "status": status}}
}

// Completed is a COMPLETED reply carrying image and the echoed input.
func Completed(id string, image []byte, input runpod.Request) Reply {
	return Reply{Body: map[string]any{
		"id":     id,
		"status": "COMPLETED",
		"output": map[string]any{
			"image":  runpod.EncodeImage(image),
			"format": "base64",
			"prompt": input.Prompt,
			"seed":   input.Seed,
			"height": input.Height,
			"width":  input.Width,
		},
	}}
}

// Failed is a FAILED reply with the given reason.
func Failed(id, reason string) Reply {
	return Reply{Body: map[string]any{"id": id, "status": "FAILED", "error": reason}}
}

func (e *Endpoint) serve(w http.ResponseWriter, r *http.Request) {
	call := Call{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")}
	if r.Method == http.MethodPost {
		var body struct {
			Input runpod.Request `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			call.Input = &body.Input
		}
	}

	e.mu.Lock()
	e.calls = append(e.calls, call)
	e.mu.Unlock()

	if call.Auth != "Bearer "+APIKey {
		write(w, Reply{Code: http.StatusUnauthorized, Body: "unauthorized"})
		return
	}

	if r.Method == http.MethodPost && call.Input == nil {
		write(w, Reply{Code: http.StatusBadRequest, Body: "malformed input"})
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/run":
		write(w, e.Run(e.nextID(), *call.Input))
	case r.Method == http.MethodPost && r.URL.Path == "/runsync":
		write(w, e.RunSync(e.nextID(), *call.Input))
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/status/"):
		write(w, e.status(strings.TrimPrefix(r.URL.Path, "/status/")))
	case r.Method == http.MethodGet && r.URL.Path == "/health":
		write(w, e.Health)
	default:
		write(w, Reply{Code: http.StatusNotFound, Body: "not found"})
	}
}

func (e *Endpoint) nextID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.jobs++
	return fmt.Sprintf("job-%d", e.jobs)
}

func (e *Endpoint) status(id string) Reply {
	e.mu.Lock()
	defer e.mu.Unlock()
	replies, ok := e.statuses[id]
	if !ok || len(replies) == 0 {
		return Reply{Code: http.StatusNotFound, Body: `{"error":"job not found"}`}
	}
	if len(replies) > 1 {
		e.statuses[id] = replies[1:]
	}
	return replies[0]
}

func write(w http.ResponseWriter, reply Reply) {
	if reply.Delay > 0 {
		time.Sleep(reply.Delay)
	}
	code := reply.Code
	if code == 0 {
		code = http.StatusOK
	}
	if s, ok := reply.Body.(string); ok {
		w.WriteHeader(code)
		_, _ = w.Write([]byte(s))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(reply.Body)
}
