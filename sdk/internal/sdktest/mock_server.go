// Package sdktest provides a scriptable HTTP server for exercising the SDK
// transport against real sockets.
package sdktest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"
)

// MockServer is an httptest server that replays scripted responses per
// route and records every request it receives.
type MockServer struct {
	*httptest.Server
	mu           sync.RWMutex
	handlers     map[string]HandlerFunc
	scripts      map[string][]Response
	hits         map[string]int
	requestCount atomic.Int32
	requests     []RecordedRequest
}

// HandlerFunc is a custom handler function type
type HandlerFunc func(w http.ResponseWriter, r *http.Request) (int, any)

// Response is one scripted reply.
type Response struct {
	// Status is the HTTP status code
	Status int
	// Body is JSON encoded unless it is a string or []byte, which are sent raw
	Body any
	// Delay is slept before replying
	Delay time.Duration
	// Headers are set on the reply
	Headers map[string]string
}

// RecordedRequest stores information about a received request
type RecordedRequest struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
	Time    time.Time
}

// NewMockServer creates a new mock server with a default health route
func NewMockServer() *MockServer {
	ms := &MockServer{
		handlers: make(map[string]HandlerFunc),
		scripts:  make(map[string][]Response),
		hits:     make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", ms.handleRequest)
	ms.Server = httptest.NewServer(mux)

	ms.RegisterHandler("GET /health", func(w http.ResponseWriter, r *http.Request) (int, any) {
		return http.StatusOK, map[string]string{"status": "ok"}
	})
	return ms
}

// RegisterHandler registers a custom handler for "METHOD /path"
func (ms *MockServer) RegisterHandler(pattern string, handler HandlerFunc) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.handlers[pattern] = handler
}

// Script queues responses for "METHOD /path". The n-th request receives the
// n-th response; once the script is exhausted the last response repeats.
func (ms *MockServer) Script(pattern string, responses ...Response) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.scripts[pattern] = responses
	ms.hits[pattern] = 0
}

// Always makes every request to pattern receive the same response
func (ms *MockServer) Always(pattern string, status int, body any) {
	ms.Script(pattern, Response{Status: status, Body: body})
}

// FailThenSucceed answers failCount times with failStatus, then with okBody
func (ms *MockServer) FailThenSucceed(pattern string, failCount, failStatus int, okBody any) {
	responses := make([]Response, 0, failCount+1)
	for range failCount {
		responses = append(responses, Response{Status: failStatus, Body: ErrorBody("temporarily_unavailable", "try again", "req_retry")})
	}
	responses = append(responses, Response{Status: http.StatusOK, Body: okBody})
	ms.Script(pattern, responses...)
}

// handleRequest records the request then dispatches it
func (ms *MockServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	pattern := r.Method + " " + r.URL.Path

	ms.mu.Lock()
	ms.requests = append(ms.requests, RecordedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: r.Header.Clone(),
		Body:    body,
		Time:    time.Now(),
	})
	script, scripted := ms.scripts[pattern]
	var resp Response
	if scripted && len(script) > 0 {
		idx := ms.hits[pattern]
		if idx >= len(script) {
			idx = len(script) - 1
		}
		resp = script[idx]
		ms.hits[pattern]++
	}
	handler := ms.handlers[pattern]
	ms.mu.Unlock()

	ms.requestCount.Add(1)

	switch {
	case scripted:
		ms.write(w, r, resp)
	case handler != nil:
		status, payload := handler(w, r)
		ms.write(w, r, Response{Status: status, Body: payload})
	default:
		ms.write(w, r, Response{
			Status: http.StatusNotFound,
			Body:   ErrorBody("not_found", "no route for "+pattern, "req_404"),
		})
	}
}

func (ms *MockServer) write(w http.ResponseWriter, r *http.Request, resp Response) {
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}

	switch body := resp.Body.(type) {
	case nil:
		w.WriteHeader(resp.Status)
	case string:
		w.WriteHeader(resp.Status)
		_, _ = io.WriteString(w, body)
	case []byte:
		w.WriteHeader(resp.Status)
		_, _ = w.Write(body)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.Status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// GetRequestCount returns the total number of requests received
func (ms *MockServer) GetRequestCount() int {
	return int(ms.requestCount.Load())
}

// GetRequests returns all recorded requests
func (ms *MockServer) GetRequests() []RecordedRequest {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	result := make([]RecordedRequest, len(ms.requests))
	copy(result, ms.requests)
	return result
}

// LastRequest returns the most recent request, or the zero value
func (ms *MockServer) LastRequest() RecordedRequest {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if len(ms.requests) == 0 {
		return RecordedRequest{}
	}
	return ms.requests[len(ms.requests)-1]
}

// Reset clears recorded requests and script positions
func (ms *MockServer) Reset() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.requestCount.Store(0)
	ms.requests = ms.requests[:0]
	for k := range ms.hits {
		ms.hits[k] = 0
	}
}
