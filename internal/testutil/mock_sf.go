// Package testutil provides a configurable mock Salesforce server for
// tests.
package testutil

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/forcekit/sf-bulk-client/pkg/client"
	"github.com/google/uuid"
)

// APIVersion is the version the mock serves under.
const APIVersion = "57.0"

// BasePath is the mock's versioned service root.
const BasePath = "/services/data/v" + APIVersion

// MockSalesforce is a configurable mock Salesforce instance. The
// service root advertises jobs, sobjects, and limits resources;
// everything else is routed through registered handlers.
type MockSalesforce struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	AuthCount         int
	RequestCount      int
	LastRequestHeader http.Header
}

// NewMockSalesforce creates a mock server with service discovery
// pre-wired.
func NewMockSalesforce() *MockSalesforce {
	mock := &MockSalesforce{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	mock.SetJSONResponse(BasePath+"/", http.StatusOK, map[string]string{
		"jobs":     BasePath + "/jobs",
		"sobjects": BasePath + "/sobjects",
		"limits":   BasePath + "/limits",
	})

	return mock
}

func (m *MockSalesforce) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, `[{"errorCode":"NOT_FOUND","message":"The requested resource does not exist"}]`)
}

// URL returns the mock server URL.
func (m *MockSalesforce) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSalesforce) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockSalesforce) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AuthCount = 0
	m.RequestCount = 0
	m.LastRequestHeader = nil
}

// SetHandler registers a handler for an exact path.
func (m *MockSalesforce) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetJSONResponse registers a fixed JSON response for a path.
func (m *MockSalesforce) SetJSONResponse(path string, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("marshal mock response for %s: %v", path, err))
	}
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(data)
	})
}

// Authenticator returns an authenticate function that issues a fresh
// token per call and counts invocations.
func (m *MockSalesforce) Authenticator() client.AuthenticateFunc {
	return func(ctx context.Context) (*client.Credential, error) {
		m.mu.Lock()
		m.AuthCount++
		token := fmt.Sprintf("token-%d", m.AuthCount)
		m.mu.Unlock()
		return &client.Credential{
			AccessToken: token,
			InstanceURL: m.server.URL,
			TokenType:   "Bearer",
		}, nil
	}
}

// NewClient returns an API client wired to this mock.
func (m *MockSalesforce) NewClient() (*client.Client, error) {
	return client.New(client.Config{
		Authenticate: m.Authenticator(),
		Version:      APIVersion,
	})
}

// NewJobID returns a job ID in the Salesforce 18-character shape.
func NewJobID() string {
	return "750" + uuid.NewString()[:15]
}

// WriteCSVPage writes a CSV results page with the given locator header.
// Pass an empty locator to signal the final page.
func WriteCSVPage(w http.ResponseWriter, locator string, rows [][]string) {
	if locator == "" {
		locator = "null"
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Sforce-Locator", locator)
	w.WriteHeader(http.StatusOK)
	writer := csv.NewWriter(w)
	writer.WriteAll(rows)
	writer.Flush()
}
