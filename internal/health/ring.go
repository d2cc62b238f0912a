// Package health keeps a short history of recent call outcomes per provider
// so operators can see which upstreams are currently answering.
package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

const historySize = 10

// Result is one recorded call outcome
type Result struct {
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// ProviderStatus is the visible state for one provider
type ProviderStatus struct {
	Name    string   `json:"name"`
	Status  string   `json:"status"`
	History []Result `json:"history"`
}

// Ring tracks the last few outcomes for each known provider. Providers with
// no recorded calls report "unknown".
type Ring struct {
	mu       sync.Mutex
	statuses map[string]*ProviderStatus
}

// NewRing seeds a ring with the configured provider names
func NewRing(providers []string) *Ring {
	r := &Ring{statuses: make(map[string]*ProviderStatus, len(providers))}
	for _, name := range providers {
		r.statuses[name] = &ProviderStatus{
			Name:    name,
			Status:  "unknown",
			History: make([]Result, 0, historySize),
		}
	}
	return r
}

// Record appends one outcome for a provider. Unknown providers are added on
// first sight.
func (r *Ring) Record(provider string, callErr error) {
	res := Result{Timestamp: time.Now(), Success: callErr == nil}
	if callErr != nil {
		res.Error = callErr.Error()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	status, ok := r.statuses[provider]
	if !ok {
		status = &ProviderStatus{Name: provider, History: make([]Result, 0, historySize)}
		r.statuses[provider] = status
	}

	status.History = append(status.History, res)
	if len(status.History) > historySize {
		status.History = status.History[1:]
	}
	if res.Success {
		status.Status = "up"
	} else {
		status.Status = "down"
	}
}

// Status returns a copy of every provider's state
func (r *Ring) Status() map[string]ProviderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]ProviderStatus, len(r.statuses))
	for name, s := range r.statuses {
		cp := ProviderStatus{Name: s.Name, Status: s.Status, History: make([]Result, len(s.History))}
		copy(cp.History, s.History)
		out[name] = cp
	}
	return out
}

// Handler serves the ring state as JSON
func (r *Ring) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(r.Status()); err != nil {
			http.Error(w, "Encode error", http.StatusInternalServerError)
		}
	}
}
