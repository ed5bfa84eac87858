package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"voice-beyond/companion/pkg/logger"
)

// Status represents the health status of a component
type Status string

const (
	// StatusUp indicates a component is working correctly
	StatusUp Status = "up"
	// StatusDown indicates a component is not working
	StatusDown Status = "down"
	// StatusUnknown means no check has completed yet
	StatusUnknown Status = "unknown"
)

// BackendState is the advisory reachability of the companion backend.
type BackendState string

const (
	BackendConnected BackendState = "connected"
	BackendOffline   BackendState = "offline"
	BackendUnknown   BackendState = "unknown"
)

// BackendComponent is the component name used for the backend probe.
const BackendComponent = "backend"

// Component represents a system component that can be health-checked
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Check represents a health check function
type Check func(ctx context.Context) (Status, string, error)

// Checker manages health checks for the system
type Checker struct {
	checks     map[string]Check
	components map[string]*Component
	timeout    time.Duration
	mutex      sync.RWMutex
	log        *logger.Logger
}

// NewChecker creates a health checker; timeout bounds each individual check.
func NewChecker(log *logger.Logger, timeout time.Duration) *Checker {
	checker := &Checker{
		checks:     make(map[string]Check),
		components: make(map[string]*Component),
		timeout:    timeout,
		log:        log,
	}

	checker.RegisterCheck("self", func(context.Context) (Status, string, error) {
		return StatusUp, "Health checker is running", nil
	})

	return checker
}

// RegisterCheck registers a new health check
func (c *Checker) RegisterCheck(name string, check Check) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.checks[name] = check
	c.components[name] = &Component{
		Name:        name,
		Status:      StatusUnknown,
		Description: "Not checked yet",
	}
}

// RunChecks executes all registered health checks
func (c *Checker) RunChecks(ctx context.Context) {
	c.mutex.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mutex.RUnlock()

	for name, check := range checks {
		checkCtx := ctx
		var cancel context.CancelFunc = func() {}
		if c.timeout > 0 {
			checkCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}
		status, description, err := check(checkCtx)
		cancel()

		c.mutex.Lock()
		component := c.components[name]
		component.Status = status
		component.Description = description
		component.LastChecked = time.Now()
		component.Error = ""
		if err != nil {
			component.Error = err.Error()
		}
		c.mutex.Unlock()

		if err != nil {
			c.log.Warn("health check failed",
				"component", name,
				"status", string(status),
				"error", err.Error(),
			)
		} else {
			c.log.Debug("health check completed",
				"component", name,
				"status", string(status),
			)
		}
	}
}

// Start runs the checks once, then every period until ctx is done.
// A non-positive period probes only once.
func (c *Checker) Start(ctx context.Context, period time.Duration) {
	go func() {
		c.RunChecks(ctx)
		if period <= 0 {
			return
		}

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.RunChecks(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// GetStatus returns the current health status
func (c *Checker) GetStatus() map[string]*Component {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	result := make(map[string]*Component, len(c.components))
	for k, v := range c.components {
		componentCopy := *v
		result[k] = &componentCopy
	}

	return result
}

// Backend maps the backend component onto the tri-state reachability.
func (c *Checker) Backend() BackendState {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	component, ok := c.components[BackendComponent]
	if !ok {
		return BackendUnknown
	}
	switch component.Status {
	case StatusUp:
		return BackendConnected
	case StatusDown:
		return BackendOffline
	default:
		return BackendUnknown
	}
}

// BackendConnected reports whether the last probe reached the backend.
func (c *Checker) BackendConnected() bool {
	return c.Backend() == BackendConnected
}

// HTTPHandler returns an HTTP handler for health checks.
// The local app stays healthy when the backend is offline.
func (c *Checker) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"status":     "ok",
			"backend":    c.Backend(),
			"timestamp":  time.Now(),
			"components": c.GetStatus(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(response); err != nil {
			c.log.Error("failed to encode health check response", "error", err.Error())
		}
	}
}

// RegisterStoreCheck registers a local store health check
func (c *Checker) RegisterStoreCheck(ping func(ctx context.Context) error) {
	c.RegisterCheck("store", func(ctx context.Context) (Status, string, error) {
		if err := ping(ctx); err != nil {
			return StatusDown, "Store is unavailable", err
		}
		return StatusUp, "Store is reachable", nil
	})
}

// RegisterAPICheck registers a GET probe where any 2xx counts as up.
func (c *Checker) RegisterAPICheck(name, endpoint string, client *http.Client) {
	if client == nil {
		client = http.DefaultClient
	}

	c.RegisterCheck(name, func(ctx context.Context) (Status, string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return StatusDown, "Invalid probe endpoint", err
		}

		start := time.Now()
		resp, err := client.Do(req)
		elapsed := time.Since(start)
		if err != nil {
			return StatusDown, "API request failed", err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return StatusDown, fmt.Sprintf("API returned status %d", resp.StatusCode),
				fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		return StatusUp, fmt.Sprintf("API is responding (latency: %s)", elapsed), nil
	})
}
