package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Checker is a dependency that readiness depends on
type Checker interface {
	// Name identifies the dependency in readiness reports
	Name() string

	// Check returns nil when the dependency is usable
	Check(ctx context.Context) error
}

// CheckFunc adapts a plain function to Checker
type CheckFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// NewCheckFunc wraps fn as a named Checker
func NewCheckFunc(name string, fn func(ctx context.Context) error) CheckFunc {
	return CheckFunc{name: name, fn: fn}
}

// Name returns the checker name
func (c CheckFunc) Name() string { return c.name }

// Check runs the wrapped function
func (c CheckFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// Result is the outcome of a single check
type Result struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Registry manages readiness checkers
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
}

// NewRegistry creates a new checker registry
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Registry{
		checkers: make(map[string]Checker),
		timeout:  timeout,
	}
}

// Register adds a checker, replacing any with the same name
func (r *Registry) Register(c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[c.Name()] = c
}

// Unregister removes a checker from the registry
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.checkers, name)
}

// List returns all registered checker names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckAll runs every checker concurrently and reports whether all passed
func (r *Registry) CheckAll(ctx context.Context) ([]Result, bool) {
	r.mu.RLock()
	checkers := make([]Checker, 0, len(r.checkers))
	for _, c := range r.checkers {
		checkers = append(checkers, c)
	}
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results := make([]Result, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		i, c := i, c
		// Every checker reports, so failures go into results instead of g
		g.Go(func() error {
			res := Result{Name: c.Name(), Healthy: true}
			if err := c.Check(ctx); err != nil {
				res.Healthy = false
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	ok := true
	for _, res := range results {
		if !res.Healthy {
			ok = false
		}
	}
	return results, ok
}
