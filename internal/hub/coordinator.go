package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Coordinator polls one data source on an interval and notifies listeners
// after every refresh, successful or not.
type Coordinator struct {
	name     string
	interval time.Duration
	update   func(ctx context.Context) error
	logger   *slog.Logger

	refreshMu sync.Mutex

	mu          sync.RWMutex
	listeners   map[uint64]func()
	nextID      uint64
	lastErr     error
	lastSuccess time.Time
	refreshed   bool
}

func NewCoordinator(name string, interval time.Duration, update func(ctx context.Context) error, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		name:      name,
		interval:  interval,
		update:    update,
		logger:    logger,
		listeners: make(map[uint64]func()),
	}
}

// Name returns the coordinator name.
func (c *Coordinator) Name() string {
	return c.name
}

// Refresh runs the update func once. Concurrent refreshes are serialised.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	err := c.update(ctx)
	c.refreshMu.Unlock()

	c.mu.Lock()
	wasFailing := c.refreshed && c.lastErr != nil
	c.refreshed = true
	c.lastErr = err
	if err == nil {
		c.lastSuccess = time.Now()
	}
	listeners := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	switch {
	case err != nil && !wasFailing:
		c.logger.Error("error fetching data", "coordinator", c.name, "error", err)
	case err == nil && wasFailing:
		c.logger.Info("fetching data recovered", "coordinator", c.name)
	}

	for _, fn := range listeners {
		fn()
	}
	return err
}

// RequestRefresh refreshes unless data was fetched successfully within maxAge.
func (c *Coordinator) RequestRefresh(ctx context.Context, maxAge time.Duration) error {
	c.mu.RLock()
	fresh := c.refreshed && c.lastErr == nil && time.Since(c.lastSuccess) < maxAge
	c.mu.RUnlock()
	if fresh {
		return nil
	}
	return c.Refresh(ctx)
}

// Run refreshes every interval until ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(ctx)
		}
	}
}

// AddListener registers fn and returns its removal func.
func (c *Coordinator) AddListener(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// LastUpdateSuccess reports whether the latest refresh succeeded.
func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshed && c.lastErr == nil
}

// LastError returns the error of the latest refresh.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// LastSuccess returns when data was last fetched successfully.
func (c *Coordinator) LastSuccess() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSuccess
}
