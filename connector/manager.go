package connector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

type standardConnector struct {
	provider Provider
	config   Config
	logger   *slog.Logger
}

var globalManager = &Manager{
	providers: make(map[string]Provider),
}

// Manager is a registry of providers keyed by driver name.
type Manager struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

// Register makes a provider available under name. Providers call it from init.
func Register(name string, provider Provider) {
	globalManager.mu.Lock()
	defer globalManager.mu.Unlock()
	globalManager.providers[name] = provider
}

// Providers lists the registered driver names.
func Providers() []string {
	globalManager.mu.RLock()
	defer globalManager.mu.RUnlock()
	names := make([]string, 0, len(globalManager.providers))
	for name := range globalManager.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Option func(*standardConnector)

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *standardConnector) { c.logger = l }
}

// New returns a connector for config.Driver.
func New(config Config, opts ...Option) (Connector, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	globalManager.mu.RLock()
	provider, ok := globalManager.providers[config.Driver]
	globalManager.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider %s not registered", config.Driver)
	}
	c := &standardConnector{provider: provider, config: config, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Open is New followed by Connect.
func Open(ctx context.Context, config Config, opts ...Option) (Connection, error) {
	c, err := New(config, opts...)
	if err != nil {
		return nil, err
	}
	return c.Connect(ctx)
}

func (c *standardConnector) Config() Config { return c.config }

// Connect opens the pool, retrying when the config asks for it, and checks
// it with a ping.
func (c *standardConnector) Connect(ctx context.Context) (Connection, error) {
	if c.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	if c.config.Retry == nil {
		return c.connectOnce(ctx)
	}
	conn, err := retryConnect(ctx, *c.config.Retry, c.logger, c.connectOnce)
	if err != nil {
		return nil, fmt.Errorf("failed to connect after %d attempts: %w", c.config.Retry.MaxRetries, err)
	}
	return conn, nil
}

func (c *standardConnector) connectOnce(ctx context.Context) (Connection, error) {
	conn, err := c.provider.Connect(ctx, c.config)
	if err != nil {
		return nil, err
	}
	if err := conn.Health(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}
