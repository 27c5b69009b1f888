package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// DefaultMemcachedKey is the item key holding the collection document.
const DefaultMemcachedKey = "weather:entries"

// MemcachedBackend keeps the collection document in a single memcached item
// with no expiration.
type MemcachedBackend struct {
	client *memcache.Client
	key    string
}

// NewMemcachedBackend creates a MemcachedBackend. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero. An empty key uses DefaultMemcachedKey.
func NewMemcachedBackend(addrs, key string, timeout time.Duration, maxIdleConns int) *MemcachedBackend {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	if key == "" {
		key = DefaultMemcachedKey
	}
	return &MemcachedBackend{client: client, key: key}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Read implements Backend.Read. A cache miss maps to ErrNotFound.
func (m *MemcachedBackend) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	item, err := m.client.Get(m.key)
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item.Value, nil
}

// Write implements Backend.Write.
func (m *MemcachedBackend) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.client.Set(&memcache.Item{Key: m.key, Value: data})
}

// Ping checks if memcached is reachable. Used for health checks.
func (m *MemcachedBackend) Ping() error {
	return m.client.Ping()
}

// Name implements Backend.Name.
func (m *MemcachedBackend) Name() string {
	return "memcached"
}

// Close closes the memcached client connections. Call during shutdown.
func (m *MemcachedBackend) Close() error {
	return m.client.Close()
}
