// Package registry advertises XML-RPC endpoints in etcd.
//
// Each endpoint is stored under
//
//	/xmlrpc/{Name}/{Addr}
//
// with a JSON encoded Endpoint as value. The key is attached to a TTL lease
// kept alive while the endpoint is registered, so a crashed daemon disappears
// once the lease expires.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// Prefix is the key prefix of all endpoints.
const Prefix = "/xmlrpc/"

// Endpoint describes an XML-RPC endpoint.
type Endpoint struct {
	Name    string   `json:"name"`
	Addr    string   `json:"addr"`
	URL     string   `json:"url"`
	Methods []string `json:"methods,omitempty"`
}

// Key returns the etcd key of the endpoint.
func (e Endpoint) Key() string { return ServiceKey(e.Name) + e.Addr }

// ServiceKey returns the key prefix of all endpoints named name.
func ServiceKey(name string) string { return Prefix + name + "/" }

// Registry stores endpoints in etcd.
type Registry struct {
	client *clientv3.Client
	log    *zap.Logger

	mu     sync.Mutex
	leases map[string]clientv3.LeaseID
}

// New connects to the etcd cluster at endpoints.
func New(endpoints []string, log *zap.Logger) (*Registry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return NewWithClient(c, log), nil
}

// NewWithClient returns a registry using c. Close closes c.
func NewWithClient(c *clientv3.Client, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{client: c, log: log, leases: make(map[string]clientv3.LeaseID)}
}

// Register stores e with a lease of ttl seconds and keeps the lease alive
// until ctx is done or e is deregistered.
func (r *Registry) Register(ctx context.Context, e Endpoint, ttl int64) error {
	if e.Name == "" || e.Addr == "" {
		return errors.New("registry: endpoint needs a name and an address")
	}

	val, err := json.Marshal(e)
	if err != nil {
		return err
	}

	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("registry: grant lease: %w", err)
	}

	if _, err := r.client.Put(ctx, e.Key(), string(val), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("registry: put %s: %w", e.Key(), err)
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("registry: keep alive: %w", err)
	}

	r.mu.Lock()
	r.leases[e.Key()] = lease.ID
	r.mu.Unlock()

	// The channel has to be drained, it closes once the lease is revoked or
	// ctx is done.
	go func() {
		for range ch {
		}
		r.log.Debug("lease keep alive stopped", zap.String("key", e.Key()))
	}()

	r.log.Info("registered endpoint", zap.String("key", e.Key()), zap.String("url", e.URL))
	return nil
}

// Deregister removes e and revokes its lease.
func (r *Registry) Deregister(ctx context.Context, e Endpoint) error {
	r.mu.Lock()
	id, ok := r.leases[e.Key()]
	delete(r.leases, e.Key())
	r.mu.Unlock()

	if _, err := r.client.Delete(ctx, e.Key()); err != nil {
		return fmt.Errorf("registry: delete %s: %w", e.Key(), err)
	}
	if ok {
		if _, err := r.client.Revoke(ctx, id); err != nil {
			return fmt.Errorf("registry: revoke lease: %w", err)
		}
	}

	r.log.Info("deregistered endpoint", zap.String("key", e.Key()))
	return nil
}

// List returns the endpoints registered under name. Malformed entries are
// skipped.
func (r *Registry) List(ctx context.Context, name string) ([]Endpoint, error) {
	resp, err := r.client.Get(ctx, ServiceKey(name), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	eps := make([]Endpoint, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var e Endpoint
		if err := json.Unmarshal(kv.Value, &e); err != nil {
			r.log.Warn("skipping malformed endpoint", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		eps = append(eps, e)
	}
	return eps, nil
}

// Close closes the etcd client.
func (r *Registry) Close() error { return r.client.Close() }
