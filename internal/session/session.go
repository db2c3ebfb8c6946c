// Package session tracks logged-in browser sessions. Each gateway
// token is keyed by its JWT ID and maps to the upstream auth token
// used for service calls on the user's behalf.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Session struct {
	Email         string `json:"email"`
	UserID        string `json:"user_id"`
	Role          string `json:"role"`
	UpstreamToken string `json:"upstream_token"`
}

type localEntry struct {
	session Session
	expires time.Time
}

// Registry stores sessions in redis when a client is configured and
// falls back to an in-process map otherwise.
type Registry struct {
	client *redis.Client
	ttl    time.Duration

	mu    sync.Mutex
	local map[string]localEntry
}

func NewRegistry(client *redis.Client, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Registry{
		client: client,
		ttl:    ttl,
		local:  make(map[string]localEntry),
	}
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func (r *Registry) Put(ctx context.Context, id string, s Session) error {
	if r.client == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.purgeLocked(time.Now())
		r.local[id] = localEntry{session: s, expires: time.Now().Add(r.ttl)}
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKey(id), data, r.ttl).Err()
}

func (r *Registry) Get(ctx context.Context, id string) (Session, bool, error) {
	if r.client == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		entry, ok := r.local[id]
		if !ok || time.Now().After(entry.expires) {
			delete(r.local, id)
			return Session{}, false, nil
		}
		return entry.session, true, nil
	}
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, false, err
	}
	return s, true, nil
}

func (r *Registry) Delete(ctx context.Context, id string) error {
	if r.client == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.local, id)
		return nil
	}
	return r.client.Del(ctx, sessionKey(id)).Err()
}

func (r *Registry) purgeLocked(now time.Time) {
	for id, entry := range r.local {
		if now.After(entry.expires) {
			delete(r.local, id)
		}
	}
}
