// Package auth is the shared-password gate in front of the bot. Users who
// once submit the right password are remembered in a Store.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrPasswordMismatch = errors.New("password mismatch")

// Store remembers authorized user ids.
type Store interface {
	Contains(ctx context.Context, id int64) (bool, error)
	Add(ctx context.Context, id int64) error
	List(ctx context.Context) ([]int64, error)
}

// Gate checks submitted secrets against one static password. It caches
// positive lookups for the process lifetime.
type Gate struct {
	password string
	store    Store

	mu    sync.Mutex
	known map[int64]bool
}

func NewGate(password string, store Store) *Gate {
	return &Gate{password: password, store: store, known: make(map[int64]bool)}
}

func (g *Gate) IsAuthorized(ctx context.Context, id int64) (bool, error) {
	g.mu.Lock()
	ok := g.known[id]
	g.mu.Unlock()
	if ok {
		return true, nil
	}
	ok, err := g.store.Contains(ctx, id)
	if err != nil {
		return false, fmt.Errorf("lookup user %d: %w", id, err)
	}
	if ok {
		g.remember(id)
	}
	return ok, nil
}

// Authorize grants id when secret matches the password.
func (g *Gate) Authorize(ctx context.Context, id int64, secret string) error {
	got := strings.TrimSpace(secret)
	if subtle.ConstantTimeCompare([]byte(got), []byte(g.password)) != 1 {
		return ErrPasswordMismatch
	}
	return g.Grant(ctx, id)
}

// Grant authorizes id without a password check.
func (g *Gate) Grant(ctx context.Context, id int64) error {
	if ok, err := g.IsAuthorized(ctx, id); err == nil && ok {
		return nil
	}
	if err := g.store.Add(ctx, id); err != nil {
		return fmt.Errorf("authorize user %d: %w", id, err)
	}
	g.remember(id)
	return nil
}

// Users lists every authorized id.
func (g *Gate) Users(ctx context.Context) ([]int64, error) {
	return g.store.List(ctx)
}

func (g *Gate) remember(id int64) {
	g.mu.Lock()
	g.known[id] = true
	g.mu.Unlock()
}
