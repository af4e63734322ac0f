package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/model"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/store"
)

type userStore interface {
	UpsertUser(ctx context.Context, r store.UpsertUserRequest) error
}

// Users keeps the local users table in step with identity provider profiles
type Users struct {
	store userStore
	cache *ristretto.Cache[string, string]
	ttl   time.Duration
}

type UsersConfig struct {
	CacheKeys int64
	CacheCost int64
	TTL       time.Duration
}

func NewUsers(st userStore, cfg UsersConfig) *Users {
	if cfg.CacheKeys <= 0 {
		cfg.CacheKeys = 10_000
	}
	if cfg.CacheCost <= 0 {
		cfg.CacheCost = cfg.CacheKeys
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: cfg.CacheKeys * 10,
		MaxCost:     cfg.CacheCost,
		BufferItems: 64,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to create user cache: %v", err))
	}

	return &Users{store: st, cache: c, ttl: cfg.TTL}
}

// Sync upserts the user row unless the same profile was written recently
func (u *Users) Sync(ctx context.Context, usr model.User) error {
	fp := fingerprint(usr)
	if cached, ok := u.cache.Get(usr.ID); ok && cached == fp {
		return nil
	}

	if err := u.store.UpsertUser(ctx, store.UpsertUserRequest{
		ID:      usr.ID,
		Name:    usr.Name,
		Email:   usr.Email,
		Picture: usr.Picture,
	}); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	if u.ttl > 0 {
		u.cache.SetWithTTL(usr.ID, fp, 1, u.ttl)
	} else {
		u.cache.Set(usr.ID, fp, 1)
	}
	u.cache.Wait()

	return nil
}

func (u *Users) Close() {
	u.cache.Close()
}

func fingerprint(usr model.User) string {
	h := sha256.New()
	for _, s := range []string{usr.Name, usr.Email, usr.Picture} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
