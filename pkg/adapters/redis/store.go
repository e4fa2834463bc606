package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.MarkerStore using Redis, so continuation markers of
// a shared working directory are visible to runners on every node.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration for markers. Zero keeps them until deleted.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for markers.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "strata:marker:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client returns the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) id(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// Markers are hashes: the JSON actions plus the time they were saved, so an
// operator can inspect them with HGETALL.
const (
	fieldActions = "actions"
	fieldSaved   = "saved_at"
)

// Save persists the marker of dir.
func (s *Store) Save(ctx context.Context, dir string, marker *domain.Marker) error {
	actions, err := json.Marshal(marker.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal marker: %w", err)
	}
	key := s.key(s.id(dir))
	_, err = s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldActions, actions, fieldSaved, time.Now().UTC().Format(time.RFC3339))
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save marker of %s: %w", dir, err)
	}
	return nil
}

// Load retrieves the marker of dir.
func (s *Store) Load(ctx context.Context, dir string) (*domain.Marker, error) {
	val, err := s.client.HGet(ctx, s.key(s.id(dir)), fieldActions).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, domain.ErrMarkerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load marker of %s: %w", dir, err)
	}

	marker := &domain.Marker{}
	if err := json.Unmarshal(val, &marker.Actions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal marker: %w", err)
	}
	return marker, nil
}

// Delete removes the marker of dir.
func (s *Store) Delete(ctx context.Context, dir string) error {
	if err := s.client.Del(ctx, s.key(s.id(dir))).Err(); err != nil {
		return fmt.Errorf("failed to delete marker of %s: %w", dir, err)
	}
	return nil
}

// List returns the directories with a pending marker. Expired markers are
// gone from Redis already, so a key scan is enough.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var dirs []string
	iter := s.client.Scan(ctx, 0, globEscape(s.prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		dirs = append(dirs, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list markers: %w", err)
	}
	sort.Strings(dirs)
	return dirs, nil
}

func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`*?[]\^`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
