// Package redis implements [kv.Store] on Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/codewandler/clstr-client/ports/kv"
)

const DefaultKeyPrefix = "clstr:"

type Config struct {
	// Client is used as is when set. Otherwise a client for Addr is created
	// and owned by the store.
	Client *goredis.Client
	Addr   string `env:"REDIS_ADDR,default=127.0.0.1:6379"`
	DB     int    `env:"REDIS_DB,default=0"`

	KeyPrefix string `env:"REDIS_KEY_PREFIX,default=clstr:"`
}

type Store struct {
	client    *goredis.Client
	ownClient bool
	keyPrefix string
}

type record struct {
	Data []byte         `json:"data"`
	Meta map[string]any `json:"meta,omitempty"`
}

func New(cfg Config) (*Store, error) {
	s := &Store{client: cfg.Client, keyPrefix: cfg.KeyPrefix}
	if s.client == nil {
		if cfg.Addr == "" {
			return nil, errors.New("redis: Config.Client or Config.Addr is required")
		}
		s.client = goredis.NewClient(&goredis.Options{Addr: cfg.Addr, DB: cfg.DB})
		s.ownClient = true
	}
	if s.keyPrefix == "" {
		s.keyPrefix = DefaultKeyPrefix
	}
	return s, nil
}

func (s *Store) key(key string) string { return s.keyPrefix + key }

func (s *Store) Put(ctx context.Context, key string, entry kv.Entry, opts kv.PutOptions) error {
	if key == "" {
		return kv.ErrKeyRequired
	}
	data, err := json.Marshal(record{Data: entry.Data, Meta: entry.Meta})
	if err != nil {
		return err
	}
	// zero expiration keeps the key forever
	if err := s.client.Set(ctx, s.key(key), data, opts.TTL).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (kv.Entry, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return kv.Entry{}, kv.ErrNotFound
		}
		return kv.Entry{}, fmt.Errorf("redis: get %s: %w", key, err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return kv.Entry{}, fmt.Errorf("redis: decode %s: %w", key, err)
	}
	return kv.Entry{Data: rec.Data, Meta: rec.Meta}, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis: delete %s: %w", key, err)
	}
	return nil
}

// Ping checks that the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client if the store created it.
func (s *Store) Close() error {
	if !s.ownClient {
		return nil
	}
	return s.client.Close()
}

var _ kv.Store = (*Store)(nil)
