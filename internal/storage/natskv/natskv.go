// Package natskv stores pipeline entities in NATS JetStream key-value
// buckets, one bucket per entity type. Values are JSON documents.
package natskv

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"

	"github.com/bytedance/sonic"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/GriffinCanCode/apm-collector/internal/storage"
)

var validKey = regexp.MustCompile(`^[-/_=\.a-zA-Z0-9]+$`)

// encodeKey maps a merge key onto the KV key alphabet. Keys already valid are
// kept as is so buckets stay readable with the nats CLI.
func encodeKey(key string) string {
	if validKey.MatchString(key) && key[0] != '.' && key[len(key)-1] != '.' {
		return key
	}
	return "b64." + base64.RawURLEncoding.EncodeToString([]byte(key))
}

// DAO implements storage.PersistenceDAO over one KV bucket.
type DAO[T storage.Entity] struct {
	kv jetstream.KeyValue
}

// NewDAO wraps an open bucket.
func NewDAO[T storage.Entity](kv jetstream.KeyValue) *DAO[T] {
	return &DAO[T]{kv: kv}
}

func (d *DAO[T]) Get(ctx context.Context, key string) (T, error) {
	var entity T

	entry, err := d.kv.Get(ctx, encodeKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return entity, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return entity, fmt.Errorf("get %s from %s: %w", key, d.kv.Bucket(), err)
	}

	if err := sonic.Unmarshal(entry.Value(), &entity); err != nil {
		return entity, fmt.Errorf("decode %s from %s: %w", key, d.kv.Bucket(), err)
	}
	return entity, nil
}

func (d *DAO[T]) Save(ctx context.Context, entity T) error {
	data, err := sonic.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s: %w", entity.Key(), err)
	}
	if _, err := d.kv.Put(ctx, encodeKey(entity.Key()), data); err != nil {
		return fmt.Errorf("put %s into %s: %w", entity.Key(), d.kv.Bucket(), err)
	}
	return nil
}

// openBucket returns the named bucket, creating it when absent.
func openBucket(ctx context.Context, js jetstream.JetStream, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, cfg.Bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("open bucket %s: %w", cfg.Bucket, err)
	}

	kv, err = js.CreateKeyValue(ctx, cfg)
	if errors.Is(err, jetstream.ErrBucketExists) {
		// another collector created it first
		kv, err = js.KeyValue(ctx, cfg.Bucket)
	}
	if err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
	}
	return kv, nil
}
