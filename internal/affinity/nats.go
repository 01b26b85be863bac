package affinity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// KV is a Store backed by a NATS JetStream KeyValue bucket. Expiry is a
// bucket-level TTL set at creation; the per-call ttl is checked against it
// so a mismatched caller fails loudly instead of silently getting a
// different expiry.
type KV struct {
	kv  jetstream.KeyValue
	ttl time.Duration
}

// NewKV creates or opens the bucket with the given TTL.
func NewKV(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration) (*KV, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "session to server routing records",
		TTL:         ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("create affinity bucket %q: %w", bucket, err)
	}
	return &KV{kv: kv, ttl: ttl}, nil
}

func (s *KV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl != s.ttl {
		return fmt.Errorf("affinity: ttl %s does not match bucket ttl %s", ttl, s.ttl)
	}
	if _, err := s.kv.PutString(ctx, key, value); err != nil {
		return fmt.Errorf("affinity: set %q: %w", key, err)
	}
	return nil
}

func (s *KV) Get(ctx context.Context, key string) (string, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("affinity: get %q: %w", key, err)
	}
	return string(entry.Value()), nil
}

func (s *KV) Delete(ctx context.Context, key string) error {
	if err := s.kv.Purge(ctx, key); err != nil {
		return fmt.Errorf("affinity: delete %q: %w", key, err)
	}
	return nil
}
