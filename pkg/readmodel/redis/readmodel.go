// Package redis stores read models in Redis so they can be shared with a
// cache tier. Each record is a JSON string; a set per read model indexes the keys.
package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"

	goredis "github.com/redis/go-redis/v9"

	"github.com/plaenen/eventcore/pkg/codec"
	"github.com/plaenen/eventcore/pkg/domain"
	"github.com/plaenen/eventcore/pkg/readmodel"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "rm"

// Option configures a ReadModel.
type Option func(*ReadModel)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(r *ReadModel) {
		r.prefix = prefix
	}
}

// ReadModel is a readmodel.ReadModel stored in Redis. Numbers are returned as float64.
type ReadModel struct {
	client goredis.UniversalClient
	name   string
	prefix string
}

// New creates a read model using client.
func New(client goredis.UniversalClient, name string, opts ...Option) *ReadModel {
	r := &ReadModel{client: client, name: name, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ readmodel.ReadModel = (*ReadModel)(nil)

func (r *ReadModel) Name() string { return r.name }

func (r *ReadModel) recordKey(key string) string {
	return fmt.Sprintf("%s:%s:r:%s", r.prefix, r.name, key)
}

func (r *ReadModel) indexKey() string {
	return fmt.Sprintf("%s:%s:keys", r.prefix, r.name)
}

func (r *ReadModel) Get(ctx context.Context, key string) (readmodel.Record, error) {
	raw, err := r.client.Get(ctx, r.recordKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrRecordNotFound, r.name, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", r.name, key, err)
	}
	return decode(raw)
}

func (r *ReadModel) Put(ctx context.Context, key string, record readmodel.Record) error {
	doc, err := codec.JSON.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", r.name, key, err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, r.recordKey(key), doc, 0)
		pipe.SAdd(ctx, r.indexKey(), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", r.name, key, err)
	}
	return nil
}

func (r *ReadModel) Delete(ctx context.Context, key string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, r.recordKey(key))
		pipe.SRem(ctx, r.indexKey(), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", r.name, key, err)
	}
	return nil
}

// Query loads every record and filters client side.
func (r *ReadModel) Query(ctx context.Context, filter map[string]any) ([]readmodel.Record, error) {
	keys, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.name, err)
	}
	out := make([]readmodel.Record, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	slices.Sort(keys)

	recordKeys := make([]string, len(keys))
	for i, k := range keys {
		recordKeys[i] = r.recordKey(k)
	}
	values, err := r.client.MGet(ctx, recordKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.name, err)
	}

	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// Deleted between SMEMBERS and MGET.
			continue
		}
		rec, err := decode([]byte(s))
		if err != nil {
			return nil, err
		}
		if readmodel.Matches(rec, filter) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *ReadModel) All(ctx context.Context) ([]readmodel.Record, error) {
	return r.Query(ctx, nil)
}

func (r *ReadModel) Clear(ctx context.Context) error {
	keys, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("clear %s: %w", r.name, err)
	}
	toDelete := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		toDelete = append(toDelete, r.recordKey(k))
	}
	toDelete = append(toDelete, r.indexKey())
	if err := r.client.Del(ctx, toDelete...).Err(); err != nil {
		return fmt.Errorf("clear %s: %w", r.name, err)
	}
	return nil
}

func decode(raw []byte) (readmodel.Record, error) {
	var rec readmodel.Record
	if err := codec.JSON.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
