package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const resultKeyPrefix = "portal:task:"

// writeResult stores status and document in one step, refusing to overwrite a
// terminal status, and refreshes the key's TTL.
//
// KEYS[1] result key
// ARGV[1] status, ARGV[2] JSON document, ARGV[3] TTL seconds
var writeResult = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'status')
if current == 'SUCCESS' or current == 'FAILURE' then
  return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'doc', ARGV[2])
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[3]))
return 1
`)

// ResultStore keeps one Result per job id in Redis.
type ResultStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewResultStore creates a store whose records expire ttl after their last write.
func NewResultStore(rdb *redis.Client, ttl time.Duration) *ResultStore {
	if ttl < time.Second {
		ttl = time.Second
	}
	return &ResultStore{rdb: rdb, ttl: ttl}
}

// Put writes r. It reports false, without error, when the job already has a
// terminal status and r was discarded.
func (s *ResultStore) Put(ctx context.Context, r *Result) (bool, error) {
	doc, err := json.Marshal(r)
	if err != nil {
		return false, fmt.Errorf("results: marshal: %w", err)
	}
	written, err := writeResult.Run(ctx, s.rdb,
		[]string{resultKeyPrefix + r.TaskID},
		string(r.Status), string(doc), int64(s.ttl/time.Second),
	).Int()
	if err != nil {
		return false, fmt.Errorf("results: write %q: %w", r.TaskID, err)
	}
	return written == 1, nil
}

// Get returns the stored result. A job with no record (unknown, not yet picked
// up, or expired) is reported as PENDING.
func (s *ResultStore) Get(ctx context.Context, id string) (*Result, error) {
	doc, err := s.rdb.HGet(ctx, resultKeyPrefix+id, "doc").Bytes()
	if errors.Is(err, redis.Nil) {
		return &Result{TaskID: id, Status: StatusPending}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("results: get %q: %w", id, err)
	}
	var r Result
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, fmt.Errorf("results: unmarshal %q: %w", id, err)
	}
	return &r, nil
}

// Ping checks the backing Redis.
func (s *ResultStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
