package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edgetensor/fleetdash/internal/db"
	"github.com/google/uuid"
)

// ErrLockNotHeld is returned when releasing a lock this holder does not own,
// usually because its TTL ran out and another replica took it.
var ErrLockNotHeld = errors.New("lock not held")

// releaseScript deletes the lock only if it still carries the holder's token.
const releaseScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`

// JobLock makes an ingest job run on at most one replica at a time. The TTL
// bounds how long a crashed holder blocks the others.
type JobLock struct {
	client *db.RedisClient
	key    string
	token  string
	ttl    time.Duration
}

// NewJobLock creates the lock for job, stored at ingest:lock:{job}.
func NewJobLock(client *db.RedisClient, job string, ttl time.Duration) *JobLock {
	return &JobLock{
		client: client,
		key:    "ingest:lock:" + job,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// TryAcquire takes the lock if it is free. It never waits.
func (l *JobLock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

// Release frees the lock if this holder still owns it.
func (l *JobLock) Release(ctx context.Context) error {
	n, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("redis eval failed: %w", err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
