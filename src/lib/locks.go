package lib

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("timed out waiting for resource lock")

// Locker serializes work on a single key across concurrent requests.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Entries are dropped once no caller holds or waits on them.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: map[string]*keyedEntry{}}
}

func (k *KeyedMutex) acquireEntry(key string) *keyedEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *KeyedMutex) releaseEntry(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	e := k.acquireEntry(key)
	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.releaseEntry(key, e)
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.releaseEntry(key, e)
		})
	}, nil
}

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// RedisLocker holds a SET NX lease per key so several API processes share one serialization point.
type RedisLocker struct {
	Client        *redis.Client
	TTL           time.Duration
	RetryInterval time.Duration
	Prefix        string
	NewToken      func() string
}

func NewRedisLocker(c *redis.Client) *RedisLocker {
	return &RedisLocker{
		Client:        c,
		TTL:           30 * time.Second,
		RetryInterval: 50 * time.Millisecond,
		Prefix:        "courtbook:lock:",
		NewToken:      uuid.NewString,
	}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	rkey := r.Prefix + key
	token := r.NewToken()
	for {
		ok, err := r.Client.SetNX(ctx, rkey, token, r.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		case <-time.After(r.RetryInterval):
		}
	}
	return func() {
		// Released with a fresh context so a cancelled request still frees the key.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.Client.Eval(rctx, releaseScript, []string{rkey}, token).Err(); err != nil {
			log.Printf("[Locker] Error releasing %s: %s\n", rkey, err.Error())
		}
	}, nil
}

// GetLocker picks Redis when it is configured, otherwise an in-process mutex.
func GetLocker() Locker {
	if rdb := GetRedisClient(); rdb != nil {
		return NewRedisLocker(rdb)
	}
	return NewKeyedMutex()
}
