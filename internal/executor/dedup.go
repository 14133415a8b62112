package executor

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"robotbrain/internal/logging"
)

// KeyStore persists idempotency keys across process restarts. Both
// checkpoint stores implement it (only the sqlite one survives a
// restart); MemoryKeyStore is a standalone process-local implementation.
type KeyStore interface {
	// SeenEffect reports whether key was recorded for thread, and the
	// value stored with it.
	SeenEffect(threadID, key string) (bool, string, error)
	// MarkEffect records key with an associated value (e.g. the goal id
	// a dispatch allocated).
	MarkEffect(threadID, key, value string) error
}

// MemoryKeyStore is a process-local KeyStore.
type MemoryKeyStore struct {
	mu   sync.Mutex
	seen map[string]string
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{seen: make(map[string]string)}
}

func (m *MemoryKeyStore) SeenEffect(threadID, key string) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.seen[threadID+"\x00"+key]
	return ok, value, nil
}

func (m *MemoryKeyStore) MarkEffect(threadID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[threadID+"\x00"+key] = value
	return nil
}

// Dedup wraps an Executor and suppresses duplicate side effects on
// replay. Dispatch replays resolve to the originally allocated goal id
// so the running-skill bookkeeping stays consistent.
type Dedup struct {
	inner    Executor
	threadID string
	store    KeyStore
	cache    *lru.Cache[string, string]
	logger   *logging.Logger
}

// NewDedup builds the replay-safety wrapper for one thread id.
func NewDedup(inner Executor, threadID string, store KeyStore, logger *logging.Logger) *Dedup {
	// The cache only shortcuts the durable store; 4096 keys cover far
	// more iterations than the loop cap allows.
	cache, _ := lru.New[string, string](4096)
	if logger == nil {
		logger = logging.Nop()
	}
	return &Dedup{inner: inner, threadID: threadID, store: store, cache: cache, logger: logger}
}

// seen consults the cache first, then the durable store.
func (d *Dedup) seen(key string) (bool, string, error) {
	if value, ok := d.cache.Get(key); ok {
		return true, value, nil
	}
	ok, value, err := d.store.SeenEffect(d.threadID, key)
	if err != nil {
		return false, "", fmt.Errorf("idempotency check: %w", err)
	}
	if ok {
		d.cache.Add(key, value)
	}
	return ok, value, nil
}

func (d *Dedup) mark(key, value string) error {
	if err := d.store.MarkEffect(d.threadID, key, value); err != nil {
		return fmt.Errorf("idempotency mark: %w", err)
	}
	d.cache.Add(key, value)
	return nil
}

func (d *Dedup) Dispatch(ctx context.Context, skillName string, params map[string]any, key string) (string, error) {
	if ok, goalID, err := d.seen(key); err != nil {
		return "", err
	} else if ok {
		d.logger.Info("suppressed duplicate dispatch %s (key %s)", skillName, key)
		return goalID, nil
	}
	goalID, err := d.inner.Dispatch(ctx, skillName, params, key)
	if err != nil {
		return "", err
	}
	if err := d.mark(key, goalID); err != nil {
		return goalID, err
	}
	return goalID, nil
}

func (d *Dedup) Cancel(ctx context.Context, goalID string) error {
	return d.inner.Cancel(ctx, goalID)
}

// CancelOnce cancels under an idempotency key so a replayed dispatch
// pass does not re-cancel a goal that was already cancelled.
func (d *Dedup) CancelOnce(ctx context.Context, goalID, key string) error {
	if ok, _, err := d.seen(key); err != nil {
		return err
	} else if ok {
		d.logger.Info("suppressed duplicate cancel %s (key %s)", goalID, key)
		return nil
	}
	if err := d.inner.Cancel(ctx, goalID); err != nil {
		return err
	}
	return d.mark(key, goalID)
}

func (d *Dedup) PollGoal(ctx context.Context, goalID string) (Poll, error) {
	return d.inner.PollGoal(ctx, goalID)
}

func (d *Dedup) Speak(ctx context.Context, text string, key string) error {
	if ok, _, err := d.seen(key); err != nil {
		return err
	} else if ok {
		d.logger.Info("suppressed duplicate speak (key %s)", key)
		return nil
	}
	if err := d.inner.Speak(ctx, text, key); err != nil {
		return err
	}
	return d.mark(key, text)
}

// Key derives the deterministic idempotency key for one side effect.
// The tick disambiguates iterations across separate EXEC entries, since
// the iteration counter resets whenever the inner loop is re-entered.
func Key(kind, threadID string, tick, iter, opIndex int) string {
	return fmt.Sprintf("%s:%s/%d/%d/%d", kind, threadID, tick, iter, opIndex)
}
