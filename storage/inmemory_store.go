package storage

import (
	"context"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// InmemoryStore keeps every value in process memory. Backup and Restore
// round-trip the whole keyspace through a single JSON document, which keeps
// snapshots human readable at the cost of assuming values are text.
type InmemoryStore struct {
	mu     sync.Mutex
	values map[string][]byte

	// stop willl be closed when Close() is called
	stop chan struct{}
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		values: make(map[string][]byte),
		stop:   make(chan struct{}),
	}
}

func (i *InmemoryStore) Close() error {
	if i.isRunning() {
		close(i.stop)
	}

	return nil
}

func (i *InmemoryStore) Set(ctx context.Context, key, value []byte) error {
	owned := make([]byte, len(value))
	copy(owned, value)

	i.mu.Lock()
	i.values[string(key)] = owned
	i.mu.Unlock()

	return nil
}

func (i *InmemoryStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	i.mu.Lock()
	value, ok := i.values[string(key)]
	i.mu.Unlock()

	if !ok {
		return nil, ErrKeyNotFound
	}

	return value, nil
}

func (i *InmemoryStore) Del(ctx context.Context, key []byte) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.values[string(key)]; !ok {
		return false, nil
	}

	delete(i.values, string(key))

	return true, nil
}

func (i *InmemoryStore) Exists(ctx context.Context, key []byte) (bool, error) {
	i.mu.Lock()
	_, ok := i.values[string(key)]
	i.mu.Unlock()

	return ok, nil
}

func (i *InmemoryStore) Keys(ctx context.Context) ([][]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	keys := make([][]byte, 0, len(i.values))
	for key := range i.values {
		keys = append(keys, []byte(key))
	}

	return keys, nil
}

func (i *InmemoryStore) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	return len(i.values)
}

func (i *InmemoryStore) Restore(snapshot []byte) error {
	values := make(map[string][]byte)

	gjson.ParseBytes(snapshot).ForEach(func(key, value gjson.Result) bool {
		values[key.String()] = []byte(value.String())
		return true
	})

	i.mu.Lock()
	i.values = values
	i.mu.Unlock()

	return nil
}

func (i *InmemoryStore) Backup() ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	snapshot := []byte(`{}`)

	var err error
	for key, value := range i.values {
		snapshot, err = sjson.SetBytes(snapshot, escapePath(key), string(value))
		if err != nil {
			return nil, err
		}
	}

	return snapshot, nil
}

// escapePath protects bytes that sjson would treat as path syntax, so a key
// like "a.b" stays one key instead of becoming a nested object.
func escapePath(key string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`.`, `\.`,
		`*`, `\*`,
		`?`, `\?`,
		`|`, `\|`,
		`#`, `\#`,
		`@`, `\@`,
	)

	return replacer.Replace(key)
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

var _ Store = (*InmemoryStore)(nil)
