package state

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"marginledger/storage"
)

type entry struct {
	value   []byte
	deleted bool
}

// Manager is a write-back overlay over the ledger database. Reads fall
// through to the database, writes stay in memory until Commit applies them
// in a single storage batch. Discard drops them.
type Manager struct {
	db    storage.Database
	dirty map[string]entry
}

// NewManager creates an empty overlay on top of db.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, dirty: make(map[string]entry)}
}

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	if e, ok := m.dirty[string(key)]; ok {
		if e.deleted {
			return nil, false, nil
		}
		return e.value, true, nil
	}
	value, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.dirty[string(key)] = entry{value: encoded}
	return nil
}

// KVGet decodes the value stored under key into out. The boolean reports
// whether the key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := m.get(key)
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.dirty[string(key)] = entry{deleted: true}
	return nil
}

// Keys lists the live keys carrying prefix, merging buffered writes over the
// database, in ascending order.
func (m *Manager) Keys(prefix []byte) ([][]byte, error) {
	stored, err := m.db.Keys(prefix)
	if err != nil {
		return nil, err
	}
	live := make(map[string]struct{}, len(stored))
	for _, k := range stored {
		live[string(k)] = struct{}{}
	}
	for k, e := range m.dirty {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if e.deleted {
			delete(live, k)
			continue
		}
		live[k] = struct{}{}
	}
	keys := make([]string, 0, len(live))
	for k := range live {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out, nil
}

// Dirty returns the number of buffered writes.
func (m *Manager) Dirty() int { return len(m.dirty) }

// Commit writes every buffered change to the database atomically and resets
// the overlay.
func (m *Manager) Commit() error {
	if len(m.dirty) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m.dirty))
	for k := range m.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := m.db.NewBatch()
	for _, k := range keys {
		e := m.dirty[k]
		if e.deleted {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), e.value)
	}
	if err := m.db.Write(batch); err != nil {
		return err
	}
	m.dirty = make(map[string]entry)
	return nil
}

// Discard drops every buffered change.
func (m *Manager) Discard() {
	m.dirty = make(map[string]entry)
}
