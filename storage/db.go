package storage

import (
	"errors"
	"sort"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store.
// This allows the ledger to use any database backend (in-memory or persistent).
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	// Keys returns every stored key carrying the prefix in ascending order.
	Keys(prefix []byte) ([][]byte, error)
	NewBatch() Batch
	// Write applies every operation of the batch atomically.
	Write(batch Batch) error
	Close() // A way to gracefully shut down the database connection.
}

// Batch buffers writes that are applied together by Database.Write.
type Batch interface {
	Put(key []byte, value []byte)
	Delete(key []byte)
	Len() int
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemDB() *MemDB {
	return &MemDB{
		data: make(map[string][]byte),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (db *MemDB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.data, string(key))
	return nil
}

func (db *MemDB) Keys(prefix []byte) ([][]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	p := string(prefix)
	keys := make([]string, 0)
	for k := range db.data {
		if len(k) >= len(p) && k[:len(p)] == p {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out, nil
}

func (db *MemDB) NewBatch() Batch {
	return &memBatch{}
}

func (db *MemDB) Write(batch Batch) error {
	b, ok := batch.(*memBatch)
	if !ok {
		return errors.New("storage: foreign batch type")
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, op := range b.ops {
		if op.del {
			delete(db.data, string(op.key))
			continue
		}
		db.data[string(op.key)] = op.value
	}
	return nil
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	// Nothing to close for an in-memory database.
}

type memOp struct {
	key   []byte
	value []byte
	del   bool
}

type memBatch struct {
	ops []memOp
}

func (b *memBatch) Put(key []byte, value []byte) {
	b.ops = append(b.ops, memOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
}

func (b *memBatch) Delete(key []byte) {
	b.ops = append(b.ops, memOp{key: append([]byte(nil), key...), del: true})
}

func (b *memBatch) Len() int { return len(b.ops) }

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

// Delete removes the key when present.
func (ldb *LevelDB) Delete(key []byte) error {
	return ldb.db.Delete(key, nil)
}

// Keys lists the stored keys sharing the prefix.
func (ldb *LevelDB) Keys(prefix []byte) ([][]byte, error) {
	iter := ldb.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	keys := make([][]byte, 0)
	for iter.Next() {
		keys = append(keys, append([]byte(nil), iter.Key()...))
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (ldb *LevelDB) NewBatch() Batch {
	return &levelBatch{batch: new(leveldb.Batch)}
}

func (ldb *LevelDB) Write(batch Batch) error {
	b, ok := batch.(*levelBatch)
	if !ok {
		return errors.New("storage: foreign batch type")
	}
	return ldb.db.Write(b.batch, nil)
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	ldb.db.Close()
}

type levelBatch struct {
	batch *leveldb.Batch
}

func (b *levelBatch) Put(key []byte, value []byte) { b.batch.Put(key, value) }
func (b *levelBatch) Delete(key []byte)            { b.batch.Delete(key) }
func (b *levelBatch) Len() int                     { return b.batch.Len() }
