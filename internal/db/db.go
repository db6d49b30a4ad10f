package db

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// DB defines the interface for database operations
type DB interface {
	Put(key, value []byte) error
	Get(key []byte) ([]byte, error)
	// Iterate calls fn for every key with prefix in key order until fn returns false.
	// key and value are only valid during the call.
	Iterate(prefix []byte, fn func(key, value []byte) bool) error
	Close() error
}

// LevelDB wraps a LevelDB instance
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB opens or creates a LevelDB database at path
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{ErrorIfMissing: false})
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// NewMemLevelDB creates a LevelDB instance backed by memory
func NewMemLevelDB() (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Put stores a key-value pair in the database
func (l *LevelDB) Put(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

// Get retrieves a value by key from the database. A missing key returns nil, nil.
func (l *LevelDB) Get(key []byte) ([]byte, error) {
	data, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	return data, err
}

func (l *LevelDB) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	iter := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		if !fn(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Error()
}

// Close shuts down the database connection
func (l *LevelDB) Close() error {
	return l.db.Close()
}
