package storage

import (
	"bytes"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBStore is the production BlobStore: account blobs, peer address
// books, and per-chain sync checkpoints are all small, frequently-updated
// key/value pairs, which is exactly LevelDB's sweet spot compared to one
// JSON file rewritten on every mutation.
type LevelDBStore struct {
	db *leveldb.DB
}

// NewLevelDBStore opens (creating if absent) a LevelDB database at dir.
func NewLevelDBStore(dir string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Put(key string, value []byte) error {
	return s.db.Put([]byte(key), value, nil)
}

func (s *LevelDBStore) Get(key string) ([]byte, error) {
	v, err := s.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *LevelDBStore) Delete(key string) error {
	return s.db.Delete([]byte(key), nil)
}

// All returns every key with the given prefix. An empty prefix returns the
// whole database.
func (s *LevelDBStore) All(prefix string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	var rng *util.Range
	if prefix != "" {
		rng = util.BytesPrefix([]byte(prefix))
	}
	iter := s.db.NewIterator(rng, nil)
	defer iter.Release()
	for iter.Next() {
		k := string(bytes.Clone(iter.Key()))
		if prefix != "" && !strings.HasPrefix(k, prefix) {
			continue
		}
		v := bytes.Clone(iter.Value())
		out[k] = v
	}
	return out, iter.Error()
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
