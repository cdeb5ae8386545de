// Package storagetest provides bolt backed stores for tests.
package storagetest

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/influxdata/kflow/services/storage"
	bolt "go.etcd.io/bbolt"
)

type CleanedTest interface {
	TempDir() string
}

type TestStore struct {
	db         *BoltDB
	versions   storage.Versions
	diagnostic storage.Diagnostic
}

// BoltDB is a database that lives in a test temporary directory.
type BoltDB struct {
	*bolt.DB
}

// NewBolt opens a bolt database, do not use except for testing.
func NewBolt(t CleanedTest) (*BoltDB, error) {
	f, err := os.CreateTemp(t.TempDir(), "boltDB*.db")
	if err != nil {
		return nil, err
	}
	dbName := f.Name()
	if err = f.Close(); err != nil {
		return nil, err
	}
	db, err := bolt.Open(dbName, 0600, &bolt.Options{
		Timeout: 0,
	})
	if err != nil {
		return nil, err
	}
	return &BoltDB{db}, nil
}

func (b BoltDB) Store(bucket string) storage.Interface {
	return storage.NewBolt(b.DB, bucket)
}

func (b BoltDB) Close() error {
	dbPath := b.Path()
	if err := b.DB.Close(); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Dir(dbPath))
}

// New returns a TestStore, if diagnostic is nil a Diagnostic is used.
func New(t CleanedTest, diagnostic storage.Diagnostic) *TestStore {
	db, err := NewBolt(t)
	if err != nil {
		panic(err)
	}
	if diagnostic == nil {
		diagnostic = new(Diagnostic)
	}
	return &TestStore{
		db:         db,
		versions:   storage.NewVersions(db.Store("versions")),
		diagnostic: diagnostic,
	}
}

func (s *TestStore) Store(name string) storage.Interface {
	return s.db.Store(name)
}

func (s *TestStore) Versions() storage.Versions {
	return s.versions
}

func (s *TestStore) Close() error {
	return s.db.Close()
}

func (s *TestStore) Diagnostic() storage.Diagnostic {
	return s.diagnostic
}

// Diagnostic records the stores whose indexes were rebuilt.
type Diagnostic struct {
	mu      sync.Mutex
	rebuilt []string
}

func (d *Diagnostic) Error(string, error) {}
func (d *Diagnostic) OpenedStore(string)  {}

func (d *Diagnostic) RebuildingIndexes(store string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rebuilt = append(d.rebuilt, store)
}

func (d *Diagnostic) Rebuilt() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.rebuilt...)
}
