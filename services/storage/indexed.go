package storage

import (
	"encoding"
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"
)

const (
	defaultDataPrefix    = "data"
	defaultIndexesPrefix = "indexes"

	DefaultIDIndex = "id"
)

var (
	ErrObjectExists   = errors.New("object already exists")
	ErrNoObjectExists = errors.New("no object exists")
)

type BinaryObject interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	ObjectID() string
}

type NewObjectF func() BinaryObject
type ValueFunc func(BinaryObject) (string, error)

type Index struct {
	Name      string
	ValueFunc ValueFunc
	Unique    bool
}

// ValueOf returns the index value of o.
// Values of non unique indexes are suffixed with the object ID.
func (idx Index) ValueOf(o BinaryObject) (string, error) {
	value, err := idx.ValueFunc(o)
	if err != nil {
		return "", err
	}
	if !idx.Unique {
		value = value + "/" + o.ObjectID()
	}
	return value, nil
}

// IndexedStore provides basic CRUD operations and maintains indexes.
//
// Keys are laid out like directories:
//
//  /<prefix>/<dataPrefix>/<ID> -- contains encoded object data
//  /<prefix>/<indexesPrefix>/<index>/<value> -- contains the object ID
//
// Listing an index directory returns object IDs sorted by the index value.
type IndexedStore struct {
	store Interface

	dataPrefix    string
	indexesPrefix string

	indexes []Index

	newObject NewObjectF
}

type IndexedStoreConfig struct {
	Prefix        string
	DataPrefix    string
	IndexesPrefix string
	NewObject     NewObjectF
	Indexes       []Index
}

// DefaultIndexedStoreConfig returns a config with a unique index on the object ID.
func DefaultIndexedStoreConfig(prefix string, newObject NewObjectF) IndexedStoreConfig {
	return IndexedStoreConfig{
		Prefix:        prefix,
		DataPrefix:    defaultDataPrefix,
		IndexesPrefix: defaultIndexesPrefix,
		NewObject:     newObject,
		Indexes: []Index{{
			Name:   DefaultIDIndex,
			Unique: true,
			ValueFunc: func(o BinaryObject) (string, error) {
				return o.ObjectID(), nil
			},
		}},
	}
}

func validPath(p string) bool {
	return !strings.Contains(p, "/")
}

func (c IndexedStoreConfig) Validate() error {
	if c.Prefix == "" {
		return errors.New("must provide a prefix")
	}
	for name, p := range map[string]string{
		"prefix":         c.Prefix,
		"data prefix":    c.DataPrefix,
		"indexes prefix": c.IndexesPrefix,
	} {
		if !validPath(p) {
			return fmt.Errorf("invalid %s %q", name, p)
		}
	}
	if c.IndexesPrefix == c.DataPrefix {
		return fmt.Errorf("data prefix and indexes prefix must be different, both are %q", c.IndexesPrefix)
	}
	if c.NewObject == nil {
		return errors.New("must provide a NewObject function")
	}
	for _, idx := range c.Indexes {
		if !validPath(idx.Name) {
			return fmt.Errorf("invalid index name %q", idx.Name)
		}
		if idx.ValueFunc == nil {
			return fmt.Errorf("index %q does not have a ValueFunc", idx.Name)
		}
	}
	return nil
}

func NewIndexedStore(store Interface, c IndexedStoreConfig) (*IndexedStore, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &IndexedStore{
		store:         store,
		dataPrefix:    path.Join("/", c.Prefix, c.DataPrefix) + "/",
		indexesPrefix: path.Join("/", c.Prefix, c.IndexesPrefix),
		indexes:       c.Indexes,
		newObject:     c.NewObject,
	}, nil
}

func (s *IndexedStore) dataKey(id string) string {
	return s.dataPrefix + id
}

func (s *IndexedStore) indexKey(index, value string) string {
	return path.Join(s.indexesPrefix, index, value)
}

func (s *IndexedStore) Get(id string) (o BinaryObject, err error) {
	err = s.store.View(func(tx ReadOnlyTx) error {
		o, err = s.GetTx(tx, id)
		return err
	})
	return
}

func (s *IndexedStore) GetTx(tx ReadOnlyTx, id string) (BinaryObject, error) {
	kv, err := tx.Get(s.dataKey(id))
	if err == ErrNoKeyExists {
		return nil, ErrNoObjectExists
	} else if err != nil {
		return nil, err
	}
	o := s.newObject()
	err = o.UnmarshalBinary(kv.Value)
	return o, err
}

// Create stores a new object, ErrObjectExists is returned if the ID is taken.
func (s *IndexedStore) Create(o BinaryObject) error {
	return s.put(o, false, false)
}
func (s *IndexedStore) CreateTx(tx Tx, o BinaryObject) error {
	return s.putTx(tx, o, false, false)
}

// Put creates or replaces an object.
func (s *IndexedStore) Put(o BinaryObject) error {
	return s.put(o, true, false)
}
func (s *IndexedStore) PutTx(tx Tx, o BinaryObject) error {
	return s.putTx(tx, o, true, false)
}

// Replace replaces an existing object, ErrNoObjectExists is returned if there is none.
func (s *IndexedStore) Replace(o BinaryObject) error {
	return s.put(o, true, true)
}
func (s *IndexedStore) ReplaceTx(tx Tx, o BinaryObject) error {
	return s.putTx(tx, o, true, true)
}

func (s *IndexedStore) put(o BinaryObject, allowReplace, requireReplace bool) error {
	return s.store.Update(func(tx Tx) error {
		return s.putTx(tx, o, allowReplace, requireReplace)
	})
}

func (s *IndexedStore) putTx(tx Tx, o BinaryObject, allowReplace, requireReplace bool) error {
	old, err := s.GetTx(tx, o.ObjectID())
	switch {
	case err == ErrNoObjectExists:
		if requireReplace {
			return err
		}
		old = nil
	case err != nil:
		return err
	case !allowReplace:
		return ErrObjectExists
	}

	data, err := o.MarshalBinary()
	if err != nil {
		return err
	}
	if err := tx.Put(s.dataKey(o.ObjectID()), data); err != nil {
		return err
	}

	for _, idx := range s.indexes {
		newValue, err := idx.ValueOf(o)
		if err != nil {
			return err
		}
		newKey := s.indexKey(idx.Name, newValue)
		if old != nil {
			oldValue, err := idx.ValueOf(old)
			if err != nil {
				return err
			}
			oldKey := s.indexKey(idx.Name, oldValue)
			if oldKey == newKey {
				continue
			}
			if err := tx.Delete(oldKey); err != nil {
				return err
			}
		}
		if err := tx.Put(newKey, []byte(o.ObjectID())); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an object and its index entries.
// Deleting a non-existent object is not an error.
func (s *IndexedStore) Delete(id string) error {
	return s.store.Update(func(tx Tx) error {
		return s.DeleteTx(tx, id)
	})
}

func (s *IndexedStore) DeleteTx(tx Tx, id string) error {
	o, err := s.GetTx(tx, id)
	if err == ErrNoObjectExists {
		return nil
	} else if err != nil {
		return err
	}

	if err := tx.Delete(s.dataKey(id)); err != nil {
		return err
	}
	for _, idx := range s.indexes {
		value, err := idx.ValueOf(o)
		if err != nil {
			return err
		}
		if err := tx.Delete(s.indexKey(idx.Name, value)); err != nil {
			return err
		}
	}
	return nil
}

// List returns the objects in index order whose IDs match pattern.
// The pattern uses path.Match syntax, an empty pattern matches everything.
// If limit < 0, then no limit is enforced.
func (s *IndexedStore) List(index, pattern string, offset, limit int) (objects []BinaryObject, err error) {
	err = s.store.View(func(tx ReadOnlyTx) error {
		objects, err = s.ListTx(tx, index, pattern, offset, limit)
		return err
	})
	return
}

func (s *IndexedStore) ListTx(tx ReadOnlyTx, index, pattern string, offset, limit int) ([]BinaryObject, error) {
	ids, err := tx.List(s.indexKey(index, "") + "/")
	if err != nil {
		return nil, err
	}

	match := func([]byte) bool { return true }
	if pattern != "" {
		match = func(value []byte) bool {
			matched, _ := path.Match(pattern, string(value))
			return matched
		}
	}
	if limit < 0 {
		limit = len(ids)
	}
	matches := DoListFunc(ids, match, offset, limit)

	objects := make([]BinaryObject, len(matches))
	for i, id := range matches {
		o, err := s.GetTx(tx, id)
		if err != nil {
			return nil, errors.Wrapf(err, "index %s refers to object %q", index, id)
		}
		objects[i] = o
	}
	return objects, nil
}

// Rebuild completely rebuilds all indexes for the store.
func (s *IndexedStore) Rebuild() error {
	return s.store.Update(func(tx Tx) error {
		return s.RebuildTx(tx)
	})
}

// RebuildTx completely rebuilds all indexes for the store using the provided transaction.
func (s *IndexedStore) RebuildTx(tx Tx) error {
	for _, idx := range s.indexes {
		entries, err := tx.List(s.indexKey(idx.Name, "") + "/")
		if err != nil {
			return errors.Wrapf(err, "failed to list index %s", idx.Name)
		}
		for _, entry := range entries {
			if err := tx.Delete(entry.Key); err != nil {
				return errors.Wrapf(err, "failed to clean index %s", idx.Name)
			}
		}
	}
	data, err := tx.List(s.dataPrefix)
	if err != nil {
		return err
	}
	for _, kv := range data {
		o := s.newObject()
		if err := o.UnmarshalBinary(kv.Value); err != nil {
			return errors.Wrapf(err, "failed to unmarshal object with key: %q", kv.Key)
		}
		for _, idx := range s.indexes {
			v, err := idx.ValueOf(o)
			if err != nil {
				return errors.Wrapf(err, "failed to get index value for object with key: %q", kv.Key)
			}
			if err := tx.Put(s.indexKey(idx.Name, v), []byte(o.ObjectID())); err != nil {
				return errors.Wrapf(err, "failed to update index for object with key: %q", kv.Key)
			}
		}
	}
	return nil
}

func ImpossibleTypeErr(exp interface{}, got interface{}) error {
	return fmt.Errorf("impossible error, object not of type %T, got %T", exp, got)
}
