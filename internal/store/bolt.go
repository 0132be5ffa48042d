package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketDevices  = []byte("devices")
	bucketEntities = []byte("entities")
)

// BoltStore keeps registry records in a bbolt database.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketDevices, bucketEntities} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) SaveDevice(dev Device) error {
	return put(s.db, bucketDevices, dev.ID, dev)
}

func (s *BoltStore) GetDevice(id string) (Device, error) {
	var dev Device
	err := get(s.db, bucketDevices, id, &dev)
	return dev, err
}

func (s *BoltStore) ListDevices() ([]Device, error) {
	return list[Device](s.db, bucketDevices)
}

func (s *BoltStore) SaveEntity(entity Entity) error {
	return put(s.db, bucketEntities, entity.Key(), entity)
}

func (s *BoltStore) DeleteEntity(entity Entity) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntities)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketEntities)
		}
		return b.Delete([]byte(entity.Key()))
	})
}

func (s *BoltStore) ListEntities() ([]Entity, error) {
	return list[Entity](s.db, bucketEntities)
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func put(db *bolt.DB, bucket []byte, key string, value any) error {
	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucket)
		}
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

func get(db *bolt.DB, bucket []byte, key string, out any) error {
	return db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucket)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s %s: %w", bucket, key, ErrNotFound)
		}
		return json.Unmarshal(data, out)
	})
}

func list[T any](db *bolt.DB, bucket []byte) ([]T, error) {
	var out []T
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var item T
			if err := json.Unmarshal(v, &item); err != nil {
				return err
			}
			out = append(out, item)
			return nil
		})
	})
	return out, err
}
