package store

import (
    "fmt"
    "os"
    "path/filepath"
    "time"

    bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("controller")

// Bolt is a Persister backed by a single bbolt file.
type Bolt struct {
    db *bolt.DB
}

// OpenBolt opens (creating if needed) the database at path.
func OpenBolt(path string) (*Bolt, error) {
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { return nil, err }
    db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
    if err != nil { return nil, fmt.Errorf("store: open %s: %w", path, err) }
    err = db.Update(func(tx *bolt.Tx) error {
        _, err := tx.CreateBucketIfNotExists(bucketName)
        return err
    })
    if err != nil {
        _ = db.Close()
        return nil, fmt.Errorf("store: create bucket: %w", err)
    }
    return &Bolt{db: db}, nil
}

func (b *Bolt) Load(key string) ([]byte, error) {
    var out []byte
    err := b.db.View(func(tx *bolt.Tx) error {
        v := tx.Bucket(bucketName).Get([]byte(key))
        if v == nil { return ErrNotFound }
        // values are only valid for the life of the transaction
        out = append([]byte(nil), v...)
        return nil
    })
    return out, err
}

func (b *Bolt) Save(key string, value []byte) error {
    return b.db.Update(func(tx *bolt.Tx) error {
        return tx.Bucket(bucketName).Put([]byte(key), value)
    })
}

func (b *Bolt) Close() error { return b.db.Close() }

var _ Persister = (*Bolt)(nil)
