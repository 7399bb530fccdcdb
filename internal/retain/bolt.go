package retain

import (
	"encoding/binary"
	"fmt"
	"os"

	bolt "go.etcd.io/bbolt"
	"pkg.jsn.cam/datagen/pkg/datagen"
)

var idsBucket = []byte("ids")

// boltBatchSize is how many appends are buffered before one write transaction.
const boltBatchSize = 4096

// BoltIndex implements Index on a scratch bbolt database. Keys are the
// big-endian position, values the big-endian id. The file is removed on Close.
type BoltIndex struct {
	db      *bolt.DB
	path    string
	flushed int
	pending []int64
}

// NewBoltIndex creates a scratch database named after name inside dir.
func NewBoltIndex(dir, name string) (*BoltIndex, error) {
	f, err := os.CreateTemp(dir, "datagen-"+name+"-*.db")
	if err != nil {
		return nil, fmt.Errorf("failed to create index file: %w", err)
	}
	path := f.Name()
	f.Close()

	// Scratch data: losing it on a crash is fine, so skip fsync.
	db, err := bolt.Open(path, 0600, &bolt.Options{NoSync: true, NoFreelistSync: true})
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(idsBucket)
		return err
	})
	if err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltIndex{
		db:      db,
		path:    path,
		pending: make([]int64, 0, boltBatchSize),
	}, nil
}

// Append buffers id and writes a batch once boltBatchSize ids are pending
func (b *BoltIndex) Append(id int64) error {
	b.pending = append(b.pending, id)
	if len(b.pending) >= boltBatchSize {
		return b.flush()
	}
	return nil
}

func (b *BoltIndex) flush() error {
	if len(b.pending) == 0 {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(idsBucket)
		if bkt == nil {
			return fmt.Errorf("bucket not found: %s", idsBucket)
		}
		for i, id := range b.pending {
			if err := bkt.Put(encodeUint(uint64(b.flushed+i)), encodeUint(uint64(id))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write ids: %w", err)
	}

	b.flushed += len(b.pending)
	b.pending = b.pending[:0]
	return nil
}

// At returns the id at position i, reading unflushed ids from the buffer
func (b *BoltIndex) At(i int) (int64, error) {
	if i < 0 || i >= b.Len() {
		return 0, fmt.Errorf("%w: %d of %d", datagen.ErrIndexOutOfRange, i, b.Len())
	}
	if i >= b.flushed {
		return b.pending[i-b.flushed], nil
	}

	var id int64
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(idsBucket)
		if bkt == nil {
			return fmt.Errorf("bucket not found: %s", idsBucket)
		}
		v := bkt.Get(encodeUint(uint64(i)))
		if v == nil {
			return fmt.Errorf("%w: position %d missing", datagen.ErrIndexOutOfRange, i)
		}
		id = int64(binary.BigEndian.Uint64(v))
		return nil
	})
	return id, err
}

// Len returns the number of appended ids, flushed or not
func (b *BoltIndex) Len() int {
	return b.flushed + len(b.pending)
}

// Path is the scratch database file.
func (b *BoltIndex) Path() string {
	return b.path
}

// Close closes and deletes the scratch database
func (b *BoltIndex) Close() error {
	err := b.db.Close()
	if rmErr := os.Remove(b.path); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

func encodeUint(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}
