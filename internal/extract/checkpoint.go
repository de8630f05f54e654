package extract

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dgallion1/budgetqa/internal/document"
	bolt "go.etcd.io/bbolt"
)

var pagesBucket = []byte("pages")

// Checkpoint persists recognized pages in a bbolt file. Every document gets its
// own bucket under "pages", named by the SHA-256 of its bytes, so documents
// sharing the file never see each other's pages.
type Checkpoint struct {
	db *bolt.DB
}

// OpenCheckpoint opens or creates the checkpoint file at path.
func OpenCheckpoint(path string) (*Checkpoint, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(pagesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init checkpoint: %w", err)
	}
	return &Checkpoint{db: db}, nil
}

// For returns the page store of the document with the given bytes.
func (c *Checkpoint) For(data []byte) *DocCheckpoint {
	sum := sha256.Sum256(data)
	return &DocCheckpoint{db: c.db, key: []byte(hex.EncodeToString(sum[:]))}
}

// Documents counts the documents with saved pages.
func (c *Checkpoint) Documents() (int, error) {
	n := 0
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(pagesBucket).ForEachBucket(func([]byte) error {
			n++
			return nil
		})
	})
	return n, err
}

// Reset discards the saved pages of every document.
func (c *Checkpoint) Reset() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(pagesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(pagesBucket)
		return err
	})
}

func (c *Checkpoint) Close() error {
	return c.db.Close()
}

// DocCheckpoint holds the recognized pages of one document, keyed by page number.
type DocCheckpoint struct {
	db  *bolt.DB
	key []byte
}

// Load returns saved page texts by page number.
func (d *DocCheckpoint) Load() (map[int]string, error) {
	pages := map[int]string{}
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(pagesBucket).Bucket(d.key)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if len(k) != 4 {
				return nil
			}
			pages[int(binary.BigEndian.Uint32(k))] = string(v)
			return nil
		})
	})
	return pages, err
}

// Save records one page.
func (d *DocCheckpoint) Save(page int, text string) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(pagesBucket).CreateBucketIfNotExists(d.key)
		if err != nil {
			return err
		}
		return b.Put(pageKey(page), []byte(text))
	})
}

// Pages returns the saved pages in page order.
func (d *DocCheckpoint) Pages() ([]document.Page, error) {
	m, err := d.Load()
	if err != nil {
		return nil, err
	}
	pages := make([]document.Page, 0, len(m))
	for n, text := range m {
		pages = append(pages, document.Page{Number: n, Text: text})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}

// Reset discards this document's pages.
func (d *DocCheckpoint) Reset() error {
	return d.db.Update(func(tx *bolt.Tx) error {
		pages := tx.Bucket(pagesBucket)
		if pages.Bucket(d.key) == nil {
			return nil
		}
		return pages.DeleteBucket(d.key)
	})
}

func pageKey(n int) []byte {
	k := make([]byte, 4)
	binary.BigEndian.PutUint32(k, uint32(n))
	return k
}
