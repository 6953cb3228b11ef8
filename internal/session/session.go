// Package session caches remote login sessions between runs so re-runs
// can skip the login form while the cookies are still valid.
package session

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// storeDirPerm is the permission mode for the state directory
	// (~/.labsync/).
	storeDirPerm = fs.FileMode(0o700)

	// storeFilePerm is the permission mode for the state database file;
	// it holds session cookies.
	storeFilePerm = fs.FileMode(0o600)

	// storeOpenTimeout is the maximum time to wait for the bolt lock.
	storeOpenTimeout = 5 * time.Second
)

var cookiesBucket = []byte("cookies")

// Store wraps a bbolt database holding cached session cookies, keyed by
// site host.
type Store struct {
	db *bolt.DB
}

// OpenAt opens a store at the given path, creating it if needed.
func OpenAt(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), storeDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, storeFilePerm, &bolt.Options{Timeout: storeOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cookiesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing session store: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Cookies returns the cached cookie blob for a host, or nil.
func (s *Store) Cookies(host string) []byte {
	var data []byte

	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(cookiesBucket).Get([]byte(host))
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})

	return data
}

// SetCookies persists the cookie blob for a host.
func (s *Store) SetCookies(host string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cookiesBucket).Put([]byte(host), data)
	})
}

// Clear removes the cached cookies for a host.
func (s *Store) Clear(host string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cookiesBucket).Delete([]byte(host))
	})
}
