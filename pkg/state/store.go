// Package state implements the on-disk client state: a single JSON file of
// key/value records. Records whose key carries the protected prefix hold
// EncStrings encrypted under the session key; everything else is plaintext
// JSON. All access from one process is serialized, writes are atomic, and a
// file lock keeps a second process out.
package state

import (
	"encoding/json"
	goerrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"

	"github.com/dasien/bwcli/pkg/crypto"
	"github.com/dasien/bwcli/pkg/errors"
	"github.com/dasien/bwcli/pkg/logger"
)

// ProtectedPrefix marks a record as encrypted under the session key.
const ProtectedPrefix = "__PROTECTED__"

const (
	dirMode  = 0700
	fileMode = 0600
)

// Store is the single owner of the state file. Concurrent in-process use is
// safe; concurrent processes are excluded via an advisory lock.
type Store struct {
	mu         sync.Mutex
	path       string
	fileLock   *flock.Flock
	sessionKey *crypto.SymmetricKey
	records    map[string]json.RawMessage
}

// DefaultPath returns the platform config path of the state file.
func DefaultPath() (string, error) {
	path, err := xdg.ConfigFile(filepath.Join("bwcli", "data.json"))
	if err != nil {
		return "", errors.NewStorageIOError("resolving config directory", err)
	}
	return path, nil
}

// Open loads (or creates) the state file at path. sessionKey may be nil, in
// which case only plaintext records are accessible. The returned store holds
// the file lock until Close.
func Open(path string, sessionKey *crypto.SymmetricKey) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return nil, mapIOError("creating config directory", err)
	}

	fileLock := flock.New(path + ".lock")
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, mapIOError("locking state file", err)
	}
	if !locked {
		return nil, errors.NewStorageFileLockedError("state file is in use by another process", nil)
	}

	s := &Store{
		path:       path,
		fileLock:   fileLock,
		sessionKey: sessionKey,
		records:    make(map[string]json.RawMessage),
	}
	if err := s.load(); err != nil {
		_ = fileLock.Unlock()
		return nil, err
	}
	return s, nil
}

// Close releases the file lock. The store must not be used afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fileLock != nil {
		if err := s.fileLock.Unlock(); err != nil {
			return mapIOError("unlocking state file", err)
		}
		s.fileLock = nil
	}
	return nil
}

// SetSessionKey installs the session key for subsequent protected access.
func (s *Store) SetSessionKey(key *crypto.SymmetricKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionKey = key
}

// Get unmarshals the plaintext record for key into out, reporting whether
// the record existed.
func (s *Store) Get(key string, out any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.records[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, errors.NewSerializationError(fmt.Sprintf("decoding state record %q", key), err)
	}
	return true, nil
}

// Set writes a plaintext record through to disk.
func (s *Store) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.NewSerializationError(fmt.Sprintf("encoding state record %q", key), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = raw
	return s.flush()
}

// Remove deletes a plaintext record. Removing a missing record is a no-op.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return nil
	}
	delete(s.records, key)
	return s.flush()
}

// GetSecure decrypts the protected record for key under the session key.
// Returns (nil, nil) when the record does not exist. Requires a session
// key; a failed MAC means the record was tampered with.
func (s *Store) GetSecure(key string) (*crypto.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.records[ProtectedPrefix+key]
	if !ok {
		return nil, nil
	}
	if s.sessionKey == nil {
		return nil, errors.NewStorageLockedError()
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, errors.NewStorageTamperedError(key, err)
	}
	enc, err := crypto.ParseEncString(encoded)
	if err != nil {
		return nil, errors.NewStorageTamperedError(key, err)
	}
	plaintext, err := enc.Decrypt(s.sessionKey)
	if err != nil {
		// Never treat a failed decryption as a missing record.
		return nil, errors.NewStorageTamperedError(key, err)
	}
	return crypto.NewSecretBytes(plaintext), nil
}

// SetSecure encrypts value under the session key and writes it through.
func (s *Store) SetSecure(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessionKey == nil {
		return errors.NewStorageLockedError()
	}
	enc, err := crypto.Encrypt([]byte(value), s.sessionKey)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(enc.String())
	if err != nil {
		return errors.NewSerializationError(fmt.Sprintf("encoding state record %q", key), err)
	}
	s.records[ProtectedPrefix+key] = raw
	return s.flush()
}

// RemoveSecure deletes a protected record. No session key is needed to
// remove one.
func (s *Store) RemoveSecure(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[ProtectedPrefix+key]; !ok {
		return nil
	}
	delete(s.records, ProtectedPrefix+key)
	return s.flush()
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s.flush()
	}
	if err != nil {
		return mapIOError("reading state file", err)
	}

	s.warnOnLoosePermissions()

	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		return errors.NewSerializationError("state file is not valid JSON", err)
	}
	return nil
}

// flush durably rewrites the state file: write to a temp file in the same
// directory, fsync, then rename over the original. Callers hold s.mu.
func (s *Store) flush() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return errors.NewSerializationError("encoding state file", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".data-*.tmp")
	if err != nil {
		return mapIOError("creating temp state file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return mapIOError("setting state file mode", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return mapIOError("writing state file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return mapIOError("syncing state file", err)
	}
	if err := tmp.Close(); err != nil {
		return mapIOError("closing state file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return mapIOError("replacing state file", err)
	}
	syncDir(dir)
	return nil
}

func (s *Store) warnOnLoosePermissions() {
	if runtime.GOOS == "windows" {
		return
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return
	}
	if info.Mode().Perm()&0077 != 0 {
		logger.Warnf("state file %s is readable by other users; run chmod 600 on it", s.path)
	}
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	// Directory fsync is best effort; some filesystems refuse it.
	_ = d.Sync()
}

func mapIOError(op string, err error) *errors.Error {
	if goerrors.Is(err, fs.ErrPermission) {
		return errors.NewStoragePermissionError(op, err)
	}
	return errors.NewStorageIOError(op, err)
}
