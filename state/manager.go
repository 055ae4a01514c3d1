package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"admarket/storage"
)

// Manager provides typed key-value access on top of a storage.Database. The
// campaign and marketplace engines declare narrow interfaces that Manager
// satisfies; values are serialised as JSON so money fields survive as decimal
// strings rather than floats.
type Manager struct {
	db storage.Database
}

// NewManager wraps the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// KVGet decodes the value stored under key into out. The boolean reports
// whether the key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return false, fmt.Errorf("state: decode %q: %w", key, err)
		}
	}
	return true, nil
}

// KVPut serialises value and stores it under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(key, raw)
}

// KVHas reports whether key holds a value.
func (m *Manager) KVHas(key []byte) (bool, error) {
	return m.db.Has(key)
}

// KVDelete removes the value stored under key, if any.
func (m *Manager) KVDelete(key []byte) error {
	return m.db.Delete(key)
}
