// Package props is the key/value property registry the tracker reads its
// thresholds from and persists odometer state to.
package props

import (
	"strconv"
	"strings"
	"sync"
)

// Store is a typed key/value registry. Getters return def when the key is
// absent or unparsable. Setters are batched until Save.
type Store interface {
	Has(key string) bool
	Int(key string, def int64) int64
	Float(key string, def float64) float64
	String(key string, def string) string
	SetInt(key string, v int64)
	SetFloat(key string, v float64)
	SetString(key string, v string)
	Save() error
}

// Memory is an in-process Store. Save only clears the dirty flag.
type Memory struct {
	mu    sync.RWMutex
	vals  map[string]string
	dirty bool
	saves int
}

func NewMemory(init map[string]string) *Memory {
	m := &Memory{vals: make(map[string]string, len(init))}
	for k, v := range init {
		m.vals[k] = v
	}
	return m
}

func (m *Memory) get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vals[key]
	return v, ok
}

func (m *Memory) set(key, v string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.vals[key]; ok && cur == v {
		return
	}
	m.vals[key] = v
	m.dirty = true
}

func (m *Memory) Has(key string) bool {
	_, ok := m.get(key)
	return ok
}

func (m *Memory) Int(key string, def int64) int64 {
	v, ok := m.get(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 0, 64)
	if err != nil {
		// Accept "12.0" style values written by hand.
		f, ferr := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if ferr != nil {
			return def
		}
		return int64(f)
	}
	return n
}

func (m *Memory) Float(key string, def float64) float64 {
	v, ok := m.get(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

func (m *Memory) String(key string, def string) string {
	v, ok := m.get(key)
	if !ok {
		return def
	}
	return v
}

func (m *Memory) SetInt(key string, v int64) { m.set(key, strconv.FormatInt(v, 10)) }

func (m *Memory) SetFloat(key string, v float64) {
	m.set(key, strconv.FormatFloat(v, 'f', -1, 64))
}

func (m *Memory) SetString(key string, v string) { m.set(key, v) }

func (m *Memory) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty = false
	m.saves++
	return nil
}

// Saves reports how many times Save was called.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Dirty reports whether there are unsaved writes.
func (m *Memory) Dirty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirty
}

// Snapshot copies every stored value.
func (m *Memory) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.vals))
	for k, v := range m.vals {
		out[k] = v
	}
	return out
}
