package vos

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// MapEnv implements an in-memory VEnv.
type MapEnv struct {
	mu  sync.RWMutex
	env map[string]string
}

var _ VEnv = (*MapEnv)(nil)

// NewMapEnv creates an empty environment.
func NewMapEnv() *MapEnv {
	return &MapEnv{env: make(map[string]string)}
}

// NewMapEnvFromList creates an environment from "key=value" entries.
// Duplicate keys keep the last value.
func NewMapEnvFromList(environ []string) *MapEnv {
	out := NewMapEnv()
	for _, e := range environ {
		key, value, _ := strings.Cut(e, "=")
		// Never errors for MapEnv.
		_ = out.Setenv(key, value)
	}
	return out
}

// NewMapEnvFrom copies the environment of src.
func NewMapEnvFrom(src VEnv) *MapEnv {
	return NewMapEnvFromList(src.Environ())
}

// Getenv implements VEnv.Getenv.
func (m *MapEnv) Getenv(key string) string {
	val, _ := m.LookupEnv(key)
	return val
}

// LookupEnv implements VEnv.LookupEnv.
func (m *MapEnv) LookupEnv(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.env[key]
	return val, ok
}

// Setenv implements VEnv.Setenv.
func (m *MapEnv) Setenv(key, value string) error {
	if key == "" || strings.Contains(key, "=") {
		return fmt.Errorf("setenv %q: invalid argument", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.env[key] = value
	return nil
}

// Unsetenv implements VEnv.Unsetenv.
func (m *MapEnv) Unsetenv(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.env, key)
	return nil
}

// Environ implements VEnv.Environ. Entries are sorted so output is
// deterministic.
func (m *MapEnv) Environ() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	env := make([]string, 0, len(m.env))
	for k, v := range m.env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// ExpandEnv implements VEnv.ExpandEnv.
func (m *MapEnv) ExpandEnv(s string) string {
	return os.Expand(s, m.Getenv)
}
