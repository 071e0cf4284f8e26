// Package credential resolves the generation API key for a single request.
package credential

import (
	"errors"
	"strings"
	"sync"
)

// ErrMissingKey is returned when neither a request override nor a process
// default API key is available.
var ErrMissingKey = errors.New("API key is not configured: supply api_key in model_config or set GOOGLE_API_KEY")

// Source describes where a resolved key came from.
type Source string

const (
	SourceRequest Source = "request"
	SourceDefault Source = "default"
)

// Key is an API key resolved for one request. It is passed by value down the
// call chain and never written back to the Store.
type Key struct {
	Value  string
	Source Source
}

// Store holds the process-wide default API key.
type Store struct {
	mux        sync.RWMutex
	defaultKey string
}

// Default returns the process default key.
func (s *Store) Default() string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.defaultKey
}

// SetDefault replaces the process default key (configuration reload only).
func (s *Store) SetDefault(key string) {
	s.mux.Lock()
	s.defaultKey = strings.TrimSpace(key)
	s.mux.Unlock()
}

// Resolve returns the override when non-blank, otherwise the process default.
func (s *Store) Resolve(override string) (Key, error) {
	if key := strings.TrimSpace(override); key != "" {
		return Key{Value: key, Source: SourceRequest}, nil
	}
	if key := s.Default(); key != "" {
		return Key{Value: key, Source: SourceDefault}, nil
	}
	return Key{}, ErrMissingKey
}

// New creates a store with the supplied default key.
func New(defaultKey string) *Store {
	ret := &Store{}
	ret.SetDefault(defaultKey)
	return ret
}
