// Package vars holds the variable scopes used for template resolution:
// a global mapping plus any number of named contexts layered over it.
// A context may override any global name or omit it and inherit the
// global value; lookups consult the active context first and fall back
// to the global scope.
//
// The Store is safe for concurrent use. The zero value is ready to use.
package vars

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// ErrEmptyName is returned by setters when the variable name is empty.
var ErrEmptyName = errors.New("vars: variable name must not be empty")

// Store holds the global variable mapping and the named contexts.
type Store struct {
	mu       sync.RWMutex
	once     sync.Once
	global   map[string]string
	contexts map[string]map[string]string
}

// init ensures internal structures are allocated.
func (s *Store) init() {
	s.once.Do(func() {
		s.global = make(map[string]string)
		s.contexts = make(map[string]map[string]string)
	})
}

// SetGlobal sets a variable in the global scope.
func (s *Store) SetGlobal(name, value string) error {
	if name == "" {
		return ErrEmptyName
	}

	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.global[name] = value

	return nil
}

// SetContext sets a variable in the named context, creating the context
// if it does not exist yet.
func (s *Store) SetContext(context, name, value string) error {
	if name == "" {
		return ErrEmptyName
	}

	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.contexts[context]
	if !ok {
		m = make(map[string]string)
		s.contexts[context] = m
	}
	m[name] = value

	return nil
}

// DeleteGlobal removes a variable from the global scope.
func (s *Store) DeleteGlobal(name string) {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.global, name)
}

// DeleteContext removes a context and all of its variables. Global
// variables are untouched.
func (s *Store) DeleteContext(context string) {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.contexts, context)
}

// Resolve looks up a variable. When context names an existing context
// that defines the variable, the context value wins; otherwise the
// global scope is consulted. The second return value reports whether
// the variable was found in either scope.
func (s *Store) Resolve(context, name string) (string, bool) {
	s.init()
	s.mu.RLock()
	defer s.mu.RUnlock()

	if context != "" {
		if m, ok := s.contexts[context]; ok {
			if v, ok := m[name]; ok {
				return v, true
			}
		}
	}

	v, ok := s.global[name]

	return v, ok
}

// Contexts returns the sorted names of all contexts.
func (s *Store) Contexts() []string {
	s.init()
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.contexts))
	for name := range s.contexts {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Globals returns a copy of the global scope.
func (s *Store) Globals() map[string]string {
	s.init()
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyMap(s.global)
}

// ContextVars returns a copy of the named context's own variables,
// without the inherited globals. The copy is nil when the context does
// not exist.
func (s *Store) ContextVars(context string) map[string]string {
	s.init()
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.contexts[context]
	if !ok {
		return nil
	}

	return copyMap(m)
}

// SeedEnviron imports process environment variables into the global
// scope. When prefix is non-empty only variables with that prefix are
// imported, with the prefix stripped from the name. It returns the
// number of variables imported.
func (s *Store) SeedEnviron(environ []string, prefix string) int {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		if prefix != "" {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			name = strings.TrimPrefix(name, prefix)
			if name == "" {
				continue
			}
		}
		s.global[name] = value
		n++
	}

	return n
}

// LoadDotenv merges variables from the given .env files into the global
// scope. With no arguments it reads ".env" in the working directory.
// Values already set by a later call or by SetGlobal are overwritten.
func (s *Store) LoadDotenv(paths ...string) error {
	env, err := godotenv.Read(paths...)
	if err != nil {
		return fmt.Errorf("vars: load dotenv: %w", err)
	}

	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, value := range env {
		if name == "" {
			continue
		}
		s.global[name] = value
	}

	return nil
}

func copyMap(m map[string]string) map[string]string {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}

	return cp
}
