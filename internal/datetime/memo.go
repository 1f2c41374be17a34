package datetime

import (
	"encoding/json"
	"sync"
)

// ParseFunc turns an entity value into a fragment.
type ParseFunc func(raw json.RawMessage) (Fragment, error)

// Memo holds the parsed fragment of a single entity. Only successful parses
// are kept; after a failure the next Get parses again. The zero value is
// ready to use and parses with ParseFragment.
type Memo struct {
	mu     sync.Mutex
	parse  ParseFunc
	frag   Fragment
	parsed bool
}

// NewMemo returns a memo that parses with fn instead of ParseFragment.
func NewMemo(fn ParseFunc) *Memo {
	return &Memo{parse: fn}
}

// Get returns the memoized fragment, parsing raw on the first call and after
// every failed one.
func (m *Memo) Get(raw json.RawMessage) (Fragment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.parsed {
		return m.frag, nil
	}

	parse := m.parse
	if parse == nil {
		parse = ParseFragment
	}
	frag, err := parse(raw)
	if err != nil {
		return Fragment{}, err
	}
	m.frag = frag
	m.parsed = true
	return frag, nil
}
