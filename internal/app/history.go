package app

import (
	"strings"
	"sync"
)

// Address is one history entry: a path plus an optional fragment.
type Address struct {
	Path     string
	Fragment string
}

// ParseAddress splits "/trading#settings" into path and fragment.
func ParseAddress(raw string) Address {
	raw = strings.TrimSpace(raw)
	path, fragment, _ := strings.Cut(raw, "#")
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return Address{Path: path, Fragment: fragment}
}

func (a Address) String() string {
	if a.Fragment == "" {
		return a.Path
	}
	return a.Path + "#" + a.Fragment
}

// History is an in-process session history with browser semantics:
// Push drops forward entries, Back and Forward move without pushing.
type History struct {
	mu      sync.Mutex
	entries []Address
	index   int
}

// NewHistory starts a history at initial.
func NewHistory(initial Address) *History {
	return &History{entries: []Address{initial}}
}

// Current returns the address the history points at.
func (h *History) Current() Address {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index]
}

// Push appends a new entry after the current one.
func (h *History) Push(a Address) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.index+1], a)
	h.index = len(h.entries) - 1
}

// Back moves one entry back. Reports false at the start.
func (h *History) Back() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index == 0 {
		return false
	}
	h.index--
	return true
}

// Forward moves one entry forward. Reports false at the end.
func (h *History) Forward() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index >= len(h.entries)-1 {
		return false
	}
	h.index++
	return true
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
