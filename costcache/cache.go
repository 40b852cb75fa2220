// Package costcache holds the memoized per-(sequence, instance) costs the
// synthesizer prices candidate sequences with.
package costcache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/snow-ghost/combiner/strategy"
)

// ErrStaleJournal is reported when a journal does not belong to the current
// candidate set, corpus or mode. The journal is discarded and rebuilt.
var ErrStaleJournal = errors.New("stale cost cache journal")

// Mode selects what an entry stores.
type Mode int

const (
	// ModeFull stores suffix-cost vectors.
	ModeFull Mode = iota
	// ModeQuick stores one whole-sequence cost.
	ModeQuick
)

func (m Mode) String() string {
	if m == ModeQuick {
		return "quick"
	}
	return "full"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "full", "":
		*m = ModeFull
	case "quick":
		*m = ModeQuick
	default:
		return fmt.Errorf("unknown cache mode %q", text)
	}
	return nil
}

// Section is the sealed cache content of one candidate sequence: one journal
// record. Entries maps instance name to its cost entry; an instance the
// sequence did not decide is absent.
type Section struct {
	Index       int                  `json:"index"`
	Sequence    string               `json:"sequence"`
	Mode        Mode                 `json:"mode"`
	Fingerprint string               `json:"fingerprint"`
	Entries     map[string][]float64 `json:"entries"`
}

// Fingerprint identifies a section's inputs: the mode, the canonical
// sequence and the sorted instance names.
func Fingerprint(mode Mode, seq strategy.Sequence, names []string) string {
	sorted := slices.Clone(names)
	sort.Strings(sorted)
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%s", mode, seq.String(), strings.Join(sorted, "\n"))
	return hex.EncodeToString(h.Sum(nil))
}

// Cache is the in-memory view of sealed sections, indexed by sequence index.
// It is read-only once built and safe for concurrent readers.
type Cache struct {
	mode     Mode
	penalty  float64
	sections []map[string][]float64
}

// New builds a cache from sections ordered by index.
func New(mode Mode, penalty float64, sections []Section) *Cache {
	c := &Cache{mode: mode, penalty: penalty, sections: make([]map[string][]float64, len(sections))}
	for i, s := range sections {
		c.sections[i] = s.Entries
	}
	return c
}

func (c *Cache) Mode() Mode { return c.mode }

// Penalty is the cost charged for an absent entry.
func (c *Cache) Penalty() float64 { return c.penalty }

// Len returns the number of sealed sections.
func (c *Cache) Len() int { return len(c.sections) }

// Lookup returns the entry for (idx, name). Absence is distinct from a zero
// cost.
func (c *Cache) Lookup(idx int, name string) ([]float64, bool) {
	if idx < 0 || idx >= len(c.sections) {
		return nil, false
	}
	v, ok := c.sections[idx][name]
	return v, ok
}

// Solved reports whether sequence idx reached a definite result on name.
func (c *Cache) Solved(idx int, name string) bool {
	_, ok := c.Lookup(idx, name)
	return ok
}

// SuffixCost prices the last length tactics of sequence idx on name. In
// quick mode the whole-sequence cost is returned regardless of length.
// Absent entries cost the penalty.
func (c *Cache) SuffixCost(idx int, name string, length int) float64 {
	v, ok := c.Lookup(idx, name)
	if !ok || len(v) == 0 {
		return c.penalty
	}
	if c.mode == ModeQuick {
		return v[0]
	}
	k := len(v) - 1
	if length > k {
		length = k
	}
	if length < 0 {
		length = 0
	}
	return v[k-length]
}
