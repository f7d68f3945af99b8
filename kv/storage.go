package kv

import (
	"slices"

	"github.com/indigo-web/iter"
	"github.com/indigo-web/utils/strcomp"
)

type Pair struct {
	Key, Value string
}

// Storage is an ordered multimap of (string, string) pairs, used for header fields. Lookups
// are linear, which beats hashing on the handful of entries a message usually carries.
// Keys compare case-insensitively; the original case and the order are preserved.
type Storage struct {
	pairs []Pair
	// scratch is reused by Values and Keys
	scratch []string
}

func New() *Storage {
	return new(Storage)
}

// NewPrealloc returns an empty storage with room for n pairs.
func NewPrealloc(n int) *Storage {
	return &Storage{pairs: make([]Pair, 0, n)}
}

// NewFromPairs copies the pairs, keeping their order.
func NewFromPairs(pairs ...Pair) *Storage {
	return &Storage{pairs: clonePairs(pairs)}
}

// indexOf returns the position of the first pair of the key at or after from, or -1.
func (s *Storage) indexOf(key string, from int) int {
	for i := from; i < len(s.pairs); i++ {
		if strcomp.EqualFold(s.pairs[i].Key, key) {
			return i
		}
	}

	return -1
}

// Add appends the pair. Existing entries of the key are kept.
func (s *Storage) Add(key, value string) *Storage {
	s.pairs = append(s.pairs, Pair{Key: key, Value: value})
	return s
}

// Set overwrites the first entry of the key and drops the rest of them. A missing key
// is appended.
func (s *Storage) Set(key, value string) *Storage {
	i := s.indexOf(key, 0)
	if i == -1 {
		return s.Add(key, value)
	}

	s.pairs[i].Value = value
	return s.compact(i+1, key)
}

// Delete removes every entry of the key.
func (s *Storage) Delete(key string) *Storage {
	return s.compact(0, key)
}

func (s *Storage) compact(from int, key string) *Storage {
	tail := slices.DeleteFunc(s.pairs[from:], s.matcher(key))
	s.pairs = s.pairs[:from+len(tail)]
	return s
}

func (s *Storage) matcher(key string) func(Pair) bool {
	return func(pair Pair) bool {
		return strcomp.EqualFold(pair.Key, key)
	}
}

// Get returns the first value of the key and whether there's any.
func (s *Storage) Get(key string) (value string, found bool) {
	if i := s.indexOf(key, 0); i != -1 {
		return s.pairs[i].Value, true
	}

	return "", false
}

// Value returns the first value of the key or the empty string.
func (s *Storage) Value(key string) string {
	value, _ := s.Get(key)
	return value
}

// ValueOr returns the first value of the key or the fallback.
func (s *Storage) ValueOr(key, fallback string) string {
	if value, found := s.Get(key); found {
		return value
	}

	return fallback
}

// Values returns every value of the key in order, or nil.
//
// The returned slice is reused by the next call to Values or Keys.
func (s *Storage) Values(key string) []string {
	s.scratch = s.scratch[:0]
	for i := s.indexOf(key, 0); i != -1; i = s.indexOf(key, i+1) {
		s.scratch = append(s.scratch, s.pairs[i].Value)
	}

	if len(s.scratch) == 0 {
		return nil
	}

	return s.scratch
}

// Count returns the number of entries of the key.
func (s *Storage) Count(key string) (n int) {
	for i := s.indexOf(key, 0); i != -1; i = s.indexOf(key, i+1) {
		n++
	}

	return n
}

// Keys returns the distinct keys in the order of their first occurrence, each spelled as
// it first occurred.
//
// The returned slice is reused by the next call to Values or Keys.
func (s *Storage) Keys() []string {
	s.scratch = s.scratch[:0]
	for i, pair := range s.pairs {
		if s.indexOf(pair.Key, 0) == i {
			s.scratch = append(s.scratch, pair.Key)
		}
	}

	return s.scratch
}

func (s *Storage) Iter() iter.Iterator[Pair] {
	return iter.Slice(s.pairs)
}

func (s *Storage) Has(key string) bool {
	return s.indexOf(key, 0) != -1
}

func (s *Storage) Len() int {
	return len(s.pairs)
}

func (s *Storage) Empty() bool {
	return len(s.pairs) == 0
}

// Clone returns a deep copy, safe to be retained.
func (s *Storage) Clone() *Storage {
	return &Storage{pairs: clonePairs(s.pairs)}
}

// Expose returns the underlying pairs in insertion order. It must not be modified.
func (s *Storage) Expose() []Pair {
	return s.pairs
}

// Clear drops all the entries, keeping the allocated space.
func (s *Storage) Clear() *Storage {
	s.pairs = s.pairs[:0]
	return s
}

func clonePairs(pairs []Pair) []Pair {
	if len(pairs) == 0 {
		return nil
	}

	return slices.Clone(pairs)
}
