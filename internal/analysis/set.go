package analysis

import (
	"encoding/json"
	"sort"
)

// StringSet is an unordered set of strings. Sorted gives a deterministic
// view and JSON encodes as a sorted array.
type StringSet map[string]struct{}

// NewStringSet returns a set holding items.
func NewStringSet(items ...string) StringSet {
	s := make(StringSet, len(items))
	for _, it := range items {
		s.Add(it)
	}
	return s
}

func (s StringSet) Add(item string) { s[item] = struct{}{} }

func (s StringSet) Has(item string) bool {
	_, ok := s[item]
	return ok
}

func (s StringSet) Len() int { return len(s) }

// Sorted returns the members in ascending order. It never returns nil.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Intersect returns the members present in both sets.
func (s StringSet) Intersect(o StringSet) StringSet {
	out := StringSet{}
	for k := range s {
		if o.Has(k) {
			out.Add(k)
		}
	}
	return out
}

// Difference returns the members of s that are not in o.
func (s StringSet) Difference(o StringSet) StringSet {
	out := StringSet{}
	for k := range s {
		if !o.Has(k) {
			out.Add(k)
		}
	}
	return out
}

// Equal reports whether both sets hold the same members.
func (s StringSet) Equal(o StringSet) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if !o.Has(k) {
			return false
		}
	}
	return true
}

func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *StringSet) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = NewStringSet(items...)
	return nil
}
