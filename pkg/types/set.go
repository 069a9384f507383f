package types

import (
	"encoding/json"
	"sort"
)

// StringSet is an unordered set of string ids. It marshals as a sorted
// JSON array so the encoded bytes are identical on every replica.
type StringSet map[string]struct{}

// NewStringSet builds a set from the given members.
func NewStringSet(members ...string) StringSet {
	s := make(StringSet, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// Add inserts a member into the set.
func (s StringSet) Add(member string) {
	s[member] = struct{}{}
}

// Remove deletes a member from the set.
func (s StringSet) Remove(member string) {
	delete(s, member)
}

// Contains reports whether the member is in the set.
func (s StringSet) Contains(member string) bool {
	_, ok := s[member]
	return ok
}

// Len returns the number of members.
func (s StringSet) Len() int {
	return len(s)
}

// Union inserts every member of other into the set.
func (s StringSet) Union(other StringSet) {
	for m := range other {
		s[m] = struct{}{}
	}
}

// Values returns the members in sorted order.
func (s StringSet) Values() []string {
	out := make([]string, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Clone returns a copy of the set.
func (s StringSet) Clone() StringSet {
	out := make(StringSet, len(s))
	for m := range s {
		out[m] = struct{}{}
	}
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

// UnmarshalJSON decodes the set from an array in any order.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var members []string
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	*s = NewStringSet(members...)
	return nil
}
