// Copyright 2025 Ian Lewis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package index

import (
	"slices"
	"sort"
)

// Index is a generic sorted array index. Values are ordered by the string key
// returned by the key function and looked up with a binary search.
type Index[V any] struct {
	// values is sorted by key.
	values []V
	keys   []string

	cmp func(string, string) int
}

// NewIndex creates an index over a copy of values. cmp(a, b) should return a
// negative number when a < b, a positive number when a > b and zero when a ==
// b or a and b are incomparable in the sense of a strict weak ordering.
func NewIndex[V any](values []V, key func(V) string, cmp func(string, string) int) *Index[V] {
	type pair struct {
		key   string
		value V
	}
	pairs := make([]pair, len(values))
	for i, v := range values {
		pairs[i] = pair{key: key(v), value: v}
	}
	slices.SortStableFunc(pairs, func(a, b pair) int {
		return cmp(a.key, b.key)
	})

	idx := &Index[V]{
		values: make([]V, len(pairs)),
		keys:   make([]string, len(pairs)),
		cmp:    cmp,
	}
	for i, p := range pairs {
		idx.values[i] = p.value
		idx.keys[i] = p.key
	}
	return idx
}

// Len returns the number of values in the index.
func (idx *Index[V]) Len() int {
	return len(idx.values)
}

// Search returns all values whose key compares equal to query.
func (idx *Index[V]) Search(query string) []V {
	i, found := sort.Find(len(idx.keys), func(i int) int {
		return idx.cmp(query, idx.keys[i])
	})
	if !found {
		return nil
	}

	j := i + 1
	for j < len(idx.keys) && idx.cmp(query, idx.keys[j]) == 0 {
		j++
	}
	return idx.values[i:j]
}

// Lookup returns the first value whose key compares equal to query.
func (idx *Index[V]) Lookup(query string) (V, bool) {
	var zero V
	matches := idx.Search(query)
	if len(matches) == 0 {
		return zero, false
	}
	return matches[0], true
}
