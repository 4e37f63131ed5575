package phash

import (
	"slices"
	"sync"
)

// GroupingTable maps a base-36 token to the IDs of the sources that produced
// it, in the order the aggregator accepted them. A table returned by the
// batch API is complete and is never modified afterwards; accessors hand out
// copies.
type GroupingTable struct {
	groups map[string][]string
	tokens map[string]HashToken
}

func newGroupingTable() *GroupingTable {
	return &GroupingTable{
		groups: make(map[string][]string),
		tokens: make(map[string]HashToken),
	}
}

func (t *GroupingTable) add(tok HashToken, id string) {
	key := tok.String()
	if _, ok := t.tokens[key]; !ok {
		t.tokens[key] = tok
	}
	t.groups[key] = append(t.groups[key], id)
}

// Len returns the number of distinct tokens.
func (t *GroupingTable) Len() int {
	return len(t.groups)
}

// Members returns the total number of sources across all groups.
func (t *GroupingTable) Members() int {
	var n int
	for _, ids := range t.groups {
		n += len(ids)
	}
	return n
}

// Keys returns the tokens in lexical order.
func (t *GroupingTable) Keys() []string {
	keys := make([]string, 0, len(t.groups))
	for k := range t.groups {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Group returns the source IDs stored under key, or nil.
func (t *GroupingTable) Group(key string) []string {
	return slices.Clone(t.groups[key])
}

// Token returns the full token stored under key.
func (t *GroupingTable) Token(key string) (HashToken, bool) {
	tok, ok := t.tokens[key]
	return tok, ok
}

// Groups returns a copy of the whole table, singletons included.
func (t *GroupingTable) Groups() map[string][]string {
	out := make(map[string][]string, len(t.groups))
	for k, ids := range t.groups {
		out[k] = slices.Clone(ids)
	}
	return out
}

// Duplicates returns only the groups with more than one member.
func (t *GroupingTable) Duplicates() map[string][]string {
	out := make(map[string][]string)
	for k, ids := range t.groups {
		if len(ids) > 1 {
			out[k] = slices.Clone(ids)
		}
	}
	return out
}

// Cluster is a set of exact groups whose tokens are within a Hamming distance
// of each other.
type Cluster struct {
	Keys    []string // tokens of the merged groups, in lexical order
	Members []string // source IDs, grouped by key, insertion order within a key
}

// Cluster merges groups whose tokens are within maxDistance bits of each
// other (transitively). maxDistance 0 yields the exact groups. Clusters are
// sorted by their first key, so the result does not depend on scheduling.
func (t *GroupingTable) Cluster(maxDistance int) []Cluster {
	keys := t.Keys()
	parent := make([]int, len(keys))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	if maxDistance > 0 {
		hashes := make([]HashToken, len(keys))
		for i, k := range keys {
			hashes[i] = t.tokens[k]
		}
		for i := range keys {
			for j := i + 1; j < len(keys); j++ {
				d, err := hashes[i].Distance(hashes[j])
				if err != nil || d > maxDistance {
					continue
				}
				if ri, rj := find(i), find(j); ri != rj {
					parent[max(ri, rj)] = min(ri, rj)
				}
			}
		}
	}

	index := make(map[int]int)
	var clusters []Cluster
	for i, k := range keys {
		root := find(i)
		at, ok := index[root]
		if !ok {
			at = len(clusters)
			index[root] = at
			clusters = append(clusters, Cluster{})
		}
		clusters[at].Keys = append(clusters[at].Keys, k)
		clusters[at].Members = append(clusters[at].Members, t.groups[k]...)
	}
	return clusters
}

// aggregator is the single synchronised mutation point of a batch run.
type aggregator struct {
	mu       sync.Mutex
	table    *GroupingTable
	failures []Failure
	skipped  []string
	onResult func(HashResult)
}

func newAggregator(onResult func(HashResult)) *aggregator {
	return &aggregator{table: newGroupingTable(), onResult: onResult}
}

func (a *aggregator) add(id string, tok HashToken) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.table.add(tok, id)
	if a.onResult != nil {
		a.onResult(HashResult{ID: id, Token: tok})
	}
}

func (a *aggregator) fail(id string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures = append(a.failures, Failure{ID: id, Kind: Kind(err), Err: err})
	if a.onResult != nil {
		a.onResult(HashResult{ID: id, Err: err})
	}
}

func (a *aggregator) skip(ids ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.skipped = append(a.skipped, ids...)
}
