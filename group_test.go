package phash

import (
	"slices"
	"testing"
)

// tokenOf builds a 16-bit token with the given bits set.
func tokenOf(bits ...int) HashToken {
	t := newToken(16)
	for _, b := range bits {
		t.set(b)
	}
	return t
}

func TestGroupingTable_Accessors(t *testing.T) {
	t.Parallel()
	tbl := newGroupingTable()
	a, b := tokenOf(0), tokenOf(15)
	tbl.add(a, "a1")
	tbl.add(b, "b1")
	tbl.add(a, "a2")

	if got := tbl.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
	if got := tbl.Members(); got != 3 {
		t.Errorf("Members() = %d, want 3", got)
	}
	if got := tbl.Group(a.String()); !slices.Equal(got, []string{"a1", "a2"}) {
		t.Errorf("Group(a) = %v, want [a1 a2]", got)
	}
	if got := tbl.Group("missing"); got != nil {
		t.Errorf("Group(missing) = %v, want nil", got)
	}
	if keys := tbl.Keys(); !slices.IsSorted(keys) || len(keys) != 2 {
		t.Errorf("Keys() = %v, want 2 sorted keys", keys)
	}
	if tok, ok := tbl.Token(b.String()); !ok || !tok.Equal(b) {
		t.Errorf("Token(b) = %s, %v", tok, ok)
	}

	dups := tbl.Duplicates()
	if len(dups) != 1 || len(dups[a.String()]) != 2 {
		t.Errorf("Duplicates() = %v, want only the a group", dups)
	}
}

func TestGroupingTable_CopiesAreIsolated(t *testing.T) {
	t.Parallel()
	tbl := newGroupingTable()
	tok := tokenOf(3)
	tbl.add(tok, "x")

	tbl.Group(tok.String())[0] = "mutated"
	tbl.Groups()[tok.String()][0] = "mutated"
	delete(tbl.Groups(), tok.String())

	if got := tbl.Group(tok.String()); !slices.Equal(got, []string{"x"}) {
		t.Errorf("table changed through a copy: %v", got)
	}
}

func TestGroupingTable_Cluster(t *testing.T) {
	t.Parallel()
	tbl := newGroupingTable()
	tbl.add(tokenOf(0, 1, 2), "a")
	tbl.add(tokenOf(0, 1, 2, 3), "b")    // 1 bit from a
	tbl.add(tokenOf(0, 1, 2, 3, 4), "c") // 1 bit from b, 2 from a
	tbl.add(tokenOf(10, 11, 12, 13), "d")
	tbl.add(tokenOf(0, 1, 2), "a2")

	exact := tbl.Cluster(0)
	if len(exact) != 4 {
		t.Fatalf("Cluster(0) = %d clusters, want 4", len(exact))
	}
	for _, c := range exact {
		if len(c.Keys) != 1 {
			t.Errorf("Cluster(0) merged keys %v", c.Keys)
		}
	}

	near := tbl.Cluster(1)
	if len(near) != 2 {
		t.Fatalf("Cluster(1) = %d clusters, want 2", len(near))
	}
	var merged Cluster
	for _, c := range near {
		if len(c.Keys) == 3 {
			merged = c
		}
	}
	got := slices.Clone(merged.Members)
	slices.Sort(got)
	if !slices.Equal(got, []string{"a", "a2", "b", "c"}) {
		t.Errorf("transitive cluster members = %v", got)
	}
	if !slices.IsSorted(merged.Keys) {
		t.Errorf("cluster keys not sorted: %v", merged.Keys)
	}

	if all := tbl.Cluster(64); len(all) != 1 || len(all[0].Members) != 5 {
		t.Errorf("Cluster(64) = %+v, want everything merged", all)
	}
}

func TestGroupingTable_ClusterOrderIsStable(t *testing.T) {
	t.Parallel()
	build := func(order []int) []Cluster {
		tbl := newGroupingTable()
		toks := []HashToken{tokenOf(1), tokenOf(1, 2), tokenOf(9), tokenOf(14, 15)}
		for _, i := range order {
			tbl.add(toks[i], toks[i].String())
		}
		return tbl.Cluster(1)
	}
	a := build([]int{0, 1, 2, 3})
	b := build([]int{3, 2, 1, 0})
	if len(a) != len(b) {
		t.Fatalf("cluster counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !slices.Equal(a[i].Keys, b[i].Keys) {
			t.Errorf("cluster %d keys %v vs %v", i, a[i].Keys, b[i].Keys)
		}
	}
}

func TestAggregator_OnResult(t *testing.T) {
	t.Parallel()
	var results []HashResult
	agg := newAggregator(func(r HashResult) { results = append(results, r) })
	agg.add("ok", tokenOf(1))
	agg.fail("bad", ErrDecode)
	agg.skip("late")

	if len(results) != 2 {
		t.Fatalf("OnResult called %d times, want 2", len(results))
	}
	if !results[0].OK() || results[1].OK() {
		t.Errorf("results = %+v", results)
	}
	if len(agg.failures) != 1 || agg.failures[0].Kind != KindDecode {
		t.Errorf("failures = %+v", agg.failures)
	}
	if !slices.Equal(agg.skipped, []string{"late"}) {
		t.Errorf("skipped = %v", agg.skipped)
	}
}
