package frontier

import (
	"math/rand"
	"testing"

	"hexcolony/internal/domain/hex"
)

func TestCompute_ZeroDistanceIsEmpty(t *testing.T) {
	owned := []hex.Coordinate{hex.Axial(0, 0), hex.Axial(1, 0)}
	if got := Compute(owned, 0); len(got) != 0 {
		t.Fatalf("expected empty frontier, got %d", len(got))
	}
}

func TestCompute_MatchesBruteForce(t *testing.T) {
	owned := []hex.Coordinate{hex.Axial(0, 0), hex.Axial(1, 0), hex.Axial(4, -2)}
	for k := 1; k <= 3; k++ {
		got := Compute(owned, k)
		want := bruteForce(owned, k)
		if len(got) != len(want) {
			t.Fatalf("k=%d: got %d coords, want %d", k, len(got), len(want))
		}
		for id := range want {
			if !got.Contains(id) {
				t.Fatalf("k=%d: missing %s", k, id)
			}
		}
		for _, c := range owned {
			if got.Contains(hex.Encode(c)) {
				t.Fatalf("k=%d: owned coordinate %v leaked into frontier", k, c)
			}
		}
	}
}

func TestCompute_SingleTileRingCounts(t *testing.T) {
	got := Compute([]hex.Coordinate{hex.Axial(0, 0)}, 2)
	if len(got) != 18 {
		t.Fatalf("expected 18 coords around a single tile at distance 2, got %d", len(got))
	}
}

func TestTracker_MatchesComputeUnderChurn(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	tr := NewTracker(2)
	owned := map[hex.TileID]hex.Coordinate{}
	pool := hex.Range(hex.Axial(0, 0), 4)
	for step := 0; step < 300; step++ {
		c := pool[rng.Intn(len(pool))]
		id := hex.Encode(c)
		before := tr.Frontier()
		var d Delta
		if _, ok := owned[id]; ok && rng.Intn(2) == 0 {
			delete(owned, id)
			d = tr.Remove(c)
		} else {
			owned[id] = c
			d = tr.Add(c)
		}
		after := tr.Frontier()
		assertSameSet(t, after, Compute(values(owned), 2))
		assertDeltaConsistent(t, before, after, d)
	}
}

func TestTracker_AddIsIdempotent(t *testing.T) {
	tr := NewTracker(1)
	d1 := tr.Add(hex.Axial(0, 0))
	d2 := tr.Add(hex.Axial(0, 0))
	if len(d1.Entered) != 6 {
		t.Fatalf("expected 6 entered, got %d", len(d1.Entered))
	}
	if !d2.Empty() {
		t.Fatalf("second add should be a no-op, got %+v", d2)
	}
	if len(tr.Frontier()) != 6 {
		t.Fatalf("expected frontier of 6, got %d", len(tr.Frontier()))
	}
}

func TestTracker_SetDistance(t *testing.T) {
	tr := NewTracker(1)
	tr.Add(hex.Axial(0, 0))
	d := tr.SetDistance(2)
	if len(d.Entered) != 12 || len(d.Left) != 0 {
		t.Fatalf("expected 12 entered on growth, got %+v", d)
	}
	d = tr.SetDistance(0)
	if len(d.Left) != 18 || len(tr.Frontier()) != 0 {
		t.Fatalf("expected frontier cleared, got delta=%+v frontier=%d", d, len(tr.Frontier()))
	}
}

func TestTracker_RemoveRestoresOwnTileToFrontier(t *testing.T) {
	tr := NewTracker(1)
	tr.Add(hex.Axial(0, 0))
	tr.Add(hex.Axial(1, 0))
	d := tr.Remove(hex.Axial(1, 0))
	if !tr.Contains(hex.Encode(hex.Axial(1, 0))) {
		t.Fatalf("lost tile next to an owned one should be frontier")
	}
	found := false
	for _, c := range d.Entered {
		if c == hex.Axial(1, 0) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected removed tile in entered set, got %+v", d)
	}
}

func bruteForce(owned []hex.Coordinate, k int) Set {
	ownedIDs := map[hex.TileID]bool{}
	for _, c := range owned {
		ownedIDs[hex.Encode(c)] = true
	}
	out := Set{}
	for _, c := range hex.Range(hex.Axial(0, 0), 12) {
		if ownedIDs[hex.Encode(c)] {
			continue
		}
		for _, o := range owned {
			if hex.Distance(c, o) <= k {
				out[hex.Encode(c)] = c
				break
			}
		}
	}
	return out
}

func values(m map[hex.TileID]hex.Coordinate) []hex.Coordinate {
	out := make([]hex.Coordinate, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

func assertSameSet(t *testing.T, got, want Set) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("frontier size mismatch: got=%d want=%d", len(got), len(want))
	}
	for id := range want {
		if !got.Contains(id) {
			t.Fatalf("frontier missing %s", id)
		}
	}
}

func assertDeltaConsistent(t *testing.T, before, after Set, d Delta) {
	t.Helper()
	entered := map[hex.TileID]bool{}
	for _, c := range d.Entered {
		entered[hex.Encode(c)] = true
	}
	left := map[hex.TileID]bool{}
	for _, id := range d.Left {
		left[id] = true
	}
	for id := range after {
		if !before.Contains(id) && !entered[id] {
			t.Fatalf("%s entered frontier without being reported", id)
		}
	}
	for id := range before {
		if !after.Contains(id) && !left[id] {
			t.Fatalf("%s left frontier without being reported", id)
		}
	}
	if len(entered)+len(left) != countDiff(before, after) {
		t.Fatalf("delta reports spurious changes: %+v", d)
	}
}

func countDiff(before, after Set) int {
	n := 0
	for id := range after {
		if !before.Contains(id) {
			n++
		}
	}
	for id := range before {
		if !after.Contains(id) {
			n++
		}
	}
	return n
}
