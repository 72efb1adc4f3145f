// Package frontier computes the explorable edge around a colony: every
// unowned coordinate within the view distance of an owned one.
package frontier

import (
	"sort"

	"hexcolony/internal/domain/hex"
)

// Set is a coordinate set keyed by tile id.
type Set map[hex.TileID]hex.Coordinate

func (s Set) Contains(id hex.TileID) bool {
	_, ok := s[id]
	return ok
}

// SortedIDs returns the ids in lexical order.
func (s Set) SortedIDs() []hex.TileID {
	out := make([]hex.TileID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Compute recomputes the whole frontier. It is empty when viewDistance <= 0.
func Compute(owned []hex.Coordinate, viewDistance int) Set {
	out := Set{}
	if viewDistance <= 0 || len(owned) == 0 {
		return out
	}
	ownedIDs := make(map[hex.TileID]struct{}, len(owned))
	for _, c := range owned {
		ownedIDs[hex.Encode(c)] = struct{}{}
	}
	for _, c := range owned {
		for _, p := range hex.Range(c, viewDistance) {
			id := hex.Encode(p)
			if _, ok := ownedIDs[id]; ok {
				continue
			}
			out[id] = p
		}
	}
	return out
}

// Delta lists coordinates that entered or left the frontier after a change.
type Delta struct {
	Entered []hex.Coordinate
	Left    []hex.TileID
}

func (d Delta) Empty() bool {
	return len(d.Entered) == 0 && len(d.Left) == 0
}

// Tracker maintains the frontier incrementally. Each coordinate keeps a count
// of owned tiles within range, so adding or removing one owned tile only
// touches the hexes around it.
type Tracker struct {
	distance int
	owned    map[hex.TileID]hex.Coordinate
	cover    map[hex.TileID]int
	coords   map[hex.TileID]hex.Coordinate
}

func NewTracker(distance int) *Tracker {
	if distance < 0 {
		distance = 0
	}
	return &Tracker{
		distance: distance,
		owned:    map[hex.TileID]hex.Coordinate{},
		cover:    map[hex.TileID]int{},
		coords:   map[hex.TileID]hex.Coordinate{},
	}
}

func (t *Tracker) Distance() int { return t.distance }

func (t *Tracker) Owned(id hex.TileID) bool {
	_, ok := t.owned[id]
	return ok
}

func (t *Tracker) Contains(id hex.TileID) bool {
	return t.inFrontier(id)
}

func (t *Tracker) inFrontier(id hex.TileID) bool {
	if _, ok := t.owned[id]; ok {
		return false
	}
	return t.cover[id] > 0
}

func (t *Tracker) Add(c hex.Coordinate) Delta {
	id := hex.Encode(c)
	if _, ok := t.owned[id]; ok {
		return Delta{}
	}
	var d Delta
	if t.inFrontier(id) {
		d.Left = append(d.Left, id)
	}
	t.owned[id] = c
	if t.distance == 0 {
		return d
	}
	for _, p := range hex.Range(c, t.distance) {
		pid := hex.Encode(p)
		before := t.inFrontier(pid)
		t.cover[pid]++
		t.coords[pid] = p
		if !before && t.inFrontier(pid) {
			d.Entered = append(d.Entered, p)
		}
	}
	return d
}

func (t *Tracker) Remove(c hex.Coordinate) Delta {
	id := hex.Encode(c)
	if _, ok := t.owned[id]; !ok {
		return Delta{}
	}
	var d Delta
	if t.distance > 0 {
		for _, p := range hex.Range(c, t.distance) {
			pid := hex.Encode(p)
			before := t.inFrontier(pid)
			t.cover[pid]--
			if t.cover[pid] <= 0 {
				delete(t.cover, pid)
				delete(t.coords, pid)
			}
			if pid == id {
				continue
			}
			if before && !t.inFrontier(pid) {
				d.Left = append(d.Left, pid)
			}
		}
	}
	delete(t.owned, id)
	if t.inFrontier(id) {
		d.Entered = append(d.Entered, c)
	}
	return d
}

// SetDistance rebuilds coverage for a new view distance.
func (t *Tracker) SetDistance(distance int) Delta {
	if distance < 0 {
		distance = 0
	}
	if distance == t.distance {
		return Delta{}
	}
	before := t.Frontier()
	owned := make([]hex.Coordinate, 0, len(t.owned))
	for _, c := range t.owned {
		owned = append(owned, c)
	}
	t.distance = distance
	t.cover = map[hex.TileID]int{}
	t.coords = map[hex.TileID]hex.Coordinate{}
	t.owned = map[hex.TileID]hex.Coordinate{}
	for _, c := range owned {
		t.Add(c)
	}
	after := t.Frontier()

	var d Delta
	for _, id := range after.SortedIDs() {
		if !before.Contains(id) {
			d.Entered = append(d.Entered, after[id])
		}
	}
	for _, id := range before.SortedIDs() {
		if !after.Contains(id) {
			d.Left = append(d.Left, id)
		}
	}
	return d
}

// Frontier returns a copy of the current frontier.
func (t *Tracker) Frontier() Set {
	out := make(Set, len(t.coords))
	for id, c := range t.coords {
		if t.inFrontier(id) {
			out[id] = c
		}
	}
	return out
}
