package hex

import "math"

// MaxComponent bounds each axis so coordinates fit the stores' 32-bit columns.
const MaxComponent = math.MaxInt32

// Coordinate is a cube coordinate on the hex grid. Q+R+S must be zero.
type Coordinate struct {
	Q int `json:"q"`
	R int `json:"r"`
	S int `json:"s"`
}

// Axial builds a coordinate from q and r, deriving s.
func Axial(q, r int) Coordinate {
	return Coordinate{Q: q, R: r, S: -q - r}
}

func (c Coordinate) Valid() bool {
	return c.Q+c.R+c.S == 0
}

// InBounds reports whether every axis lies within ±MaxComponent.
func (c Coordinate) InBounds() bool {
	for _, v := range [3]int{c.Q, c.R, c.S} {
		if v > MaxComponent || v < -MaxComponent {
			return false
		}
	}
	return true
}

func (c Coordinate) Add(d Coordinate) Coordinate {
	return Coordinate{Q: c.Q + d.Q, R: c.R + d.R, S: c.S + d.S}
}

func (c Coordinate) ID() TileID {
	return Encode(c)
}

// Directions is the canonical neighbor order, starting east and turning counter-clockwise.
var Directions = [6]Coordinate{
	{Q: 1, R: 0, S: -1},
	{Q: 1, R: -1, S: 0},
	{Q: 0, R: -1, S: 1},
	{Q: -1, R: 0, S: 1},
	{Q: -1, R: 1, S: 0},
	{Q: 0, R: 1, S: -1},
}

func Neighbors(c Coordinate) [6]Coordinate {
	var out [6]Coordinate
	for i, d := range Directions {
		out[i] = c.Add(d)
	}
	return out
}

func Distance(a, b Coordinate) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S - b.S)
	return max(dq, dr, ds)
}

// IsAdjacentToSet reports whether any neighbor of c is in owned.
func IsAdjacentToSet(c Coordinate, owned map[TileID]struct{}) bool {
	if len(owned) == 0 {
		return false
	}
	for _, n := range Neighbors(c) {
		if _, ok := owned[Encode(n)]; ok {
			return true
		}
	}
	return false
}

// Range returns every coordinate within radius of center, center included.
// The order is stable: q ascending, then r ascending.
func Range(center Coordinate, radius int) []Coordinate {
	if radius < 0 {
		return nil
	}
	out := make([]Coordinate, 0, 1+3*radius*(radius+1))
	for dq := -radius; dq <= radius; dq++ {
		lo := max(-radius, -dq-radius)
		hi := min(radius, -dq+radius)
		for dr := lo; dr <= hi; dr++ {
			out = append(out, center.Add(Coordinate{Q: dq, R: dr, S: -dq - dr}))
		}
	}
	return out
}

// Ring returns the coordinates at exactly radius from center.
func Ring(center Coordinate, radius int) []Coordinate {
	if radius < 0 {
		return nil
	}
	if radius == 0 {
		return []Coordinate{center}
	}
	out := make([]Coordinate, 0, 6*radius)
	cur := center.Add(scale(Directions[4], radius))
	for side := 0; side < 6; side++ {
		for step := 0; step < radius; step++ {
			out = append(out, cur)
			cur = cur.Add(Directions[side])
		}
	}
	return out
}

func scale(c Coordinate, k int) Coordinate {
	return Coordinate{Q: c.Q * k, R: c.R * k, S: c.S * k}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
