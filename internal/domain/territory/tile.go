package territory

import (
	"time"

	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/terrain"
)

type Visibility string

const (
	VisibilityVisible    Visibility = "visible"
	VisibilityUnexplored Visibility = "unexplored"
)

// TileRecord is the authoritative state of one tile. ControllerUID names the
// controlling colony; colony ids equal their owner's uid, so it is also the
// owning player. It is the only source of truth for ownership.
type TileRecord struct {
	ID              hex.TileID         `json:"id"`
	Q               int                `json:"q"`
	R               int                `json:"r"`
	S               int                `json:"s"`
	Type            terrain.TileType   `json:"type,omitempty"`
	ControllerUID   string             `json:"controllerUid,omitempty"`
	Visibility      Visibility         `json:"visibility"`
	ResourceDensity float64            `json:"resourceDensity"`
	Resources       map[string]float64 `json:"resources,omitempty"`
	Color           string             `json:"color,omitempty"`
	UpdatedAt       time.Time          `json:"updatedAt"`
	Version         int64              `json:"-"`
}

func (t TileRecord) Coordinate() hex.Coordinate {
	return hex.Coordinate{Q: t.Q, R: t.R, S: t.S}
}

func (t TileRecord) Owned() bool {
	return t.ControllerUID != ""
}

// NewTile builds a freshly generated tile for c.
func NewTile(c hex.Coordinate, s terrain.Sample, now time.Time) TileRecord {
	return TileRecord{
		ID:              hex.Encode(c),
		Q:               c.Q,
		R:               c.R,
		S:               c.S,
		Type:            s.Type,
		Visibility:      VisibilityVisible,
		ResourceDensity: s.Density,
		Resources:       s.Resources,
		UpdatedAt:       now,
	}
}

// Placeholder is an unexplored tile with no terrain or resources, used until
// the real record is fetched.
func Placeholder(c hex.Coordinate) TileRecord {
	return TileRecord{
		ID:         hex.Encode(c),
		Q:          c.Q,
		R:          c.R,
		S:          c.S,
		Visibility: VisibilityUnexplored,
	}
}

// PlaceholderFromID decodes id into a placeholder tile.
func PlaceholderFromID(id hex.TileID) (TileRecord, error) {
	c, err := hex.Decode(id)
	if err != nil {
		return TileRecord{}, err
	}
	return Placeholder(c), nil
}

// SameState reports whether two records carry identical observable fields.
func (t TileRecord) SameState(o TileRecord) bool {
	if t.ID != o.ID || t.Q != o.Q || t.R != o.R || t.S != o.S ||
		t.Type != o.Type || t.ControllerUID != o.ControllerUID ||
		t.Visibility != o.Visibility || t.ResourceDensity != o.ResourceDensity ||
		t.Color != o.Color || !t.UpdatedAt.Equal(o.UpdatedAt) ||
		len(t.Resources) != len(o.Resources) {
		return false
	}
	for k, v := range t.Resources {
		if ov, ok := o.Resources[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func (t TileRecord) Clone() TileRecord {
	out := t
	if t.Resources != nil {
		out.Resources = make(map[string]float64, len(t.Resources))
		for k, v := range t.Resources {
			out.Resources[k] = v
		}
	}
	return out
}
