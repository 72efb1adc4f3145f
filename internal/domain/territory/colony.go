package territory

import (
	"sort"
	"time"

	"hexcolony/internal/domain/hex"
)

// ColonyRecord is one player's territory. TerritoryScore always equals
// len(TileIDs) once a mutation helper returns.
type ColonyRecord struct {
	ID               string                  `json:"id"`
	OwnerUID         string                  `json:"ownerUid"`
	Name             string                  `json:"name"`
	Color            string                  `json:"color"`
	StartCoordinate  hex.Coordinate          `json:"startCoordinate"`
	TileIDs          map[hex.TileID]struct{} `json:"-"`
	TerritoryScore   int                     `json:"territoryScore"`
	VisibilityRadius int                     `json:"visibilityRadius"`
	Version          int64                   `json:"-"`
	CreatedAt        time.Time               `json:"createdAt"`
	UpdatedAt        time.Time               `json:"updatedAt"`
}

func (c *ColonyRecord) Owns(id hex.TileID) bool {
	_, ok := c.TileIDs[id]
	return ok
}

func (c *ColonyRecord) AddTile(id hex.TileID) {
	if c.TileIDs == nil {
		c.TileIDs = map[hex.TileID]struct{}{}
	}
	c.TileIDs[id] = struct{}{}
	c.TerritoryScore = len(c.TileIDs)
}

func (c *ColonyRecord) RemoveTile(id hex.TileID) {
	delete(c.TileIDs, id)
	c.TerritoryScore = len(c.TileIDs)
}

// SortedTileIDs returns the tile ids in lexical order.
func (c ColonyRecord) SortedTileIDs() []hex.TileID {
	out := make([]hex.TileID, 0, len(c.TileIDs))
	for id := range c.TileIDs {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c ColonyRecord) Clone() ColonyRecord {
	out := c
	out.TileIDs = make(map[hex.TileID]struct{}, len(c.TileIDs))
	for id := range c.TileIDs {
		out.TileIDs[id] = struct{}{}
	}
	return out
}
