package colony

import (
	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/territory"
)

type FoundRequest struct {
	OwnerUID string
	Name     string
	Color    string
	Start    hex.Coordinate
}

type FoundResponse struct {
	Colony territory.ColonyRecord `json:"colony"`
	Tile   territory.TileRecord   `json:"tile"`
}

type StatusRequest struct {
	OwnerUID string
}

type StatusResponse struct {
	Colony  territory.ColonyRecord `json:"colony"`
	TileIDs []hex.TileID           `json:"tileIds"`
}

// Card is the public face of a colony, enough for clients to render
// another player's tiles.
type Card struct {
	ID             string `json:"id"`
	OwnerUID       string `json:"ownerUid"`
	Name           string `json:"name"`
	Color          string `json:"color"`
	TerritoryScore int    `json:"territoryScore"`
}

type ViewRequest struct {
	OwnerUID string
	// Distance overrides the colony's visibility radius when set.
	Distance *int
}

type ViewResponse struct {
	Distance int                    `json:"distance"`
	Owned    []hex.TileID           `json:"owned"`
	Frontier []territory.TileRecord `json:"frontier"`
}
