package capture

import (
	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/territory"
)

type Request struct {
	RequesterUID string
	Target       hex.Coordinate
}

type Result struct {
	Tile             territory.TileRecord     `json:"tile"`
	Captured         bool                     `json:"captured"`
	PreviousOwnerUID string                   `json:"previousOwner,omitempty"`
	PreviousColonyID string                   `json:"previousColony,omitempty"`
	Message          string                   `json:"message"`
	Events           []territory.CaptureEvent `json:"-"`
}
