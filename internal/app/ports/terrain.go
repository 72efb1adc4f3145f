package ports

import (
	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/terrain"
)

// TerrainSource generates terrain for tiles materialised on first capture.
type TerrainSource interface {
	Sample(c hex.Coordinate) terrain.Sample
	StartSample(c hex.Coordinate) terrain.Sample
}
