package colony

import (
	"context"
	"errors"
	"strings"

	"hexcolony/internal/app/ports"
	"hexcolony/internal/domain/frontier"
	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/territory"
)

const (
	MaxViewDistance = 8
	hydrateBatch    = 500
)

// ViewUseCase computes a colony's frontier on the server and hydrates it
// from the store, filling gaps with unexplored placeholders.
type ViewUseCase struct {
	Colonies ports.ColonyRepository
	Tiles    ports.TileRepository
}

func (u ViewUseCase) Execute(ctx context.Context, req ViewRequest) (ViewResponse, error) {
	req.OwnerUID = strings.TrimSpace(req.OwnerUID)
	if req.OwnerUID == "" {
		return ViewResponse{}, ErrMissingOwner
	}
	if req.Distance != nil && (*req.Distance < 0 || *req.Distance > MaxViewDistance) {
		return ViewResponse{}, ErrInvalidView
	}
	col, err := u.Colonies.GetByOwnerUID(ctx, req.OwnerUID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return ViewResponse{}, ErrColonyNotFound
		}
		return ViewResponse{}, err
	}

	distance := min(col.VisibilityRadius, MaxViewDistance)
	if req.Distance != nil {
		distance = *req.Distance
	}

	ownedIDs := col.SortedTileIDs()
	owned := make([]hex.Coordinate, 0, len(ownedIDs))
	for _, id := range ownedIDs {
		c, err := hex.Decode(id)
		if err != nil {
			return ViewResponse{}, err
		}
		owned = append(owned, c)
	}

	set := frontier.Compute(owned, distance)
	ids := set.SortedIDs()
	stored := make(map[hex.TileID]territory.TileRecord, len(ids))
	for start := 0; start < len(ids); start += hydrateBatch {
		end := min(start+hydrateBatch, len(ids))
		found, err := u.Tiles.GetMany(ctx, ids[start:end])
		if err != nil {
			return ViewResponse{}, err
		}
		for _, t := range found {
			stored[t.ID] = t
		}
	}

	tiles := make([]territory.TileRecord, 0, len(ids))
	for _, id := range ids {
		if t, ok := stored[id]; ok {
			tiles = append(tiles, t)
			continue
		}
		tiles = append(tiles, territory.Placeholder(set[id]))
	}
	return ViewResponse{Distance: distance, Owned: ownedIDs, Frontier: tiles}, nil
}
