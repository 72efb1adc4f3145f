package tiles

import (
	"context"
	"errors"
	"fmt"

	"hexcolony/internal/app/ports"
	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/territory"
)

const MaxBatchSize = 500

var (
	ErrEmptyBatch    = fmt.Errorf("%w: tileIds must not be empty", ports.ErrInvalidArgument)
	ErrBatchTooLarge = fmt.Errorf("%w: at most %d tileIds per batch", ports.ErrInvalidArgument, MaxBatchSize)
)

type Request struct {
	TileIDs []hex.TileID
}

type Response struct {
	Tiles []territory.TileRecord `json:"tiles"`
	Count int                    `json:"count"`
}

// UseCase fetches stored tiles by id. Ids with no stored record are left
// out; callers fill them with unexplored placeholders.
type UseCase struct {
	Tiles ports.TileRepository
}

func (u UseCase) BatchGet(ctx context.Context, req Request) (Response, error) {
	if len(req.TileIDs) == 0 {
		return Response{}, ErrEmptyBatch
	}
	if len(req.TileIDs) > MaxBatchSize {
		return Response{}, ErrBatchTooLarge
	}
	seen := make(map[hex.TileID]struct{}, len(req.TileIDs))
	ids := make([]hex.TileID, 0, len(req.TileIDs))
	for _, id := range req.TileIDs {
		if _, err := hex.Decode(id); err != nil {
			return Response{}, errors.Join(ports.ErrInvalidArgument, err)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	found, err := u.Tiles.GetMany(ctx, ids)
	if err != nil {
		return Response{}, err
	}
	if found == nil {
		found = []territory.TileRecord{}
	}
	return Response{Tiles: found, Count: len(found)}, nil
}
