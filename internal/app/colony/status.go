package colony

import (
	"context"
	"errors"
	"strings"

	"hexcolony/internal/app/ports"
)

type StatusUseCase struct {
	Colonies ports.ColonyRepository
}

func (u StatusUseCase) Execute(ctx context.Context, req StatusRequest) (StatusResponse, error) {
	req.OwnerUID = strings.TrimSpace(req.OwnerUID)
	if req.OwnerUID == "" {
		return StatusResponse{}, ErrMissingOwner
	}
	col, err := u.Colonies.GetByOwnerUID(ctx, req.OwnerUID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return StatusResponse{}, ErrColonyNotFound
		}
		return StatusResponse{}, err
	}
	return StatusResponse{Colony: col, TileIDs: col.SortedTileIDs()}, nil
}

// CardUseCase resolves a colony's public card by its owner uid.
type CardUseCase struct {
	Colonies ports.ColonyRepository
}

func (u CardUseCase) Execute(ctx context.Context, ownerUID string) (Card, error) {
	ownerUID = strings.TrimSpace(ownerUID)
	if ownerUID == "" {
		return Card{}, ErrColonyNotFound
	}
	col, err := u.Colonies.GetByOwnerUID(ctx, ownerUID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return Card{}, ErrColonyNotFound
		}
		return Card{}, err
	}
	return Card{
		ID:             col.ID,
		OwnerUID:       col.OwnerUID,
		Name:           col.Name,
		Color:          col.Color,
		TerritoryScore: col.TerritoryScore,
	}, nil
}
