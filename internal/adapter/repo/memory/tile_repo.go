package memory

import (
	"context"

	"hexcolony/internal/app/ports"
	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/territory"
)

type TileRepo struct {
	store *Store
}

func NewTileRepo(store *Store) TileRepo {
	return TileRepo{store: store}
}

func (r TileRepo) Get(ctx context.Context, id hex.TileID) (territory.TileRecord, error) {
	var (
		tile territory.TileRecord
		ok   bool
	)
	r.store.read(ctx, func() {
		tile, ok = r.store.tiles[id]
	})
	if !ok {
		return territory.TileRecord{}, ports.ErrNotFound
	}
	return tile.Clone(), nil
}

func (r TileRepo) GetMany(ctx context.Context, ids []hex.TileID) ([]territory.TileRecord, error) {
	out := make([]territory.TileRecord, 0, len(ids))
	r.store.read(ctx, func() {
		for _, id := range ids {
			if tile, ok := r.store.tiles[id]; ok {
				out = append(out, tile.Clone())
			}
		}
	})
	return out, nil
}

func (r TileRepo) Create(ctx context.Context, tile territory.TileRecord) error {
	return r.store.write(ctx, func(tx *txState) error {
		if _, exists := r.store.tiles[tile.ID]; exists {
			return ports.ErrConflict
		}
		r.store.tiles[tile.ID] = tile.Clone()
		tx.onRollback(func() { delete(r.store.tiles, tile.ID) })
		return nil
	})
}

func (r TileRepo) UpdateWithVersion(ctx context.Context, tile territory.TileRecord, expectedVersion int64) error {
	return r.store.write(ctx, func(tx *txState) error {
		current, ok := r.store.tiles[tile.ID]
		if !ok || current.Version != expectedVersion {
			return ports.ErrConflict
		}
		r.store.tiles[tile.ID] = tile.Clone()
		tx.onRollback(func() { r.store.tiles[tile.ID] = current })
		return nil
	})
}
