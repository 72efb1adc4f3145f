package memory

import (
	"context"

	"hexcolony/internal/app/ports"
	"hexcolony/internal/domain/territory"
)

type ColonyRepo struct {
	store *Store
}

func NewColonyRepo(store *Store) ColonyRepo {
	return ColonyRepo{store: store}
}

func (r ColonyRepo) GetByID(ctx context.Context, colonyID string) (territory.ColonyRecord, error) {
	var (
		colony territory.ColonyRecord
		ok     bool
	)
	r.store.read(ctx, func() {
		colony, ok = r.store.colonies[colonyID]
		if ok {
			colony = colony.Clone()
		}
	})
	if !ok {
		return territory.ColonyRecord{}, ports.ErrNotFound
	}
	return colony, nil
}

func (r ColonyRepo) GetByOwnerUID(ctx context.Context, ownerUID string) (territory.ColonyRecord, error) {
	var (
		colony territory.ColonyRecord
		ok     bool
	)
	r.store.read(ctx, func() {
		var id string
		if id, ok = r.store.ownerIndex[ownerUID]; ok {
			colony = r.store.colonies[id].Clone()
		}
	})
	if !ok {
		return territory.ColonyRecord{}, ports.ErrNotFound
	}
	return colony, nil
}

func (r ColonyRepo) Create(ctx context.Context, colony territory.ColonyRecord) error {
	return r.store.write(ctx, func(tx *txState) error {
		if _, exists := r.store.colonies[colony.ID]; exists {
			return ports.ErrConflict
		}
		if _, exists := r.store.ownerIndex[colony.OwnerUID]; exists {
			return ports.ErrConflict
		}
		r.store.colonies[colony.ID] = colony.Clone()
		r.store.ownerIndex[colony.OwnerUID] = colony.ID
		tx.onRollback(func() {
			delete(r.store.colonies, colony.ID)
			delete(r.store.ownerIndex, colony.OwnerUID)
		})
		return nil
	})
}

func (r ColonyRepo) SaveWithVersion(ctx context.Context, colony territory.ColonyRecord, expectedVersion int64) error {
	return r.store.write(ctx, func(tx *txState) error {
		current, ok := r.store.colonies[colony.ID]
		if !ok || current.Version != expectedVersion || current.OwnerUID != colony.OwnerUID {
			return ports.ErrConflict
		}
		r.store.colonies[colony.ID] = colony.Clone()
		tx.onRollback(func() { r.store.colonies[colony.ID] = current })
		return nil
	})
}
