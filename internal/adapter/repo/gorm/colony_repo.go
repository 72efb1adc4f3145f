package gormrepo

import (
	"context"
	"errors"

	"hexcolony/internal/adapter/repo/gorm/model"
	"hexcolony/internal/app/ports"
	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/territory"

	"gorm.io/gorm"
)

// ColonyRepo keeps the colony row and its tile membership rows in step.
// Membership lives in colony_tiles so "which colony holds tile X" is an
// indexed lookup.
type ColonyRepo struct {
	db *gorm.DB
}

func NewColonyRepo(db *gorm.DB) ColonyRepo {
	return ColonyRepo{db: db}
}

func (r ColonyRepo) GetByID(ctx context.Context, colonyID string) (territory.ColonyRecord, error) {
	return r.load(ctx, "id = ?", colonyID)
}

func (r ColonyRepo) GetByOwnerUID(ctx context.Context, ownerUID string) (territory.ColonyRecord, error) {
	return r.load(ctx, "owner_uid = ?", ownerUID)
}

func (r ColonyRepo) load(ctx context.Context, where string, arg string) (territory.ColonyRecord, error) {
	db := getDBFromCtx(ctx, r.db)
	var row model.Colony
	if err := db.Where(where, arg).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return territory.ColonyRecord{}, ports.ErrNotFound
		}
		return territory.ColonyRecord{}, err
	}
	var tileIDs []string
	if err := db.Model(&model.ColonyTile{}).Where("colony_id = ?", row.ID).Pluck("tile_id", &tileIDs).Error; err != nil {
		return territory.ColonyRecord{}, err
	}
	return colonyFromRow(row, tileIDs), nil
}

func (r ColonyRepo) Create(ctx context.Context, colony territory.ColonyRecord) error {
	row := colonyToRow(colony)
	db := getDBFromCtx(ctx, r.db)
	if err := db.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return ports.ErrConflict
		}
		return err
	}
	return r.insertMembers(db, colony.ID, colony.SortedTileIDs())
}

func (r ColonyRepo) SaveWithVersion(ctx context.Context, colony territory.ColonyRecord, expectedVersion int64) error {
	db := getDBFromCtx(ctx, r.db)
	row := colonyToRow(colony)
	res := db.Model(&model.Colony{}).
		Where("id = ? AND owner_uid = ? AND version = ?", row.ID, row.OwnerUID, expectedVersion).
		Updates(map[string]any{
			"name":              row.Name,
			"color":             row.Color,
			"territory_score":   row.TerritoryScore,
			"visibility_radius": row.VisibilityRadius,
			"version":           row.Version,
			"updated_at":        row.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ports.ErrConflict
	}

	var stored []string
	if err := db.Model(&model.ColonyTile{}).Where("colony_id = ?", colony.ID).Pluck("tile_id", &stored).Error; err != nil {
		return err
	}
	storedSet := make(map[hex.TileID]struct{}, len(stored))
	var removed []string
	for _, id := range stored {
		storedSet[hex.TileID(id)] = struct{}{}
		if !colony.Owns(hex.TileID(id)) {
			removed = append(removed, id)
		}
	}
	var added []hex.TileID
	for _, id := range colony.SortedTileIDs() {
		if _, ok := storedSet[id]; !ok {
			added = append(added, id)
		}
	}
	if len(removed) > 0 {
		if err := db.Where("colony_id = ? AND tile_id IN ?", colony.ID, removed).Delete(&model.ColonyTile{}).Error; err != nil {
			return err
		}
	}
	return r.insertMembers(db, colony.ID, added)
}

func (r ColonyRepo) insertMembers(db *gorm.DB, colonyID string, ids []hex.TileID) error {
	if len(ids) == 0 {
		return nil
	}
	rows := make([]model.ColonyTile, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, model.ColonyTile{ColonyID: colonyID, TileID: string(id)})
	}
	if err := db.CreateInBatches(&rows, 500).Error; err != nil {
		if isUniqueViolation(err) {
			return ports.ErrConflict
		}
		return err
	}
	return nil
}

func colonyToRow(c territory.ColonyRecord) model.Colony {
	return model.Colony{
		ID:               c.ID,
		OwnerUID:         c.OwnerUID,
		Name:             c.Name,
		Color:            c.Color,
		StartQ:           int32(c.StartCoordinate.Q),
		StartR:           int32(c.StartCoordinate.R),
		StartS:           int32(c.StartCoordinate.S),
		TerritoryScore:   int32(len(c.TileIDs)),
		VisibilityRadius: int32(c.VisibilityRadius),
		Version:          c.Version,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func colonyFromRow(row model.Colony, tileIDs []string) territory.ColonyRecord {
	c := territory.ColonyRecord{
		ID:               row.ID,
		OwnerUID:         row.OwnerUID,
		Name:             row.Name,
		Color:            row.Color,
		StartCoordinate:  hex.Coordinate{Q: int(row.StartQ), R: int(row.StartR), S: int(row.StartS)},
		TileIDs:          make(map[hex.TileID]struct{}, len(tileIDs)),
		VisibilityRadius: int(row.VisibilityRadius),
		Version:          row.Version,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}
	for _, id := range tileIDs {
		c.TileIDs[hex.TileID(id)] = struct{}{}
	}
	c.TerritoryScore = len(c.TileIDs)
	return c
}
