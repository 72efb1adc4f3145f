package gormrepo

import (
	"context"
	"encoding/json"
	"errors"

	"hexcolony/internal/adapter/repo/gorm/model"
	"hexcolony/internal/app/ports"
	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/terrain"
	"hexcolony/internal/domain/territory"

	"gorm.io/gorm"
)

type TileRepo struct {
	db *gorm.DB
}

func NewTileRepo(db *gorm.DB) TileRepo {
	return TileRepo{db: db}
}

func (r TileRepo) Get(ctx context.Context, id hex.TileID) (territory.TileRecord, error) {
	var row model.Tile
	if err := getDBFromCtx(ctx, r.db).Where("id = ?", string(id)).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return territory.TileRecord{}, ports.ErrNotFound
		}
		return territory.TileRecord{}, err
	}
	return tileFromRow(row), nil
}

func (r TileRepo) GetMany(ctx context.Context, ids []hex.TileID) ([]territory.TileRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, string(id))
	}
	var rows []model.Tile
	if err := getDBFromCtx(ctx, r.db).Where("id IN ?", keys).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]territory.TileRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, tileFromRow(row))
	}
	return out, nil
}

func (r TileRepo) Create(ctx context.Context, tile territory.TileRecord) error {
	row := tileToRow(tile)
	if err := getDBFromCtx(ctx, r.db).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return ports.ErrConflict
		}
		return err
	}
	return nil
}

func (r TileRepo) UpdateWithVersion(ctx context.Context, tile territory.TileRecord, expectedVersion int64) error {
	row := tileToRow(tile)
	updates := map[string]any{
		"type":             row.Type,
		"controller_uid":   row.ControllerUID,
		"visibility":       row.Visibility,
		"resource_density": row.ResourceDensity,
		"resources":        row.Resources,
		"color":            row.Color,
		"version":          row.Version,
		"updated_at":       row.UpdatedAt,
	}
	res := getDBFromCtx(ctx, r.db).
		Model(&model.Tile{}).
		Where("id = ? AND version = ?", row.ID, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ports.ErrConflict
	}
	return nil
}

func tileToRow(t territory.TileRecord) model.Tile {
	resources := []byte("{}")
	if len(t.Resources) > 0 {
		resources, _ = json.Marshal(t.Resources)
	}
	return model.Tile{
		ID:              string(t.ID),
		Q:               int32(t.Q),
		R:               int32(t.R),
		S:               int32(t.S),
		Type:            string(t.Type),
		ControllerUID:   t.ControllerUID,
		Visibility:      string(t.Visibility),
		ResourceDensity: t.ResourceDensity,
		Resources:       resources,
		Color:           t.Color,
		Version:         t.Version,
		UpdatedAt:       t.UpdatedAt,
	}
}

func tileFromRow(row model.Tile) territory.TileRecord {
	var resources map[string]float64
	if len(row.Resources) > 0 {
		_ = json.Unmarshal(row.Resources, &resources)
	}
	if len(resources) == 0 {
		resources = nil
	}
	return territory.TileRecord{
		ID:              hex.TileID(row.ID),
		Q:               int(row.Q),
		R:               int(row.R),
		S:               int(row.S),
		Type:            terrain.TileType(row.Type),
		ControllerUID:   row.ControllerUID,
		Visibility:      territory.Visibility(row.Visibility),
		ResourceDensity: row.ResourceDensity,
		Resources:       resources,
		Color:           row.Color,
		Version:         row.Version,
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
}
