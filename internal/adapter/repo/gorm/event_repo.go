package gormrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"hexcolony/internal/adapter/repo/gorm/model"
	"hexcolony/internal/domain/territory"

	"gorm.io/gorm"
)

type EventRepo struct {
	db *gorm.DB
}

func NewEventRepo(db *gorm.DB) EventRepo {
	return EventRepo{db: db}
}

func (r EventRepo) Append(ctx context.Context, events []territory.CaptureEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]model.CaptureEvent, 0, len(events))
	for _, e := range events {
		b, err := json.Marshal(e.Tile)
		if err != nil {
			return fmt.Errorf("encode event tile: %w", err)
		}
		rows = append(rows, model.CaptureEvent{
			Kind:        string(e.Kind),
			Ts:          e.Timestamp,
			TileID:      string(e.Tile.ID),
			Tile:        b,
			ColonyID:    e.ColonyID,
			UserID:      e.UserID,
			Scope:       string(e.Scope),
			RecipientID: e.RecipientID,
		})
	}
	return getDBFromCtx(ctx, r.db).Create(&rows).Error
}

func (r EventRepo) ListSince(ctx context.Context, viewerUID string, since int64, limit int) ([]territory.CaptureEvent, error) {
	rows := []model.CaptureEvent{}
	query := getDBFromCtx(ctx, r.db).
		Where("ts > ?", since).
		Where("scope = ? OR (scope = ? AND recipient_id = ?)", string(territory.ScopeBroadcast), string(territory.ScopeDirect), viewerUID).
		Order("ts ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]territory.CaptureEvent, 0, len(rows))
	for _, row := range rows {
		var tile territory.TileRecord
		if err := json.Unmarshal(row.Tile, &tile); err != nil {
			return nil, fmt.Errorf("decode event %d tile: %w", row.ID, err)
		}
		out = append(out, territory.CaptureEvent{
			Kind:        territory.EventKind(row.Kind),
			Timestamp:   row.Ts,
			Tile:        tile,
			ColonyID:    row.ColonyID,
			UserID:      row.UserID,
			Scope:       territory.Scope(row.Scope),
			RecipientID: row.RecipientID,
		})
	}
	return out, nil
}
