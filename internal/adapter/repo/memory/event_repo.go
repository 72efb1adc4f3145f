package memory

import (
	"context"
	"sort"

	"hexcolony/internal/domain/territory"
)

type EventRepo struct {
	store *Store
}

func NewEventRepo(store *Store) EventRepo {
	return EventRepo{store: store}
}

func (r EventRepo) Append(ctx context.Context, events []territory.CaptureEvent) error {
	return r.store.write(ctx, func(tx *txState) error {
		n := len(r.store.events)
		for _, e := range events {
			e.Tile = e.Tile.Clone()
			r.store.events = append(r.store.events, e)
		}
		tx.onRollback(func() { r.store.events = r.store.events[:n] })
		return nil
	})
}

func (r EventRepo) ListSince(ctx context.Context, viewerUID string, since int64, limit int) ([]territory.CaptureEvent, error) {
	var out []territory.CaptureEvent
	r.store.read(ctx, func() {
		for _, e := range r.store.events {
			if e.Timestamp > since && e.VisibleTo(viewerUID) {
				e.Tile = e.Tile.Clone()
				out = append(out, e)
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
