package capture

import (
	"context"
	"errors"

	"hexcolony/internal/app/ports"
	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/terrain"
	"hexcolony/internal/domain/territory"
)

// stubStore implements the tile, colony and event repositories over maps and
// restores its previous contents when a transaction returns an error.
type stubStore struct {
	tiles    map[hex.TileID]territory.TileRecord
	colonies map[string]territory.ColonyRecord
	events   []territory.CaptureEvent

	// colonyConflicts forces that many SaveWithVersion calls to lose.
	colonyConflicts int
	writes          int
}

func newStubStore() *stubStore {
	return &stubStore{
		tiles:    map[hex.TileID]territory.TileRecord{},
		colonies: map[string]territory.ColonyRecord{},
	}
}

func (s *stubStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tiles := make(map[hex.TileID]territory.TileRecord, len(s.tiles))
	for k, v := range s.tiles {
		tiles[k] = v.Clone()
	}
	colonies := make(map[string]territory.ColonyRecord, len(s.colonies))
	for k, v := range s.colonies {
		colonies[k] = v.Clone()
	}
	events := append([]territory.CaptureEvent(nil), s.events...)
	if err := fn(ctx); err != nil {
		s.tiles, s.colonies, s.events = tiles, colonies, events
		return err
	}
	return nil
}

func (s *stubStore) Get(_ context.Context, id hex.TileID) (territory.TileRecord, error) {
	t, ok := s.tiles[id]
	if !ok {
		return territory.TileRecord{}, ports.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *stubStore) GetMany(ctx context.Context, ids []hex.TileID) ([]territory.TileRecord, error) {
	var out []territory.TileRecord
	for _, id := range ids {
		if t, err := s.Get(ctx, id); err == nil {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *stubStore) Create(_ context.Context, tile territory.TileRecord) error {
	if _, ok := s.tiles[tile.ID]; ok {
		return ports.ErrConflict
	}
	s.writes++
	s.tiles[tile.ID] = tile.Clone()
	return nil
}

func (s *stubStore) UpdateWithVersion(_ context.Context, tile territory.TileRecord, expectedVersion int64) error {
	cur, ok := s.tiles[tile.ID]
	if !ok || cur.Version != expectedVersion {
		return ports.ErrConflict
	}
	s.writes++
	s.tiles[tile.ID] = tile.Clone()
	return nil
}

type stubColonies struct{ *stubStore }

func (c stubColonies) GetByID(_ context.Context, id string) (territory.ColonyRecord, error) {
	for _, col := range c.colonies {
		if col.ID == id {
			return col.Clone(), nil
		}
	}
	return territory.ColonyRecord{}, ports.ErrNotFound
}

func (c stubColonies) GetByOwnerUID(_ context.Context, uid string) (territory.ColonyRecord, error) {
	col, ok := c.colonies[uid]
	if !ok {
		return territory.ColonyRecord{}, ports.ErrNotFound
	}
	return col.Clone(), nil
}

func (c stubColonies) Create(_ context.Context, col territory.ColonyRecord) error {
	if _, ok := c.colonies[col.OwnerUID]; ok {
		return ports.ErrConflict
	}
	c.colonies[col.OwnerUID] = col.Clone()
	return nil
}

func (c stubColonies) SaveWithVersion(_ context.Context, col territory.ColonyRecord, expectedVersion int64) error {
	if c.colonyConflicts > 0 {
		c.colonyConflicts--
		return ports.ErrConflict
	}
	cur, ok := c.colonies[col.OwnerUID]
	if !ok || cur.Version != expectedVersion {
		return ports.ErrConflict
	}
	c.writes++
	c.colonies[col.OwnerUID] = col.Clone()
	return nil
}

type stubEvents struct{ *stubStore }

func (e stubEvents) Append(_ context.Context, events []territory.CaptureEvent) error {
	e.events = append(e.events, events...)
	return nil
}

func (e stubEvents) ListSince(_ context.Context, viewer string, since int64, limit int) ([]territory.CaptureEvent, error) {
	var out []territory.CaptureEvent
	for _, evt := range e.events {
		if evt.Timestamp > since && evt.VisibleTo(viewer) {
			out = append(out, evt)
		}
	}
	return out, nil
}

type stubTerrain struct{}

func (stubTerrain) Sample(hex.Coordinate) terrain.Sample {
	return terrain.Sample{Type: terrain.StarRich, Density: 0.9, Resources: map[string]float64{"stardust": 0.9}}
}

func (stubTerrain) StartSample(hex.Coordinate) terrain.Sample {
	return terrain.Sample{Type: terrain.Normal, Density: 0.5}
}

type stubPublisher struct {
	published []territory.CaptureEvent
	err       error
}

func (p *stubPublisher) Publish(_ context.Context, events []territory.CaptureEvent) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, events...)
	return nil
}

type stubMetrics struct {
	success, captured, conflict, failure, publishFailure int
}

func (m *stubMetrics) RecordSuccess(captured bool) {
	m.success++
	if captured {
		m.captured++
	}
}
func (m *stubMetrics) RecordConflict()       { m.conflict++ }
func (m *stubMetrics) RecordFailure()        { m.failure++ }
func (m *stubMetrics) RecordPublishFailure() { m.publishFailure++ }

var errPublishDown = errors.New("publisher down")

// seedColony stores a colony owning the given coordinates, with matching
// tile records.
func (s *stubStore) seedColony(uid, name string, coords ...hex.Coordinate) territory.ColonyRecord {
	col := territory.ColonyRecord{ID: uid, OwnerUID: uid, Name: name, Color: "#" + name, Version: 1}
	for _, c := range coords {
		col.AddTile(hex.Encode(c))
		tile := territory.NewTile(c, terrain.Sample{Type: terrain.Normal, Density: 0.5}, fixedNow())
		tile.ControllerUID = uid
		tile.Color = col.Color
		tile.Version = 1
		s.tiles[tile.ID] = tile
	}
	s.colonies[uid] = col
	return col
}

func newUseCase(s *stubStore) (UseCase, *stubPublisher, *stubMetrics) {
	pub := &stubPublisher{}
	m := &stubMetrics{}
	return UseCase{
		TxManager:        s,
		Tiles:            s,
		Colonies:         stubColonies{s},
		Events:           stubEvents{s},
		Publisher:        pub,
		Terrain:          stubTerrain{},
		Metrics:          m,
		EnforceAdjacency: true,
		Now:              fixedNow,
	}, pub, m
}
