package gormrepo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"hexcolony/internal/app/ports"
	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/terrain"
	"hexcolony/internal/domain/territory"

	"gorm.io/gorm"
)

const itNamespace = "it"

func openIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("HEXCOLONY_DB_DSN")
	if dsn == "" {
		t.Skip("HEXCOLONY_DB_DSN is required for integration test")
	}
	db, err := OpenPostgres(dsn, itNamespace)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if err := ApplyMigrations(context.Background(), db, Migrations(), itNamespace); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	for _, table := range []string{"it_colony_tiles", "it_capture_events", "it_colonies", "it_tiles", "it_player_credentials"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("cleanup %s: %v", table, err)
		}
	}
	return db
}

func TestTablePrefix(t *testing.T) {
	cases := map[string]string{"": "", "v2": "v2_", "prod_a": "prod_a_"}
	for ns, want := range cases {
		got, err := TablePrefix(ns)
		if err != nil || got != want {
			t.Fatalf("TablePrefix(%q) = %q, %v; want %q", ns, got, err, want)
		}
	}
	for _, bad := range []string{"V2", "2v", "a-b", "a;drop"} {
		if _, err := TablePrefix(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestMigrations_AreEmbedded(t *testing.T) {
	entries, err := os.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected at least one migration")
	}
}

func TestTileRepo_CreateUpdateWithVersion(t *testing.T) {
	db := openIntegrationDB(t)
	ctx := context.Background()
	repo := NewTileRepo(db)

	tile := territory.NewTile(hex.Axial(3, -1), terrain.Sample{
		Type:      terrain.StarRich,
		Density:   0.8,
		Resources: map[string]float64{"stardust": 0.8},
	}, time.Unix(1700000000, 0).UTC())
	tile.ControllerUID = "alice"
	tile.Version = 1
	if err := repo.Create(ctx, tile); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, tile); !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("duplicate create should conflict, got %v", err)
	}

	tile.ControllerUID = "bob"
	tile.Version = 2
	if err := repo.UpdateWithVersion(ctx, tile, 7); !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("stale update should conflict, got %v", err)
	}
	if err := repo.UpdateWithVersion(ctx, tile, 1); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.Get(ctx, tile.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ControllerUID != "bob" || got.Version != 2 || got.Resources["stardust"] != 0.8 {
		t.Fatalf("unexpected tile: %+v", got)
	}

	many, err := repo.GetMany(ctx, []hex.TileID{tile.ID, "9#9#-18"})
	if err != nil || len(many) != 1 {
		t.Fatalf("expected one tile, got %d (%v)", len(many), err)
	}
}

func TestColonyRepo_MembershipFollowsSaves(t *testing.T) {
	db := openIntegrationDB(t)
	ctx := context.Background()
	tiles, colonies := NewTileRepo(db), NewColonyRepo(db)
	now := time.Unix(1700000000, 0).UTC()

	for _, c := range []hex.Coordinate{hex.Axial(0, 0), hex.Axial(1, 0), hex.Axial(2, 0)} {
		tile := territory.NewTile(c, terrain.Sample{Type: terrain.Normal}, now)
		tile.Version = 1
		if err := tiles.Create(ctx, tile); err != nil {
			t.Fatalf("seed tile: %v", err)
		}
	}

	col := territory.ColonyRecord{ID: "alice", OwnerUID: "alice", Name: "A", Color: "#f00", Version: 1, CreatedAt: now, UpdatedAt: now}
	col.AddTile(hex.Encode(hex.Axial(0, 0)))
	col.AddTile(hex.Encode(hex.Axial(1, 0)))
	if err := colonies.Create(ctx, col); err != nil {
		t.Fatalf("create colony: %v", err)
	}
	dup := territory.ColonyRecord{ID: "alice-2", OwnerUID: "alice", Version: 1, CreatedAt: now, UpdatedAt: now}
	if err := colonies.Create(ctx, dup); !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("second colony for owner should conflict, got %v", err)
	}

	next := col.Clone()
	next.RemoveTile(hex.Encode(hex.Axial(0, 0)))
	next.AddTile(hex.Encode(hex.Axial(2, 0)))
	next.Version = 2
	if err := colonies.SaveWithVersion(ctx, next, 1); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := colonies.SaveWithVersion(ctx, next, 1); !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("stale save should conflict, got %v", err)
	}

	got, err := colonies.GetByOwnerUID(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TerritoryScore != 2 || got.Owns(hex.Encode(hex.Axial(0, 0))) || !got.Owns(hex.Encode(hex.Axial(2, 0))) {
		t.Fatalf("unexpected membership: %+v", got.SortedTileIDs())
	}
}

func TestEventRepo_ListSinceFiltersDirectEvents(t *testing.T) {
	db := openIntegrationDB(t)
	ctx := context.Background()
	repo := NewEventRepo(db)
	tile := territory.Placeholder(hex.Axial(1, -1))

	if err := repo.Append(ctx, []territory.CaptureEvent{
		territory.UpdatedEvent(tile, "bob", "bob", time.UnixMilli(100)),
		territory.LostEvent(tile, "alice", "bob", "alice", time.UnixMilli(100)),
		territory.UpdatedEvent(tile, "bob", "bob", time.UnixMilli(200)),
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	forAlice, err := repo.ListSince(ctx, "alice", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(forAlice) != 3 || forAlice[1].Kind != territory.EventTileLost {
		t.Fatalf("unexpected events for alice: %+v", forAlice)
	}
	forCarol, _ := repo.ListSince(ctx, "carol", 100, 0)
	if len(forCarol) != 1 || forCarol[0].Timestamp != 200 {
		t.Fatalf("unexpected events for carol: %+v", forCarol)
	}
}

func TestTxManager_RollsBackAllWrites(t *testing.T) {
	db := openIntegrationDB(t)
	ctx := context.Background()
	tiles := NewTileRepo(db)
	boom := errors.New("boom")

	err := NewTxManager(db).RunInTx(ctx, func(txCtx context.Context) error {
		tile := territory.Placeholder(hex.Axial(5, -5))
		tile.Version = 1
		if err := tiles.Create(txCtx, tile); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := tiles.Get(ctx, hex.Encode(hex.Axial(5, -5))); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected rollback, got %v", err)
	}
}
