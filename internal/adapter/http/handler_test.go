package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"hexcolony/internal/adapter/repo/memory"
	"hexcolony/internal/app/auth"
	"hexcolony/internal/app/capture"
	"hexcolony/internal/app/colony"
	"hexcolony/internal/app/events"
	"hexcolony/internal/app/ports"
	"hexcolony/internal/app/tiles"
	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/terrain"
	"hexcolony/internal/protocol"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/route/param"
)

func newTestHandler() Handler {
	store := memory.NewStore()
	tx := memory.NewTxManager(store)
	tileRepo := memory.NewTileRepo(store)
	colonyRepo := memory.NewColonyRepo(store)
	eventRepo := memory.NewEventRepo(store)
	creds := memory.NewPlayerCredentialRepo(store)
	gen := terrain.NewGenerator(7, terrain.DefaultConfig())
	now := func() time.Time { return time.Unix(1700000000, 0) }

	return Handler{
		RegisterUC: auth.RegisterUseCase{Credentials: creds, TxManager: tx, Now: now},
		AuthUC:     auth.VerifyUseCase{Credentials: creds},
		FoundUC: colony.FoundUseCase{
			TxManager: tx,
			Tiles:     tileRepo,
			Colonies:  colonyRepo,
			Events:    eventRepo,
			Terrain:   gen,
			Now:       now,
		},
		StatusUC: colony.StatusUseCase{Colonies: colonyRepo},
		CardUC:   colony.CardUseCase{Colonies: colonyRepo},
		ViewUC:   colony.ViewUseCase{Colonies: colonyRepo, Tiles: tileRepo},
		CaptureUC: capture.UseCase{
			TxManager:        tx,
			Tiles:            tileRepo,
			Colonies:         colonyRepo,
			Events:           eventRepo,
			Terrain:          gen,
			EnforceAdjacency: true,
			Now:              now,
		},
		TilesUC:  tiles.UseCase{Tiles: tileRepo},
		EventsUC: events.UseCase{Events: eventRepo},
	}
}

type player struct {
	id  string
	key string
}

func registerPlayer(t *testing.T, h Handler) player {
	t.Helper()
	ctx := &app.RequestContext{}
	h.register(context.Background(), ctx)
	if got, want := ctx.Response.StatusCode(), consts.StatusCreated; got != want {
		t.Fatalf("register status mismatch: got=%d want=%d", got, want)
	}
	var body protocol.RegisterResponse
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("unmarshal register: %v", err)
	}
	if body.PlayerID == "" || body.PlayerKey == "" {
		t.Fatalf("register returned empty credentials: %+v", body)
	}
	return player{id: body.PlayerID, key: body.PlayerKey}
}

func authedCtx(p player, body string) *app.RequestContext {
	ctx := &app.RequestContext{}
	ctx.Request.Header.Set(protocol.HeaderPlayerID, p.id)
	ctx.Request.Header.Set(protocol.HeaderPlayerKey, p.key)
	if body != "" {
		ctx.Request.SetBody([]byte(body))
	}
	return ctx
}

func foundColony(t *testing.T, h Handler, p player, q, r int) {
	t.Helper()
	ctx := authedCtx(p, fmt.Sprintf(`{"name":"Vega","color":"#3366ff","start":{"q":%d,"r":%d,"s":%d}}`, q, r, -q-r))
	h.foundColony(context.Background(), ctx)
	if got, want := ctx.Response.StatusCode(), consts.StatusCreated; got != want {
		t.Fatalf("found status mismatch: got=%d want=%d body=%s", got, want, ctx.Response.Body())
	}
}

func errorCode(t *testing.T, ctx *app.RequestContext) string {
	t.Helper()
	var body protocol.ErrorResponse
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if body.Success {
		t.Fatalf("error body must carry success=false")
	}
	return body.Error.Code
}

func TestRequireAuthenticatedPlayer_FromHeaders(t *testing.T) {
	h := newTestHandler()
	p := registerPlayer(t, h)

	got, err := h.requireAuthenticatedPlayer(context.Background(), authedCtx(p, ""))
	if err != nil {
		t.Fatalf("requireAuthenticatedPlayer error: %v", err)
	}
	if got != p.id {
		t.Fatalf("unexpected player id: %q", got)
	}
}

func TestRequireAuthenticatedPlayer_MissingHeaders(t *testing.T) {
	h := Handler{}
	ctx := &app.RequestContext{}
	if _, err := h.requireAuthenticatedPlayer(context.Background(), ctx); err != ErrMissingPlayerCredentials {
		t.Fatalf("expected ErrMissingPlayerCredentials, got %v", err)
	}

	ctx.Request.Header.Set(protocol.HeaderPlayerID, "plr_1")
	if _, err := h.requireAuthenticatedPlayer(context.Background(), ctx); err != ErrMissingPlayerKeyHeader {
		t.Fatalf("expected ErrMissingPlayerKeyHeader, got %v", err)
	}
}

func TestRequireAuthenticatedPlayer_InvalidCredentials(t *testing.T) {
	h := newTestHandler()
	p := registerPlayer(t, h)
	p.key = "wrong"

	_, err := h.requireAuthenticatedPlayer(context.Background(), authedCtx(p, ""))
	if !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestWriteError_KindMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{auth.ErrInvalidCredentials, consts.StatusUnauthorized, protocol.KindUnauthenticated},
		{ErrMissingPlayerIDHeader, consts.StatusUnauthorized, protocol.KindUnauthenticated},
		{capture.ErrInvalidTarget, consts.StatusBadRequest, protocol.KindInvalidArgument},
		{&capture.ConflictError{Reason: capture.ReasonAlreadyOwned}, consts.StatusConflict, protocol.KindAlreadyExists},
		{ports.ErrConflict, consts.StatusConflict, protocol.KindAlreadyExists},
		{&capture.PreconditionError{Reason: capture.ReasonNotAdjacent}, consts.StatusPreconditionFailed, protocol.KindFailedPrecondition},
		{colony.ErrColonyNotFound, consts.StatusNotFound, protocol.KindNotFound},
		{ErrRateLimited, consts.StatusTooManyRequests, protocol.KindRateLimited},
		{errors.New("disk on fire"), consts.StatusInternalServerError, protocol.KindInternal},
	}
	for _, tc := range cases {
		ctx := &app.RequestContext{}
		writeError(ctx, tc.err)
		if got := ctx.Response.StatusCode(); got != tc.status {
			t.Fatalf("%v: status mismatch: got=%d want=%d", tc.err, got, tc.status)
		}
		if got := errorCode(t, ctx); got != tc.code {
			t.Fatalf("%v: code mismatch: got=%q want=%q", tc.err, got, tc.code)
		}
	}
}

func TestWriteError_InternalHidesMessage(t *testing.T) {
	ctx := &app.RequestContext{}
	writeError(ctx, errors.New("dsn=postgres://secret"))

	var body protocol.ErrorResponse
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Error.Message != "internal error" {
		t.Fatalf("internal errors must not leak details: %q", body.Error.Message)
	}
}

func TestCapture_ClaimThenFetchAndCatchUp(t *testing.T) {
	h := newTestHandler()
	p := registerPlayer(t, h)
	foundColony(t, h, p, 0, 0)

	ctx := authedCtx(p, `{"q":1,"r":-1,"s":0}`)
	h.capture(context.Background(), ctx)
	if got, want := ctx.Response.StatusCode(), consts.StatusOK; got != want {
		t.Fatalf("capture status mismatch: got=%d want=%d body=%s", got, want, ctx.Response.Body())
	}
	var captured protocol.CaptureResponse
	if err := json.Unmarshal(ctx.Response.Body(), &captured); err != nil {
		t.Fatalf("unmarshal capture: %v", err)
	}
	if !captured.Success || captured.Captured {
		t.Fatalf("expected a successful claim, got %+v", captured)
	}
	if captured.Tile.ControllerUID != p.id {
		t.Fatalf("tile controller mismatch: %q", captured.Tile.ControllerUID)
	}

	ctx = authedCtx(p, `{"tileIds":["1#-1#0","5#-5#0"]}`)
	h.batch(context.Background(), ctx)
	var batch protocol.BatchResponse
	if err := json.Unmarshal(ctx.Response.Body(), &batch); err != nil {
		t.Fatalf("unmarshal batch: %v", err)
	}
	if batch.Count != 1 || batch.Tiles[0].ID != hex.Encode(hex.Axial(1, -1)) {
		t.Fatalf("expected only the stored tile, got %+v", batch)
	}

	ctx = authedCtx(p, "")
	ctx.Request.SetRequestURI("/api/events?since=0")
	h.events(context.Background(), ctx)
	var feed protocol.EventsResponse
	if err := json.Unmarshal(ctx.Response.Body(), &feed); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(feed.Events) != 2 {
		t.Fatalf("expected founding and claim events, got %d", len(feed.Events))
	}
	for _, m := range feed.Events {
		if m.Kind != "TILE_UPDATED" {
			t.Fatalf("unexpected event kind %q", m.Kind)
		}
	}
}

func TestCapture_NotAdjacentIsPreconditionFailure(t *testing.T) {
	h := newTestHandler()
	p := registerPlayer(t, h)
	foundColony(t, h, p, 0, 0)

	ctx := authedCtx(p, `{"q":4,"r":-4,"s":0}`)
	h.capture(context.Background(), ctx)
	if got, want := ctx.Response.StatusCode(), consts.StatusPreconditionFailed; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
	if got := errorCode(t, ctx); got != protocol.KindFailedPrecondition {
		t.Fatalf("unexpected code %q", got)
	}
}

func TestCapture_RejectsEmptyBodyAndBadCoordinate(t *testing.T) {
	h := newTestHandler()
	p := registerPlayer(t, h)
	foundColony(t, h, p, 0, 0)

	for _, body := range []string{"", `{"q":1,"r":1,"s":1}`, `{"q":`} {
		ctx := authedCtx(p, body)
		h.capture(context.Background(), ctx)
		if got, want := ctx.Response.StatusCode(), consts.StatusBadRequest; got != want {
			t.Fatalf("body %q: status mismatch: got=%d want=%d", body, got, want)
		}
	}
}

func TestCapture_RateLimitedPerPlayer(t *testing.T) {
	h := newTestHandler()
	p := registerPlayer(t, h)
	foundColony(t, h, p, 0, 0)
	h.Limiter = NewRateLimiter(1, 1)

	first := authedCtx(p, `{"q":1,"r":-1,"s":0}`)
	h.capture(context.Background(), first)
	if got := first.Response.StatusCode(); got != consts.StatusOK {
		t.Fatalf("first capture should pass, got %d", got)
	}

	second := authedCtx(p, `{"q":0,"r":-1,"s":1}`)
	h.capture(context.Background(), second)
	if got, want := second.Response.StatusCode(), consts.StatusTooManyRequests; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
	if got := errorCode(t, second); got != protocol.KindRateLimited {
		t.Fatalf("unexpected code %q", got)
	}
}

func TestColonyByOwner_ReturnsCard(t *testing.T) {
	h := newTestHandler()
	owner := registerPlayer(t, h)
	viewer := registerPlayer(t, h)
	foundColony(t, h, owner, 3, 0)

	ctx := authedCtx(viewer, "")
	ctx.Params = param.Params{{Key: "uid", Value: owner.id}}
	h.colonyByOwner(context.Background(), ctx)
	if got, want := ctx.Response.StatusCode(), consts.StatusOK; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
	var body protocol.ColonyCardResponse
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Colony.ID != owner.id || body.Colony.Color != "#3366ff" || body.Colony.TerritoryScore != 1 {
		t.Fatalf("unexpected card: %+v", body.Colony)
	}

	ctx = authedCtx(viewer, "")
	ctx.Params = param.Params{{Key: "uid", Value: viewer.id}}
	h.colonyByOwner(context.Background(), ctx)
	if got, want := ctx.Response.StatusCode(), consts.StatusNotFound; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
}

func TestMyView_DistanceQuery(t *testing.T) {
	h := newTestHandler()
	p := registerPlayer(t, h)
	foundColony(t, h, p, 0, 0)

	ctx := authedCtx(p, "")
	ctx.Request.SetRequestURI("/api/colonies/me/view?distance=1")
	h.myView(context.Background(), ctx)
	var body protocol.ViewResponse
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Distance != 1 || len(body.Owned) != 1 || len(body.Frontier) != 6 {
		t.Fatalf("unexpected view: distance=%d owned=%d frontier=%d", body.Distance, len(body.Owned), len(body.Frontier))
	}

	ctx = authedCtx(p, "")
	ctx.Request.SetRequestURI("/api/colonies/me/view?distance=far")
	h.myView(context.Background(), ctx)
	if got, want := ctx.Response.StatusCode(), consts.StatusBadRequest; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
}

func TestMyColony_NotFoundBeforeFounding(t *testing.T) {
	h := newTestHandler()
	p := registerPlayer(t, h)

	ctx := authedCtx(p, "")
	h.myColony(context.Background(), ctx)
	if got, want := ctx.Response.StatusCode(), consts.StatusNotFound; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
}

func TestKPI_NotConfigured(t *testing.T) {
	ctx := &app.RequestContext{}
	Handler{}.kpi(context.Background(), ctx)
	if got, want := ctx.Response.StatusCode(), consts.StatusNotFound; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
}
