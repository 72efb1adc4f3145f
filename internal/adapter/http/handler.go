package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"hexcolony/internal/app/auth"
	"hexcolony/internal/app/capture"
	"hexcolony/internal/app/colony"
	"hexcolony/internal/app/events"
	"hexcolony/internal/app/ports"
	"hexcolony/internal/app/tiles"
	"hexcolony/internal/domain/hex"
	"hexcolony/internal/protocol"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

type Handler struct {
	RegisterUC auth.RegisterUseCase
	AuthUC     auth.VerifyUseCase
	FoundUC    colony.FoundUseCase
	StatusUC   colony.StatusUseCase
	CardUC     colony.CardUseCase
	ViewUC     colony.ViewUseCase
	CaptureUC  capture.UseCase
	TilesUC    tiles.UseCase
	EventsUC   events.UseCase
	Limiter    *RateLimiter
	KPI        kpiSnapshotProvider
	Logger     *slog.Logger
}

func (h Handler) RegisterRoutes(s *server.Hertz) {
	s.Use(corsMiddleware())

	api := s.Group("/api")
	api.POST("/players/register", h.register)

	api.POST("/colonies", h.foundColony)
	api.GET("/colonies/me", h.myColony)
	api.GET("/colonies/me/view", h.myView)
	api.GET("/colonies/by-owner/:uid", h.colonyByOwner)

	api.POST("/tiles/capture", h.capture)
	api.POST("/tiles/batch", h.batch)

	api.GET("/events", h.events)

	s.GET("/ops/kpi", h.kpi)
}

var (
	ErrMissingPlayerCredentials = fmt.Errorf("%w: missing player credentials", ports.ErrUnauthenticated)
	ErrMissingPlayerIDHeader    = fmt.Errorf("%w: missing x-player-id header", ports.ErrUnauthenticated)
	ErrMissingPlayerKeyHeader   = fmt.Errorf("%w: missing x-player-key header", ports.ErrUnauthenticated)
	ErrInvalidJSON              = fmt.Errorf("%w: invalid json", ports.ErrInvalidArgument)
	ErrEmptyBody                = fmt.Errorf("%w: request body is required", ports.ErrInvalidArgument)
	ErrRateLimited              = errors.New("too many requests")
)

func (h Handler) register(c context.Context, ctx *app.RequestContext) {
	if !h.Limiter.Allow("ip:" + ctx.ClientIP()) {
		writeError(ctx, ErrRateLimited)
		return
	}
	resp, err := h.RegisterUC.Execute(c, auth.RegisterRequest{})
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(consts.StatusCreated, protocol.RegisterResponse{
		PlayerID:  resp.PlayerID,
		PlayerKey: resp.PlayerKey,
		IssuedAt:  resp.IssuedAt,
	})
}

func (h Handler) foundColony(c context.Context, ctx *app.RequestContext) {
	playerID, ok := h.authorizeMutation(c, ctx)
	if !ok {
		return
	}
	var body protocol.FoundColonyRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeError(ctx, err)
		return
	}

	resp, err := h.FoundUC.Execute(c, colony.FoundRequest{
		OwnerUID: playerID,
		Name:     body.Name,
		Color:    body.Color,
		Start:    body.Start,
	})
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(consts.StatusCreated, protocol.ColonyResponse{
		Success: true,
		Colony:  resp.Colony,
		TileIDs: []hex.TileID{resp.Tile.ID},
	})
}

func (h Handler) myColony(c context.Context, ctx *app.RequestContext) {
	playerID, err := h.requireAuthenticatedPlayer(c, ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	resp, err := h.StatusUC.Execute(c, colony.StatusRequest{OwnerUID: playerID})
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, protocol.ColonyResponse{
		Success: true,
		Colony:  resp.Colony,
		TileIDs: resp.TileIDs,
	})
}

func (h Handler) myView(c context.Context, ctx *app.RequestContext) {
	playerID, err := h.requireAuthenticatedPlayer(c, ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	req := colony.ViewRequest{OwnerUID: playerID}
	if raw := strings.TrimSpace(string(ctx.Query("distance"))); raw != "" {
		k, convErr := strconv.Atoi(raw)
		if convErr != nil {
			writeError(ctx, colony.ErrInvalidView)
			return
		}
		req.Distance = &k
	}

	resp, err := h.ViewUC.Execute(c, req)
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, protocol.ViewResponse{
		Success:  true,
		Distance: resp.Distance,
		Owned:    resp.Owned,
		Frontier: resp.Frontier,
	})
}

func (h Handler) colonyByOwner(c context.Context, ctx *app.RequestContext) {
	if _, err := h.requireAuthenticatedPlayer(c, ctx); err != nil {
		writeError(ctx, err)
		return
	}
	card, err := h.CardUC.Execute(c, ctx.Param("uid"))
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, protocol.ColonyCardResponse{
		Success: true,
		Colony: protocol.ColonyCard{
			ID:             card.ID,
			OwnerUID:       card.OwnerUID,
			Name:           card.Name,
			Color:          card.Color,
			TerritoryScore: card.TerritoryScore,
		},
	})
}

func (h Handler) capture(c context.Context, ctx *app.RequestContext) {
	playerID, ok := h.authorizeMutation(c, ctx)
	if !ok {
		return
	}
	var body protocol.CaptureRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeError(ctx, err)
		return
	}

	res, err := h.CaptureUC.Execute(c, capture.Request{
		RequesterUID: playerID,
		Target:       hex.Coordinate{Q: body.Q, R: body.R, S: body.S},
	})
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, protocol.CaptureResponse{
		Success:        true,
		Tile:           res.Tile,
		Captured:       res.Captured,
		PreviousOwner:  res.PreviousOwnerUID,
		PreviousColony: res.PreviousColonyID,
		Message:        res.Message,
	})
}

func (h Handler) batch(c context.Context, ctx *app.RequestContext) {
	if _, err := h.requireAuthenticatedPlayer(c, ctx); err != nil {
		writeError(ctx, err)
		return
	}
	var body protocol.BatchRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeError(ctx, err)
		return
	}

	ids := make([]hex.TileID, 0, len(body.TileIDs))
	for _, id := range body.TileIDs {
		ids = append(ids, hex.TileID(id))
	}
	resp, err := h.TilesUC.BatchGet(c, tiles.Request{TileIDs: ids})
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, protocol.BatchResponse{
		Success: true,
		Tiles:   resp.Tiles,
		Count:   resp.Count,
	})
}

func (h Handler) events(c context.Context, ctx *app.RequestContext) {
	playerID, err := h.requireAuthenticatedPlayer(c, ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	since, err := queryInt64(ctx, "since")
	if err != nil {
		writeError(ctx, events.ErrInvalidSince)
		return
	}
	limit, err := queryInt64(ctx, "limit")
	if err != nil {
		writeError(ctx, fmt.Errorf("%w: limit must be an integer", ports.ErrInvalidArgument))
		return
	}

	resp, err := h.EventsUC.Since(c, events.Request{
		ViewerUID: playerID,
		Since:     since,
		Limit:     int(limit),
	})
	if err != nil {
		h.fail(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, protocol.EventsResponse{
		Success: true,
		Events:  protocol.MessagesFromEvents(resp.Events),
		Cursor:  resp.Cursor,
		More:    resp.More,
	})
}

type kpiSnapshotProvider interface {
	SnapshotAny() any
}

func (h Handler) kpi(_ context.Context, ctx *app.RequestContext) {
	if h.KPI == nil {
		writeErrorBody(ctx, consts.StatusNotFound, protocol.KindNotFound, "kpi provider not configured")
		return
	}
	ctx.JSON(consts.StatusOK, h.KPI.SnapshotAny())
}

// authorizeMutation authenticates the caller and charges one token from
// their bucket. It writes the error response itself when it returns false.
func (h Handler) authorizeMutation(c context.Context, ctx *app.RequestContext) (string, bool) {
	playerID, err := h.requireAuthenticatedPlayer(c, ctx)
	if err != nil {
		writeError(ctx, err)
		return "", false
	}
	if !h.Limiter.Allow(playerID) {
		writeError(ctx, ErrRateLimited)
		return "", false
	}
	return playerID, true
}

func (h Handler) requireAuthenticatedPlayer(c context.Context, ctx *app.RequestContext) (string, error) {
	playerID := strings.TrimSpace(string(ctx.GetHeader(protocol.HeaderPlayerID)))
	playerKey := strings.TrimSpace(string(ctx.GetHeader(protocol.HeaderPlayerKey)))
	if playerID == "" && playerKey == "" {
		return "", ErrMissingPlayerCredentials
	}
	if playerID == "" {
		return "", ErrMissingPlayerIDHeader
	}
	if playerKey == "" {
		return "", ErrMissingPlayerKeyHeader
	}
	if err := h.AuthUC.Execute(c, auth.VerifyRequest{
		PlayerID:  playerID,
		PlayerKey: playerKey,
	}); err != nil {
		return "", err
	}
	return playerID, nil
}

func decodeJSON(ctx *app.RequestContext, out any) error {
	body := ctx.Request.Body()
	if len(body) == 0 {
		return ErrEmptyBody
	}
	if err := json.Unmarshal(body, out); err != nil {
		return ErrInvalidJSON
	}
	return nil
}

func queryInt64(ctx *app.RequestContext, key string) (int64, error) {
	raw := strings.TrimSpace(string(ctx.Query(key)))
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

// fail writes err and logs it when it maps to an internal error.
func (h Handler) fail(ctx *app.RequestContext, err error) {
	if errorKind(err) == protocol.KindInternal && h.Logger != nil {
		h.Logger.Error("request failed", "path", string(ctx.Path()), "err", err)
	}
	writeError(ctx, err)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return protocol.KindRateLimited
	case errors.Is(err, ports.ErrUnauthenticated):
		return protocol.KindUnauthenticated
	case errors.Is(err, ports.ErrInvalidArgument):
		return protocol.KindInvalidArgument
	case errors.Is(err, ports.ErrAlreadyExists), errors.Is(err, ports.ErrConflict):
		return protocol.KindAlreadyExists
	case errors.Is(err, ports.ErrFailedPrecondition):
		return protocol.KindFailedPrecondition
	case errors.Is(err, ports.ErrNotFound):
		return protocol.KindNotFound
	default:
		return protocol.KindInternal
	}
}

var kindStatus = map[string]int{
	protocol.KindRateLimited:        consts.StatusTooManyRequests,
	protocol.KindUnauthenticated:    consts.StatusUnauthorized,
	protocol.KindInvalidArgument:    consts.StatusBadRequest,
	protocol.KindAlreadyExists:      consts.StatusConflict,
	protocol.KindFailedPrecondition: consts.StatusPreconditionFailed,
	protocol.KindNotFound:           consts.StatusNotFound,
	protocol.KindInternal:           consts.StatusInternalServerError,
}

func writeError(ctx *app.RequestContext, err error) {
	kind := errorKind(err)
	message := err.Error()
	if kind == protocol.KindInternal {
		message = "internal error"
	}
	writeErrorBody(ctx, kindStatus[kind], kind, message)
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, protocol.ErrorResponse{
		Success: false,
		Error: protocol.ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
