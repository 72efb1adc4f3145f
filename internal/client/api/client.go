// Package api is the client side of the HTTP routes, built on the hertz
// client.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"hexcolony/internal/domain/hex"
	"hexcolony/internal/domain/territory"
	"hexcolony/internal/protocol"

	"github.com/cloudwego/hertz/pkg/app/client"
	hzproto "github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// MaxBatch mirrors the server's batch limit.
const MaxBatch = 500

// Error is a non-2xx answer from the server.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
}

type Credentials struct {
	PlayerID  string
	PlayerKey string
}

type Client struct {
	base  string
	creds Credentials
	hc    *client.Client
}

func New(baseURL string, creds Credentials, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc, err := client.NewClient(
		client.WithDialTimeout(timeout),
		client.WithClientReadTimeout(timeout),
	)
	if err != nil {
		return nil, err
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), creds: creds, hc: hc}, nil
}

// WithCredentials returns a client sharing the connection pool.
func (c *Client) WithCredentials(creds Credentials) *Client {
	out := *c
	out.creds = creds
	return &out
}

func (c *Client) Register(ctx context.Context) (protocol.RegisterResponse, error) {
	var out protocol.RegisterResponse
	err := c.do(ctx, consts.MethodPost, "/api/players/register", nil, &out)
	return out, err
}

func (c *Client) FoundColony(ctx context.Context, name, color string, start hex.Coordinate) (protocol.ColonyResponse, error) {
	var out protocol.ColonyResponse
	err := c.do(ctx, consts.MethodPost, "/api/colonies", protocol.FoundColonyRequest{
		Name:  name,
		Color: color,
		Start: start,
	}, &out)
	return out, err
}

func (c *Client) MyColony(ctx context.Context) (protocol.ColonyResponse, error) {
	var out protocol.ColonyResponse
	err := c.do(ctx, consts.MethodGet, "/api/colonies/me", nil, &out)
	return out, err
}

func (c *Client) MyView(ctx context.Context, distance int) (protocol.ViewResponse, error) {
	var out protocol.ViewResponse
	err := c.do(ctx, consts.MethodGet, fmt.Sprintf("/api/colonies/me/view?distance=%d", distance), nil, &out)
	return out, err
}

func (c *Client) ColonyByOwner(ctx context.Context, ownerUID string) (protocol.ColonyCard, error) {
	var out protocol.ColonyCardResponse
	err := c.do(ctx, consts.MethodGet, "/api/colonies/by-owner/"+url.PathEscape(ownerUID), nil, &out)
	return out.Colony, err
}

func (c *Client) Capture(ctx context.Context, target hex.Coordinate) (protocol.CaptureResponse, error) {
	var out protocol.CaptureResponse
	err := c.do(ctx, consts.MethodPost, "/api/tiles/capture", protocol.CaptureRequest{
		Q: target.Q,
		R: target.R,
		S: target.S,
	}, &out)
	return out, err
}

// BatchGet fetches ids in chunks and returns one record per requested id,
// in request order. Ids the server does not know come back as unexplored
// placeholders; malformed ids are skipped.
func (c *Client) BatchGet(ctx context.Context, ids []hex.TileID) ([]territory.TileRecord, error) {
	found := make(map[hex.TileID]territory.TileRecord, len(ids))
	for start := 0; start < len(ids); start += MaxBatch {
		end := min(start+MaxBatch, len(ids))
		req := protocol.BatchRequest{TileIDs: make([]string, 0, end-start)}
		for _, id := range ids[start:end] {
			req.TileIDs = append(req.TileIDs, string(id))
		}
		var out protocol.BatchResponse
		if err := c.do(ctx, consts.MethodPost, "/api/tiles/batch", req, &out); err != nil {
			return nil, err
		}
		for _, t := range out.Tiles {
			found[t.ID] = t
		}
	}

	tiles := make([]territory.TileRecord, 0, len(ids))
	seen := make(map[hex.TileID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if t, ok := found[id]; ok {
			tiles = append(tiles, t)
			continue
		}
		p, err := territory.PlaceholderFromID(id)
		if err != nil {
			continue
		}
		tiles = append(tiles, p)
	}
	return tiles, nil
}

func (c *Client) EventsSince(ctx context.Context, since int64, limit int) (protocol.EventsResponse, error) {
	var out protocol.EventsResponse
	path := fmt.Sprintf("/api/events?since=%d", since)
	if limit > 0 {
		path += fmt.Sprintf("&limit=%d", limit)
	}
	err := c.do(ctx, consts.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	req := hzproto.AcquireRequest()
	resp := hzproto.AcquireResponse()
	defer hzproto.ReleaseRequest(req)
	defer hzproto.ReleaseResponse(resp)

	req.SetMethod(method)
	req.SetRequestURI(c.base + path)
	if c.creds.PlayerID != "" {
		req.Header.Set(protocol.HeaderPlayerID, c.creds.PlayerID)
		req.Header.Set(protocol.HeaderPlayerKey, c.creds.PlayerKey)
	}
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBody(b)
	}

	if err := c.hc.Do(ctx, req, resp); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	body := resp.Body()
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		apiErr := &Error{Status: status, Code: protocol.KindInternal, Message: strings.TrimSpace(string(body))}
		var e protocol.ErrorResponse
		if json.Unmarshal(body, &e) == nil && e.Error.Code != "" {
			apiErr.Code = e.Error.Code
			apiErr.Message = e.Error.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}
