// Package protocol defines the JSON shapes exchanged with clients over HTTP
// and the real-time channel.
package protocol

const Version = "1"

// Error kinds carried in {"error":{"code":...}}.
const (
	KindUnauthenticated    = "unauthenticated"
	KindInvalidArgument    = "invalid-argument"
	KindAlreadyExists      = "already-exists"
	KindFailedPrecondition = "failed-precondition"
	KindNotFound           = "not-found"
	KindInternal           = "internal"
	KindRateLimited        = "rate-limited"
)

var knownKinds = map[string]struct{}{
	KindUnauthenticated:    {},
	KindInvalidArgument:    {},
	KindAlreadyExists:      {},
	KindFailedPrecondition: {},
	KindNotFound:           {},
	KindInternal:           {},
	KindRateLimited:        {},
}

func IsKnownKind(kind string) bool {
	_, ok := knownKinds[kind]
	return ok
}

// Header names used to authenticate HTTP and channel requests.
const (
	HeaderPlayerID  = "X-Player-ID"
	HeaderPlayerKey = "X-Player-Key"

	QueryPlayerID  = "player_id"
	QueryPlayerKey = "player_key"
)
