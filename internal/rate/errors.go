package rate

import "errors"

var (
	// ErrRateLimited is an exported constant or variable used by the flow client.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable is an exported constant or variable used by the flow client.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
