package domain

import (
	"encoding/json"
	"time"
)

// IdempotencyRecord binds a client-supplied key to exactly one stored write
// outcome. Same key + same request hash replays the stored response; same
// key + different hash is a conflict.
type IdempotencyRecord struct {
	TenantID     string
	Key          string
	RequestHash  string
	ResponseJSON json.RawMessage
	StatusCode   int
	CreatedAt    time.Time
}
