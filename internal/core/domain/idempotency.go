package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// IdempotentResponse is a stored reply replayed for a repeated
// Idempotency-Key.
type IdempotentResponse struct {
	StatusCode  int    `json:"status_code"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// BuildIdempotencyKey scopes a client key to the route it was sent to.
func BuildIdempotencyKey(method, route, clientKey string) string {
	return method + ":" + route + ":" + clientKey
}

// HashRequest fingerprints a request body so a reused key with a different
// payload can be told apart from a retry.
func HashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
