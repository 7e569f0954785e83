package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"core-ledger/internal/core/domain"
	"core-ledger/internal/core/ports"
	"core-ledger/pkg/apperror"
	"core-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"

	maxIdempotencyKey = 128
	idempotencyTTL    = 24 * time.Hour   // how long a stored reply is replayed
	inFlightTTL       = 30 * time.Second // how long a marker outlives a crashed request
)

// Idempotency replays the stored reply of a mutation sent again with the
// same Idempotency-Key. Requests without the header pass through. Storage
// faults are not stored, so a retried request runs again. Cache errors
// degrade to running the request.
func Idempotency(cache ports.IdempotencyCache, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := c.GetHeader(HeaderIdempotencyKey)
		if clientKey == "" {
			c.Next()
			return
		}
		if len(clientKey) > maxIdempotencyKey {
			response.Error(c, apperror.Validation("Idempotency-Key is too long"))
			c.Abort()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Error(c, apperror.Validation("cannot read request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		// The reply is stored even if the client has gone away.
		ctx := context.WithoutCancel(c.Request.Context())
		key := domain.BuildIdempotencyKey(c.Request.Method, c.Request.URL.Path, clientKey)
		hash := domain.HashRequest(body)

		if replayed := replay(c, cache, key, hash, log); replayed {
			c.Abort()
			return
		}

		acquired, err := cache.Acquire(ctx, key, inFlightTTL)
		if err != nil {
			log.Warn().Err(err).Msg("idempotency cache unavailable, running request")
			c.Next()
			return
		}
		if !acquired {
			response.Error(c, apperror.ErrRequestInFlight())
			c.Abort()
			return
		}
		defer func() {
			if err := cache.Release(ctx, key); err != nil {
				log.Warn().Err(err).Msg("failed to release idempotency marker")
			}
		}()

		// A request holding the marker may have stored its reply and released
		// between the first lookup and Acquire.
		if replayed := replay(c, cache, key, hash, log); replayed {
			c.Abort()
			return
		}

		rec := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status >= http.StatusInternalServerError {
			return
		}
		stored, err := json.Marshal(domain.IdempotentResponse{
			StatusCode:  status,
			Body:        rec.body.Bytes(),
			RequestHash: hash,
		})
		if err != nil {
			return
		}
		if err := cache.Set(ctx, key, stored, idempotencyTTL); err != nil {
			log.Warn().Err(err).Msg("failed to store idempotent reply")
		}
	}
}

// replay writes a stored reply for key and reports whether it did.
func replay(c *gin.Context, cache ports.IdempotencyCache, key, hash string, log zerolog.Logger) bool {
	raw, err := cache.Get(c.Request.Context(), key)
	if err != nil {
		log.Warn().Err(err).Msg("idempotency lookup failed")
		return false
	}
	if raw == nil {
		return false
	}

	var stored domain.IdempotentResponse
	if err := json.Unmarshal(raw, &stored); err != nil {
		log.Warn().Err(err).Msg("discarding unreadable idempotent reply")
		return false
	}
	if stored.RequestHash != hash {
		response.Error(c, apperror.ErrIdempotencyMismatch())
		return true
	}

	c.Header(HeaderReplayed, "true")
	c.Data(stored.StatusCode, "application/json; charset=utf-8", stored.Body)
	return true
}

// recordingWriter keeps a copy of the body written through it.
type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
