package handler

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"core-ledger/internal/adapter/events"
	"core-ledger/internal/core/domain"
	"core-ledger/pkg/money"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readEvent returns the next "event:" name and "data:" payload on the stream.
func readEvent(t *testing.T, r *bufio.Reader) (name, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestEventStream_DeliversFilteredEvents(t *testing.T) {
	hub := events.NewHub(zerolog.Nop())
	defer hub.Close()

	r := gin.New()
	r.GET("/events", NewEventHandler(hub, time.Hour).Stream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?types=transaction.created", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	acct := domain.Account{ID: 1, Name: "A", Balance: money.RequireFromString("5.00")}
	require.NoError(t, hub.Publish(ctx, domain.NewEvent(domain.EventAccountCreated, nil, acct)))
	tx := &domain.Transaction{ID: 3, ToAccountID: domain.ID(1), Amount: money.RequireFromString("5.00"), Kind: domain.TransactionKindDeposit}
	require.NoError(t, hub.Publish(ctx, domain.NewEvent(domain.EventTransactionCreated, tx, acct)))

	name, data := readEvent(t, bufio.NewReader(resp.Body))
	assert.Equal(t, "transaction.created", name)
	assert.Contains(t, data, `"amount":"5.00"`)

	// The subscription ends with the client.
	cancel()
	assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestEventStream_KeepAlive(t *testing.T) {
	hub := events.NewHub(zerolog.Nop())
	defer hub.Close()

	r := gin.New()
	r.GET("/events", NewEventHandler(hub, 10*time.Millisecond).Stream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": keep-alive\n", line)
}

func TestEventStream_EndsWhenHubCloses(t *testing.T) {
	hub := events.NewHub(zerolog.Nop())

	r := gin.New()
	r.GET("/events", NewEventHandler(hub, time.Hour).Stream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, hub.Close())

	_, err = bufio.NewReader(resp.Body).ReadString('\n')
	assert.Error(t, err) // EOF once the handler returns
}

func TestParseEventTypes(t *testing.T) {
	assert.Nil(t, parseEventTypes(""))
	got := parseEventTypes("account.created, transaction.created,,")
	assert.Len(t, got, 2)
	assert.True(t, got[domain.EventTransactionCreated])
}
