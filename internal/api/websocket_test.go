package api

import (
	"context"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bbernstein/panelboard-go/internal/document"
	"github.com/bbernstein/panelboard-go/internal/services/pubsub"
)

func dialFeed(t *testing.T, serverURL, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) pubsub.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev pubsub.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestChangeFeed_StreamsEvents(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	conn := dialFeed(t, srv.URL, "")
	defer func() { _ = conn.Close() }()

	ctx := context.Background()
	require.NoError(t, env.panels.UpdateParameter(ctx, "A", 12))
	id, _, err := env.panels.CreatePanel(ctx, document.OffGrid())
	require.NoError(t, err)

	ev := readEvent(t, conn)
	assert.Equal(t, pubsub.TopicParameterUpdated, ev.Topic)
	assert.Equal(t, "A", ev.Key)
	assert.EqualValues(t, 12, ev.Value)
	assert.NotEmpty(t, ev.ID)

	ev = readEvent(t, conn)
	assert.Equal(t, pubsub.TopicPanelCreated, ev.Topic)
	assert.Equal(t, strconv.FormatInt(id, 10), ev.Key)
}

func TestChangeFeed_TopicFilter(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	conn := dialFeed(t, srv.URL, "?topic=PANEL_DELETED")
	defer func() { _ = conn.Close() }()

	ctx := context.Background()
	id, _, err := env.panels.CreatePanel(ctx, document.OffGrid())
	require.NoError(t, err)
	require.NoError(t, env.panels.DeletePanel(ctx, id))

	ev := readEvent(t, conn)
	assert.Equal(t, pubsub.TopicPanelDeleted, ev.Topic)
	assert.Equal(t, strconv.FormatInt(id, 10), ev.Key)
}

func TestChangeFeed_UnsubscribesOnDisconnect(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	conn := dialFeed(t, srv.URL, "")
	assert.Equal(t, 1, env.pubsub.SubscriberCount(pubsub.TopicAll))

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return env.pubsub.SubscriberCount(pubsub.TopicAll) == 0
	}, 5*time.Second, 10*time.Millisecond)
}
