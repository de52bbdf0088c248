package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/0xtaosu/meme-memos/internal/stream"
)

func TestStream_PushesMemoChanges(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/memos/stream", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return s.hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	code, _ := s.do(t, http.MethodPost, "/api/memos", `{"tokenAddress":"0xABC"}`, true)
	require.Equal(t, http.StatusCreated, code)

	var msg stream.Message
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, stream.TypeMemoUpserted, msg.Type)
	assert.Equal(t, "0xABC", msg.TokenAddress)
	require.NotNil(t, msg.Memo)
	assert.Equal(t, "PEPE", msg.Memo.Symbol)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool { return s.hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
