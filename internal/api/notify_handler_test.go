package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvbuilder/internal/auth"
)

type fakeNotifications struct {
	subscribed chan uint
	messages   chan string
}

func newFakeNotifications() *fakeNotifications {
	return &fakeNotifications{subscribed: make(chan uint, 1), messages: make(chan string, 4)}
}

func (f *fakeNotifications) Subscribe(ctx context.Context, userID uint) (<-chan string, error) {
	f.subscribed <- userID
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-f.messages:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func newWsServer(t *testing.T, source NotificationSource, tokens *auth.AuthService) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/v1/ws", NewWsHandler(source, tokens, nil).HandleConnection)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
}

func newTokens(t *testing.T) *auth.AuthService {
	t.Helper()
	privatePEM, publicPEM := testKeyPEM(t)
	tokens, err := auth.NewAuthService(privatePEM, publicPEM, time.Minute, time.Hour)
	require.NoError(t, err)
	return tokens
}

func TestWsForwardsNotificationsAfterAuth(t *testing.T) {
	tokens := newTokens(t)
	source := newFakeNotifications()
	url := newWsServer(t, source, tokens)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	pair, err := tokens.GenerateTokenPair(42, false)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": pair.AccessToken}))

	select {
	case id := <-source.subscribed:
		assert.Equal(t, uint(42), id)
	case <-time.After(5 * time.Second):
		t.Fatal("subscription not started")
	}

	source.messages <- `{"status":"published","resume_id":1}`
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"published","resume_id":1}`, string(payload))
}

func TestWsRejectsBadAuth(t *testing.T) {
	tokens := newTokens(t)
	url := newWsServer(t, newFakeNotifications(), tokens)

	refreshOnly, err := tokens.GenerateTokenPair(42, false)
	require.NoError(t, err)
	mustChange, err := tokens.GenerateTokenPair(43, true)
	require.NoError(t, err)

	cases := map[string]any{
		"wrong type":     map[string]string{"type": "hello", "token": refreshOnly.AccessToken},
		"refresh token":  map[string]string{"type": "auth", "token": refreshOnly.RefreshToken},
		"must change pw": map[string]string{"type": "auth", "token": mustChange.AccessToken},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			require.NoError(t, err)
			defer conn.Close()

			require.NoError(t, conn.WriteJSON(msg))
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
			_, _, err = conn.ReadMessage()
			var closeErr *websocket.CloseError
			require.ErrorAs(t, err, &closeErr)
			assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
		})
	}
}

func TestWsCheckOrigin(t *testing.T) {
	h := NewWsHandler(nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "http://api.example.com/v1/ws", nil)
	req.Header.Set("Origin", "http://api.example.com")
	assert.True(t, h.checkOrigin(req))
	req.Header.Set("Origin", "http://evil.example.com")
	assert.False(t, h.checkOrigin(req))

	h = NewWsHandler(nil, nil, []string{"https://app.example.com"})
	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, h.checkOrigin(req))
}
