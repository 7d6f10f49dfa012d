package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatwire/internal/metrics"
	"chatwire/internal/presence"
	"chatwire/internal/recall"
	"chatwire/internal/registry"
	"chatwire/internal/router"
	"chatwire/pkg/interfaces"
	"chatwire/pkg/types"
)

type fakeUsers struct {
	interfaces.IdentityDirectory
	mu         sync.Mutex
	byIdentity map[string]*types.User
}

func (u *fakeUsers) FindByIdentity(_ context.Context, identity string) (*types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.byIdentity[identity]
	if !ok {
		return nil, interfaces.ErrUserNotFound
	}
	return user, nil
}

func (u *fakeUsers) FindByID(_ context.Context, userID int64) (*types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.byIdentity {
		if user.ID == userID {
			return user, nil
		}
	}
	return nil, interfaces.ErrUserNotFound
}

func (u *fakeUsers) UpdateStatus(_ context.Context, userID int64, status types.Status) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.byIdentity {
		if user.ID == userID {
			user.Status = status
		}
	}
	return nil
}

type memMessages struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*types.Message
}

func newMemMessages() *memMessages {
	return &memMessages{byID: map[int64]*types.Message{}}
}

func (s *memMessages) Insert(_ context.Context, msg *types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg.ID = s.nextID
	msg.Status = types.DeliverySent
	msg.CreatedAt = time.Now()
	stored := *msg
	s.byID[msg.ID] = &stored
	return nil
}

func (s *memMessages) FindByID(_ context.Context, id int64) (*types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.byID[id]
	if !ok {
		return nil, interfaces.ErrMessageNotFound
	}
	stored := *msg
	return &stored, nil
}

func (s *memMessages) MarkRecalled(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.byID[id]; ok {
		msg.Recalled = true
	}
	return nil
}

func (s *memMessages) MarkRead(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.byID[id]; ok {
		msg.Status = types.DeliveryRead
	}
	return nil
}

func (s *memMessages) FindOfflineFor(_ context.Context, receiverID int64) ([]*types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Message
	for id := int64(1); id <= s.nextID; id++ {
		msg, ok := s.byID[id]
		if ok && msg.ReceiverID == receiverID && msg.Status == types.DeliverySent && !msg.Recalled {
			stored := *msg
			out = append(out, &stored)
		}
	}
	return out, nil
}

func (s *memMessages) MarkDelivered(_ context.Context, receiverID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.byID {
		if msg.ReceiverID == receiverID && msg.Status == types.DeliverySent {
			msg.Status = types.DeliveryDelivered
		}
	}
	return nil
}

type memGroups struct {
	interfaces.GroupDirectory
	members map[int64][]int64
}

func (g *memGroups) MemberIDs(_ context.Context, groupID int64) ([]int64, error) {
	return g.members[groupID], nil
}

func (g *memGroups) FindMessage(_ context.Context, id int64) (*types.GroupMessage, error) {
	return nil, interfaces.ErrMessageNotFound
}

type memFriends struct {
	byUser map[int64][]int64
}

func (f *memFriends) FriendIDsOf(_ context.Context, userID int64) ([]int64, error) {
	return f.byUser[userID], nil
}

type harness struct {
	server   *httptest.Server
	reg      *registry.Registry
	users    *fakeUsers
	messages *memMessages
	friends  *memFriends
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zap.NewNop()
	m := metrics.New(prometheus.NewRegistry())
	reg := registry.New(log, m)
	users := &fakeUsers{byIdentity: map[string]*types.User{
		"alice": {ID: 1, Username: "alice", Nickname: "Alice"},
		"bob":   {ID: 2, Username: "bob"},
	}}
	messages := newMemMessages()
	groups := &memGroups{members: map[int64][]int64{}}
	friends := &memFriends{byUser: map[int64][]int64{}}

	rc := recall.NewCoordinator(reg, messages, groups, log, m)
	rt := router.NewRouter(reg, messages, groups, rc, nil, log, m)
	pn := presence.NewNotifier(reg, users, friends, log, m)
	h := NewHandler(reg, rt, pn, users, messages, 16, time.Second, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleWebSocket)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &harness{server: srv, reg: reg, users: users, messages: messages, friends: friends}
}

// befriend records an accepted friendship both ways, before any
// connection is opened.
func (h *harness) befriend(a, b int64) {
	h.friends.byUser[a] = append(h.friends.byUser[a], b)
	h.friends.byUser[b] = append(h.friends.byUser[b], a)
}

func (h *harness) dial(t *testing.T, identity string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"
	header := http.Header{}
	if identity != "" {
		header.Set("X-Identity", identity)
	}
	ws, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readEnvelope(t *testing.T, ws *websocket.Conn) *types.Envelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var env types.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return &env
}

func TestRejectsMissingIdentity(t *testing.T) {
	h := newHarness(t)
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestRejectsUnknownIdentity(t *testing.T) {
	h := newHarness(t)
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"
	header := http.Header{}
	header.Set("X-Identity", "mallory")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestIdentityFromQueryParam(t *testing.T) {
	h := newHarness(t)
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws?identity=alice"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer ws.Close()

	welcome := readEnvelope(t, ws)
	require.Equal(t, types.KindSystem, welcome.Type)
	require.Contains(t, welcome.Content, "Alice")
}

func TestDirectMessageEndToEnd(t *testing.T) {
	h := newHarness(t)
	aliceWS := h.dial(t, "alice")
	bobWS := h.dial(t, "bob")
	require.Equal(t, types.KindSystem, readEnvelope(t, aliceWS).Type)
	require.Equal(t, types.KindSystem, readEnvelope(t, bobWS).Type)

	payload := `{"type":"CHAT","receiverId":2,"content":"hello bob"}`
	require.NoError(t, aliceWS.WriteMessage(websocket.TextMessage, []byte(payload)))

	got := readEnvelope(t, bobWS)
	require.Equal(t, types.KindDirect, got.Type)
	require.Equal(t, "hello bob", got.Content)
	require.Equal(t, "Alice", got.SenderName)

	echo := readEnvelope(t, aliceWS)
	require.Equal(t, types.KindDirect, echo.Type)
	require.Equal(t, "hello bob", echo.Content)
}

func TestDuplicateLoginKicksPreviousSession(t *testing.T) {
	h := newHarness(t)
	first := h.dial(t, "alice")
	require.Equal(t, types.KindSystem, readEnvelope(t, first).Type)

	second := h.dial(t, "alice")
	require.Equal(t, types.KindSystem, readEnvelope(t, second).Type)

	kick := readEnvelope(t, first)
	require.Equal(t, types.KindKick, kick.Type)

	// The evicted socket closes shortly after the kick notice.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	require.Error(t, err)

	// The newer session stays registered.
	require.Eventually(t, func() bool {
		return h.reg.Count() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDuplicateLoginEmitsNoPresence(t *testing.T) {
	h := newHarness(t)
	h.befriend(1, 2)

	bobWS := h.dial(t, "bob")
	require.Equal(t, types.KindSystem, readEnvelope(t, bobWS).Type)

	// First login: bob hears alice come online exactly once.
	first := h.dial(t, "alice")
	require.Equal(t, types.KindSystem, readEnvelope(t, first).Type)
	online := readEnvelope(t, bobWS)
	require.Equal(t, types.KindPresence, online.Type)
	require.Equal(t, "ONLINE", online.Content)
	require.EqualValues(t, 1, online.SenderID)

	// Second login swaps the session: the old channel is kicked and no
	// presence transition reaches alice's friends.
	second := h.dial(t, "alice")
	require.Equal(t, types.KindSystem, readEnvelope(t, second).Type)
	require.Equal(t, types.KindKick, readEnvelope(t, first).Type)

	// Let the evicted handler finish its cleanup path.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	require.Error(t, err)
	require.Eventually(t, func() bool {
		return h.reg.Count() == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Bob's socket stays silent through the whole swap.
	require.NoError(t, bobWS.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err = bobWS.ReadMessage()
	require.Error(t, err)
	require.True(t, os.IsTimeout(err))
}

func TestOfflineBacklogDeliveredOnConnect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := &types.Message{SenderID: 1, ReceiverID: 2, Content: "while you were out"}
	second := &types.Message{SenderID: 1, ReceiverID: 2, Content: "still out?"}
	require.NoError(t, h.messages.Insert(ctx, first))
	require.NoError(t, h.messages.Insert(ctx, second))

	bobWS := h.dial(t, "bob")
	require.Equal(t, types.KindSystem, readEnvelope(t, bobWS).Type)

	one := readEnvelope(t, bobWS)
	require.Equal(t, "while you were out", one.Content)
	require.Equal(t, "Alice", one.SenderName)
	two := readEnvelope(t, bobWS)
	require.Equal(t, "still out?", two.Content)

	// Flushed messages no longer qualify as backlog.
	require.Eventually(t, func() bool {
		pending, err := h.messages.FindOfflineFor(ctx, 2)
		return err == nil && len(pending) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDisconnectUnregisters(t *testing.T) {
	h := newHarness(t)
	ws := h.dial(t, "alice")
	require.Equal(t, types.KindSystem, readEnvelope(t, ws).Type)
	require.EqualValues(t, 1, h.reg.Count())

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool {
		return h.reg.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
