package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/internal/infrastructure/relay"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeRelay accepts one websocket session: it consumes the hello, sends
// the welcome snapshot and then delegates inbound envelopes.
func fakeRelay(t *testing.T, welcome relay.WelcomePayload, onEnvelope func(conn *websocket.Conn, env *relay.Envelope)) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		var hello relay.Envelope
		require.NoError(t, conn.ReadJSON(&hello))
		require.Equal(t, relay.TypeHello, hello.Type)

		require.NoError(t, conn.WriteJSON(relay.NewEnvelope(relay.TypeWelcome, "", welcome)))

		for {
			var env relay.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			if onEnvelope != nil {
				onEnvelope(conn, &env)
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testConfig(srv *httptest.Server) Config {
	return Config{
		URL:      wsURL(srv),
		Token:    "test-token",
		UserID:   "user_1",
		Username: "stargazer",
	}
}

func TestConnect_SyncsWelcomeSnapshot(t *testing.T) {
	welcome := relay.WelcomePayload{
		SessionID: "session_abc",
		Users: []*domain.OnlineUser{
			{ID: "user_1", Username: "stargazer", ConnectedAt: time.Now().Add(-time.Minute)},
			{ID: "user_2", Username: "moonchild", ConnectedAt: time.Now()},
		},
		RecentActions: []domain.RecentAction{
			{ID: "act_1", UserID: "user_2", Action: domain.ActionCastSigil},
		},
	}
	srv := fakeRelay(t, welcome, nil)
	defer srv.Close()

	c := New(testConfig(srv), Handlers{})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	assert.Equal(t, domain.SessionID("session_abc"), c.SessionID())

	users := c.Users()
	require.Len(t, users, 2)
	assert.Equal(t, domain.UserID("user_1"), users[0].ID, "mirror is ordered by connection time")

	require.Len(t, c.RecentActions(), 1)
	assert.Equal(t, domain.ActionCastSigil, c.RecentActions()[0].Action)
}

func TestTriggerZodiacAction_ResolvesOnAck(t *testing.T) {
	srv := fakeRelay(t, relay.WelcomePayload{SessionID: "s"}, func(conn *websocket.Conn, env *relay.Envelope) {
		if env.Type != relay.TypeZodiacAction {
			return
		}
		ack := relay.NewEnvelope(relay.TypeActionAck, env.Sender, relay.ActionAckPayload{
			Action: domain.RecentAction{ID: "act_9", UserID: env.Sender, Action: domain.ActionSendBlessing},
		})
		conn.WriteJSON(ack)
	})
	defer srv.Close()

	c := New(testConfig(srv), Handlers{})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	action, err := c.TriggerZodiacAction(context.Background(), domain.ActionSendBlessing)
	require.NoError(t, err)
	assert.Equal(t, "act_9", action.ID)
}

func TestTriggerZodiacAction_LocalCooldownRejectsSecondCall(t *testing.T) {
	srv := fakeRelay(t, relay.WelcomePayload{SessionID: "s"}, func(conn *websocket.Conn, env *relay.Envelope) {
		if env.Type != relay.TypeZodiacAction {
			return
		}
		conn.WriteJSON(relay.NewEnvelope(relay.TypeActionAck, env.Sender, relay.ActionAckPayload{
			Action: domain.RecentAction{ID: "act_1", Action: domain.ActionIgniteComet},
		}))
	})
	defer srv.Close()

	cfg := testConfig(srv)
	cfg.ActionCooldown = time.Hour
	c := New(cfg, Handlers{})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	_, err := c.TriggerZodiacAction(context.Background(), domain.ActionIgniteComet)
	require.NoError(t, err)

	_, err = c.TriggerZodiacAction(context.Background(), domain.ActionIgniteComet)
	assert.ErrorIs(t, err, domain.ErrActionThrottled, "second trigger inside the cooldown fails without a round trip")
}

func TestTriggerZodiacAction_ServerThrottleError(t *testing.T) {
	srv := fakeRelay(t, relay.WelcomePayload{SessionID: "s"}, func(conn *websocket.Conn, env *relay.Envelope) {
		if env.Type != relay.TypeZodiacAction {
			return
		}
		conn.WriteJSON(relay.NewEnvelope(relay.TypeError, "", relay.ErrorPayload{
			Code:    "THROTTLED",
			Message: "cooldown active",
		}))
	})
	defer srv.Close()

	c := New(testConfig(srv), Handlers{})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	_, err := c.TriggerZodiacAction(context.Background(), domain.ActionAlignStars)
	assert.ErrorIs(t, err, domain.ErrActionThrottled)
}

func TestTriggerZodiacAction_UnknownActionFailsLocally(t *testing.T) {
	srv := fakeRelay(t, relay.WelcomePayload{SessionID: "s"}, nil)
	defer srv.Close()

	c := New(testConfig(srv), Handlers{})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	_, err := c.TriggerZodiacAction(context.Background(), domain.ActionType("summon_dragon"))
	assert.ErrorIs(t, err, domain.ErrUnknownAction)
}

func TestTriggerZodiacAction_UnrelatedErrorDoesNotFailPendingTrigger(t *testing.T) {
	errs := make(chan relay.ErrorPayload, 1)
	srv := fakeRelay(t, relay.WelcomePayload{SessionID: "s"}, func(conn *websocket.Conn, env *relay.Envelope) {
		if env.Type != relay.TypeZodiacAction {
			return
		}
		// A foreign-avatar rejection arriving while the trigger is in
		// flight must not be taken as its outcome.
		conn.WriteJSON(relay.NewEnvelope(relay.TypeError, "", relay.ErrorPayload{
			Code:    "FORBIDDEN",
			Message: "not your avatar",
		}))
		conn.WriteJSON(relay.NewEnvelope(relay.TypeActionAck, env.Sender, relay.ActionAckPayload{
			Action: domain.RecentAction{ID: "act_3", Action: domain.ActionAlignStars},
		}))
	})
	defer srv.Close()

	c := New(testConfig(srv), Handlers{
		OnError: func(p relay.ErrorPayload) { errs <- p },
	})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	action, err := c.TriggerZodiacAction(context.Background(), domain.ActionAlignStars)
	require.NoError(t, err)
	assert.Equal(t, "act_3", action.ID)

	select {
	case p := <-errs:
		assert.Equal(t, "FORBIDDEN", p.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("unrelated error was not handed to OnError")
	}
}

func TestUsers_SnapshotIsolatedFromLaterUpdates(t *testing.T) {
	avatarSeen := make(chan struct{}, 1)

	var serverConn *websocket.Conn
	ready := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConn = conn

		var hello relay.Envelope
		require.NoError(t, conn.ReadJSON(&hello))
		require.NoError(t, conn.WriteJSON(relay.NewEnvelope(relay.TypeWelcome, "", relay.WelcomePayload{
			SessionID: "s",
			Users: []*domain.OnlineUser{
				{ID: "user_2", Username: "moonchild", Avatar: domain.Avatar{Color: "#ffffff"}},
			},
		})))
		close(ready)

		for {
			var env relay.Envelope
			if conn.ReadJSON(&env) != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := New(testConfig(srv), Handlers{
		OnAvatarState: func(domain.UserID, domain.Avatar) { avatarSeen <- struct{}{} },
	})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	<-ready
	snapshot := c.Users()
	require.Len(t, snapshot, 1)

	require.NoError(t, serverConn.WriteJSON(relay.NewEnvelope(relay.TypeAvatarUpdate, "user_2", relay.AvatarStatePayload{
		UserID: "user_2",
		Avatar: domain.Avatar{Color: "#ff00ff"},
	})))

	select {
	case <-avatarSeen:
	case <-time.After(2 * time.Second):
		t.Fatal("avatar_update was not dispatched")
	}

	assert.Equal(t, "#ffffff", snapshot[0].Avatar.Color, "earlier snapshot keeps the state it was taken with")
	assert.Equal(t, "#ff00ff", c.Users()[0].Avatar.Color)
}

func TestDispatch_PresenceUpdatesMirror(t *testing.T) {
	joined := make(chan *domain.OnlineUser, 1)
	left := make(chan domain.UserID, 1)

	var serverConn *websocket.Conn
	ready := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConn = conn

		var hello relay.Envelope
		require.NoError(t, conn.ReadJSON(&hello))
		require.NoError(t, conn.WriteJSON(relay.NewEnvelope(relay.TypeWelcome, "", relay.WelcomePayload{SessionID: "s"})))
		close(ready)

		for {
			var env relay.Envelope
			if conn.ReadJSON(&env) != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := New(testConfig(srv), Handlers{
		OnUserConnected:    func(u *domain.OnlineUser) { joined <- u },
		OnUserDisconnected: func(id domain.UserID) { left <- id },
	})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	<-ready
	newUser := &domain.OnlineUser{ID: "user_7", Username: "comet", ConnectedAt: time.Now()}
	require.NoError(t, serverConn.WriteJSON(relay.NewEnvelope(relay.TypeUserConnected, "user_7", relay.PresencePayload{User: newUser, ID: "user_7"})))

	select {
	case u := <-joined:
		assert.Equal(t, domain.UserID("user_7"), u.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("user_connected was not dispatched")
	}
	assert.Len(t, c.Users(), 1)

	require.NoError(t, serverConn.WriteJSON(relay.NewEnvelope(relay.TypeUserDisconnected, "user_7", relay.PresencePayload{ID: "user_7"})))

	select {
	case id := <-left:
		assert.Equal(t, domain.UserID("user_7"), id)
	case <-time.After(2 * time.Second):
		t.Fatal("user_disconnected was not dispatched")
	}
	assert.Empty(t, c.Users())
}

func TestEngagementMirror_RollbackOnFailedCommit(t *testing.T) {
	mirror := NewEngagementMirror("post_1", domain.Engagement{Likes: 10})
	commitErr := errors.New("http 500")

	err := mirror.Like(context.Background(), func(ctx context.Context) error { return commitErr })

	assert.ErrorIs(t, err, commitErr)
	assert.Equal(t, int64(10), mirror.Get().Likes, "failed commit must restore prior counters")
}

func TestEngagementMirror_ReactAndReconcile(t *testing.T) {
	mirror := NewEngagementMirror("post_1", domain.Engagement{})

	require.NoError(t, mirror.React(context.Background(), "stardust", func(ctx context.Context) error { return nil }))
	assert.Equal(t, int64(1), mirror.Get().Reactions["stardust"])

	mirror.Reconcile(domain.Engagement{Likes: 4, Reactions: map[string]int64{"stardust": 7}})
	got := mirror.Get()
	assert.Equal(t, int64(4), got.Likes)
	assert.Equal(t, int64(7), got.Reactions["stardust"])
}
