package websocket

import (
	"context"
	"errors"
	"testing"

	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/Dannidrenovci/myriad-slides/editor"
	"github.com/Dannidrenovci/myriad-slides/handlers/auth"
	"github.com/Dannidrenovci/myriad-slides/notify"
	"github.com/golang-jwt/jwt/v5"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

type mockTokens map[string]string

func (m mockTokens) ParseJWT(token string) (*auth.AppClaims, error) {
	sub, ok := m[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &auth.AppClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: sub}}, nil
}

type mockOpener struct {
	owner string
	calls int
}

func (m *mockOpener) Open(ctx context.Context, userID, presentationID string) (*editor.Session, error) {
	m.calls++
	if userID != m.owner {
		return nil, core.ErrNotFound
	}
	return editor.NewSession(presentationID, []core.Slide{{ID: "A"}}, nil, nil, editor.Options{}), nil
}

func TestJoin(t *testing.T) {
	opener := &mockOpener{owner: "alice"}
	c := &Collab{tokens: mockTokens{"t-alice": "alice", "t-bob": "bob"}, sessions: opener}
	ctx := context.Background()

	s, err := c.join(ctx, "deck", "t-alice")
	if err != nil {
		t.Fatalf("join() error = %v", err)
	}
	if s.PresentationID() != "deck" || len(s.Slides()) != 1 {
		t.Errorf("joined session = %+v", s.State())
	}

	if _, err := c.join(ctx, "deck", "t-bob"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("join(other user) error = %v, want ErrNotFound", err)
	}
	if _, err := c.join(ctx, "deck", "forged"); err == nil {
		t.Error("join(bad token) should fail")
	}
	if _, err := c.join(ctx, "", "t-alice"); !errors.Is(err, errMissingArgs) {
		t.Errorf("join(no id) error = %v", err)
	}
	if opener.calls != 2 {
		t.Errorf("Open called %d times, want 2", opener.calls)
	}
}

func TestSubscriptions(t *testing.T) {
	hub := notify.NewHub(0)
	defer hub.Close()
	c := &Collab{notices: hub, subs: make(map[socketio.SocketId]map[string]func())}

	var first, second, other int
	sock := socketio.SocketId("sock-1")
	c.track(sock, "deck", hub.Subscribe("deck", func([]notify.Notice) { first++ }))
	// A second join of the same presentation replaces the first subscription.
	c.track(sock, "deck", hub.Subscribe("deck", func([]notify.Notice) { second++ }))
	c.track(sock, "other", hub.Subscribe("other", func([]notify.Notice) { other++ }))

	hub.Publish("deck", notify.Error, "Error saving slide", "")
	if first != 1 || second != 2 {
		t.Errorf("deliveries first=%d second=%d, want 1 and 2", first, second)
	}

	c.releaseTopic(sock, "other")
	hub.Publish("other", notify.Info, "hello", "")
	if other != 1 {
		t.Errorf("released topic still delivered: %d", other)
	}

	c.release(sock)
	hub.Publish("deck", notify.Warning, "Cannot delete the last slide", "")
	if second != 2 {
		t.Errorf("released socket still delivered: %d", second)
	}
	if len(c.subs) != 0 {
		t.Errorf("subscriptions left: %v", c.subs)
	}
}

func TestDismiss_OnlyJoinedPresentations(t *testing.T) {
	hub := notify.NewHub(0)
	defer hub.Close()
	c := &Collab{notices: hub, subs: make(map[socketio.SocketId]map[string]func())}

	alice, bob := socketio.SocketId("alice"), socketio.SocketId("bob")
	c.track(alice, "alice-deck", hub.Subscribe("alice-deck", func([]notify.Notice) {}))
	c.track(bob, "bob-deck", hub.Subscribe("bob-deck", func([]notify.Notice) {}))
	defer c.release(alice)
	defer c.release(bob)

	n := hub.Publish("alice-deck", notify.Error, "Error saving slide", "")
	if c.dismiss(bob, n.ID) {
		t.Error("a socket dismissed a notice of a presentation it never joined")
	}
	if got := hub.Active("alice-deck"); len(got) != 1 {
		t.Fatalf("notices = %+v, want the notice kept", got)
	}
	if c.dismiss(socketio.SocketId("stranger"), n.ID) {
		t.Error("a socket without subscriptions dismissed a notice")
	}
	if !c.dismiss(alice, n.ID) {
		t.Error("owner could not dismiss its notice")
	}
	if got := hub.Active("alice-deck"); len(got) != 0 {
		t.Errorf("notices = %+v after dismiss, want none", got)
	}
}

func TestStringArg(t *testing.T) {
	datas := []any{"deck", 42}
	if stringArg(datas, 0) != "deck" || stringArg(datas, 1) != "" || stringArg(datas, 5) != "" {
		t.Error("stringArg() mismatch")
	}
}
