package websocket

import (
	"context"
	"errors"
	"sync"

	"github.com/Dannidrenovci/myriad-slides/editor"
	"github.com/Dannidrenovci/myriad-slides/handlers/auth"
	"github.com/Dannidrenovci/myriad-slides/notify"
	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// Events sent to clients.
const (
	EventState   = "state"
	EventNotices = "notices"
	EventError   = "error-message"
)

// TokenParser verifies session tokens.
type TokenParser interface {
	ParseJWT(token string) (*auth.AppClaims, error)
}

// SessionOpener opens a presentation's editing session for its owner.
type SessionOpener interface {
	Open(ctx context.Context, userID, presentationID string) (*editor.Session, error)
}

var errMissingArgs = errors.New("presentation id and token are required")

// Collab pushes editor state and notices to the browsers viewing a
// presentation. Each presentation is a socket.io room named by its id.
type Collab struct {
	io       *socketio.Server
	tokens   TokenParser
	sessions SessionOpener
	notices  *notify.Hub

	mu   sync.Mutex
	subs map[socketio.SocketId]map[string]func()
}

func New(tokens TokenParser, sessions SessionOpener, notices *notify.Hub) *Collab {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(1000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	c := &Collab{
		io:       socketio.NewServer(nil, opts),
		tokens:   tokens,
		sessions: sessions,
		notices:  notices,
		subs:     make(map[socketio.SocketId]map[string]func()),
	}
	c.io.On("connection", c.onConnection)
	return c
}

// Server is the underlying socket.io server, to be mounted on /socket.io/.
func (c *Collab) Server() *socketio.Server {
	return c.io
}

// BroadcastState sends a session's new state to every viewer of its
// presentation. It is the registry's change hook.
func (c *Collab) BroadcastState(st editor.State) {
	c.io.To(socketio.Room(st.PresentationID)).Emit(EventState, st)
}

func (c *Collab) onConnection(clients ...any) {
	socket := clients[0].(*socketio.Socket)
	me := socket.Id()
	logrus.WithField("socket", me).Debug("Client connected")

	// join-presentation(presentationId, token)
	socket.On("join-presentation", func(datas ...any) {
		id, token := stringArg(datas, 0), stringArg(datas, 1)
		s, err := c.join(context.Background(), id, token)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"socket":          me,
				"presentation_id": id,
			}).Warn("Rejected join")
			socket.Emit(EventError, err.Error())
			return
		}
		socket.Join(socketio.Room(id))
		socket.Emit(EventState, s.State())
		if c.notices != nil {
			c.track(me, id, c.notices.Subscribe(id, func(active []notify.Notice) {
				socket.Emit(EventNotices, active)
			}))
		}
		logrus.WithFields(logrus.Fields{
			"socket":          me,
			"presentation_id": id,
		}).Info("Client joined presentation")
	})

	socket.On("leave-presentation", func(datas ...any) {
		id := stringArg(datas, 0)
		socket.Leave(socketio.Room(id))
		c.releaseTopic(me, id)
	})

	socket.On("dismiss-notice", func(datas ...any) {
		id := stringArg(datas, 0)
		if !c.dismiss(me, id) {
			logrus.WithFields(logrus.Fields{
				"socket":    me,
				"notice_id": id,
			}).Debug("Ignored dismiss of a notice outside the joined presentations")
		}
	})

	socket.On("disconnect", func(datas ...any) {
		c.release(me)
		socket.RemoveAllListeners("")
		logrus.WithField("socket", me).Debug("Client disconnected")
	})
}

// join checks the token and opens the presentation for its owner.
func (c *Collab) join(ctx context.Context, presentationID, token string) (*editor.Session, error) {
	if presentationID == "" || token == "" {
		return nil, errMissingArgs
	}
	claims, err := c.tokens.ParseJWT(token)
	if err != nil {
		return nil, errors.New("invalid token")
	}
	return c.sessions.Open(ctx, claims.Subject, presentationID)
}

// track remembers a notice subscription of a socket; a repeated join of
// the same presentation replaces the previous one.
func (c *Collab) track(id socketio.SocketId, topic string, unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	topics, ok := c.subs[id]
	if !ok {
		topics = make(map[string]func())
		c.subs[id] = topics
	}
	if prev, ok := topics[topic]; ok {
		prev()
	}
	topics[topic] = unsubscribe
}

// dismiss removes a notice of one of the presentations the socket joined.
func (c *Collab) dismiss(id socketio.SocketId, noticeID string) bool {
	if c.notices == nil || noticeID == "" {
		return false
	}
	c.mu.Lock()
	topics := make([]string, 0, len(c.subs[id]))
	for topic := range c.subs[id] {
		topics = append(topics, topic)
	}
	c.mu.Unlock()

	for _, topic := range topics {
		if c.notices.DismissIn(topic, noticeID) {
			return true
		}
	}
	return false
}

func (c *Collab) releaseTopic(id socketio.SocketId, topic string) {
	c.mu.Lock()
	unsubscribe, ok := c.subs[id][topic]
	delete(c.subs[id], topic)
	c.mu.Unlock()
	if ok {
		unsubscribe()
	}
}

func (c *Collab) release(id socketio.SocketId) {
	c.mu.Lock()
	topics := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	for _, unsubscribe := range topics {
		unsubscribe()
	}
}

// Close disconnects every client.
func (c *Collab) Close() {
	c.io.Close(nil)
}

func stringArg(datas []any, i int) string {
	if i >= len(datas) {
		return ""
	}
	s, _ := datas[i].(string)
	return s
}
