package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/avalon/broadcast"
	"github.com/wfunc/avalon/logger"
	"github.com/wfunc/avalon/monitor"
	"github.com/wfunc/avalon/network"
	"github.com/wfunc/avalon/room"
	"github.com/wfunc/avalon/session"
)

// HeartbeatInterval is how often clients are expected to send something.
const HeartbeatInterval = 30 * time.Second

// Dispatcher receives every chat message for game handling.
type Dispatcher interface {
	Dispatch(ev room.ChatEvent)
}

// GameServer 是聊天网关：维护会话、转发频道消息并把消息交给房间
type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	broadcaster    broadcast.Broadcaster
	dispatcher     Dispatcher
	monitor        *monitor.Monitor
	httpServer     *http.Server
	shutdownChan   chan struct{}
}

func NewGameServer(addr string, sessions *session.Manager, broadcaster broadcast.Broadcaster, dispatcher Dispatcher, mon *monitor.Monitor) *GameServer {
	return &GameServer{
		addr:           addr,
		sessionManager: sessions,
		broadcaster:    broadcaster,
		dispatcher:     dispatcher,
		monitor:        mon,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
}

func (s *GameServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start blocks until the server is shut down.
func (s *GameServer) Start() error {
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Handler()}
	logger.Log.Infof("Chat gateway listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *GameServer) Shutdown(ctx context.Context) error {
	close(s.shutdownChan)
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(HeartbeatInterval)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncConnectedClients()

	logger.Log.Infow("connection opened", "remote", wsConn.RemoteAddr(), "session", sess.GetID())

	defer func() {
		logger.Log.Infow("connection closed", "remote", wsConn.RemoteAddr(), "session", sess.GetID(), "user", sess.GetUserID())
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecConnectedClients()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			sess.LastActive = time.Now()
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.Send(network.MsgTypeHeartbeat, nil)
	case network.MsgTypeHello:
		s.handleHello(sess, packet)
	case network.MsgTypeJoinChannel, network.MsgTypeLeaveChannel:
		s.handleChannel(sess, packet)
	case network.MsgTypeChatMessage:
		s.handleChat(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
		s.sendError(sess, "unknown message type")
	}
}

func (s *GameServer) handleHello(sess *session.Session, packet *network.Packet) {
	var hello network.Hello
	if err := network.Decode(packet, &hello); err != nil || hello.UserID == "" {
		s.sendError(sess, "hello requires a user id")
		return
	}
	if hello.Name == "" {
		hello.Name = hello.UserID
	}
	sess.Identify(hello.UserID, hello.Name)
	logger.Log.Infow("session identified", "session", sess.GetID(), "user", hello.UserID, "name", hello.Name)

	s.reply(sess, network.MsgTypeWelcome, network.Welcome{
		SessionID:     sess.GetID(),
		DirectChannel: session.DirectChannel(hello.UserID),
	})
}

func (s *GameServer) handleChannel(sess *session.Session, packet *network.Packet) {
	if !sess.Identified() {
		s.sendError(sess, "say hello first")
		return
	}
	var req network.ChannelRequest
	if err := network.Decode(packet, &req); err != nil || req.Channel == "" {
		s.sendError(sess, "channel required")
		return
	}
	if strings.HasPrefix(req.Channel, session.DirectPrefix) {
		s.sendError(sess, "direct channels cannot be joined")
		return
	}

	if packet.MsgID == network.MsgTypeJoinChannel {
		sess.Join(req.Channel)
	} else {
		sess.Leave(req.Channel)
	}
	s.reply(sess, packet.MsgID, req)
}

func (s *GameServer) handleChat(sess *session.Session, packet *network.Packet) {
	if !sess.Identified() {
		s.sendError(sess, "say hello first")
		return
	}
	var msg network.ChatMessage
	if err := network.Decode(packet, &msg); err != nil || msg.Text == "" {
		s.sendError(sess, "invalid chat message")
		return
	}

	userID := sess.GetUserID()
	direct := msg.Channel == session.DirectChannel(userID)
	if !direct && !sess.InChannel(msg.Channel) {
		s.sendError(sess, "join the channel first")
		return
	}

	msg.UserID = userID
	msg.Name = sess.GetName()
	if !direct {
		if err := s.broadcaster.ToChannel(msg.Channel, network.MsgTypeChatMessage, msg); err != nil {
			logger.Log.Warnw("chat relay failed", "channel", msg.Channel, "error", err)
		}
	}

	s.monitor.IncMessagesReceived()
	s.dispatcher.Dispatch(room.ChatEvent{
		UserID:   userID,
		Name:     msg.Name,
		Channel:  msg.Channel,
		Text:     msg.Text,
		Received: time.Now(),
	})
}

func (s *GameServer) reply(sess *session.Session, msgID uint16, v interface{}) {
	data, err := network.Encode(v)
	if err != nil {
		logger.Log.Errorw("encode reply failed", "msg", msgID, "error", err)
		return
	}
	if err := sess.Send(msgID, data); err != nil {
		logger.Log.Warnw("reply failed", "session", sess.GetID(), "error", err)
	}
}

func (s *GameServer) sendError(sess *session.Session, message string) {
	s.reply(sess, network.MsgTypeError, network.ErrorMessage{Message: message})
}
