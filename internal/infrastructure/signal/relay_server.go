package signal

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// RelayServer is the signaling broker: every websocket connection claims one
// identity (`?peer_id=`), and frames are routed between identities by their
// To field. The relay never inspects payloads; it only stamps From, answers
// identity collisions and reports peer departure.
type RelayServer struct {
	peers map[string]*relayPeer
	mu    sync.RWMutex

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration

	// Per-IP connection rate limiting. Nil when disabled.
	limiters   map[string]*rate.Limiter
	limiterMu  sync.Mutex
	connPerMin int

	logger *zap.SugaredLogger
}

type relayPeer struct {
	id   string
	conn *websocket.Conn

	// writeMu serializes writes; gorilla connections allow one writer.
	writeMu sync.Mutex

	// contacts are the identities this peer exchanged frames with; they get
	// a peer-gone when this peer disconnects.
	contacts   map[string]struct{}
	contactsMu sync.Mutex
}

type RelayConfig struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	// ConnsPerMinute caps new connections per client IP. Zero disables.
	ConnsPerMinute int
}

func NewRelayServer(cfg RelayConfig, logger *zap.SugaredLogger) *RelayServer {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 60 * time.Second
	}
	s := &RelayServer{
		peers:        make(map[string]*relayPeer),
		pingInterval: cfg.PingInterval,
		pongTimeout:  cfg.PongTimeout,
		writeTimeout: 10 * time.Second,
		connPerMin:   cfg.ConnsPerMinute,
		logger:       logger,
	}
	if cfg.ConnsPerMinute > 0 {
		s.limiters = make(map[string]*rate.Limiter)
	}
	return s
}

// PeerCount reports the number of registered identities.
func (s *RelayServer) PeerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

func (s *RelayServer) allowConnection(remoteAddr string) bool {
	if s.limiters == nil {
		return true
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	limiter, ok := s.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(s.connPerMin)/60.0), s.connPerMin)
		s.limiters[host] = limiter
	}
	return limiter.Allow()
}

// HandleWebSocket upgrades the request and runs the peer's read loop until
// disconnect. The identity is claimed from the peer_id query parameter; a
// collision is answered with an identity-taken error frame, never by kicking
// the existing holder.
func (s *RelayServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.allowConnection(r.RemoteAddr) {
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	peerID := r.URL.Query().Get("peer_id")
	if peerID == "" {
		s.writeTo(conn, &sync.Mutex{}, Message{Type: TypeError, Code: CodeBadFrame})
		return
	}

	peer := &relayPeer{
		id:       peerID,
		conn:     conn,
		contacts: make(map[string]struct{}),
	}

	s.mu.Lock()
	if _, taken := s.peers[peerID]; taken {
		s.mu.Unlock()
		s.writeTo(conn, &peer.writeMu, Message{Type: TypeError, Code: CodeIdentityTaken})
		s.logger.Infow("identity collision rejected", "peer_id", peerID)
		return
	}
	s.peers[peerID] = peer
	s.mu.Unlock()

	s.logger.Infow("peer registered", "peer_id", peerID)
	s.send(peer, Message{Type: TypeRegistered, To: peerID})

	conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return nil
	})

	done := make(chan struct{})
	go s.pingLoop(peer, done)

	s.readLoop(peer)
	close(done)

	s.unregister(peer)
}

func (s *RelayServer) pingLoop(peer *relayPeer, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			peer.writeMu.Lock()
			peer.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			err := peer.conn.WriteMessage(websocket.PingMessage, nil)
			peer.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *RelayServer) readLoop(peer *relayPeer) {
	for {
		var msg Message
		if err := peer.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("peer read failed", "peer_id", peer.id, "error", err)
			}
			return
		}
		peer.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))

		if msg.Type == TypeClose {
			return
		}
		s.route(peer, msg)
	}
}

// route forwards one frame to its destination, stamping the sender identity.
func (s *RelayServer) route(from *relayPeer, msg Message) {
	switch msg.Type {
	case TypeConnect, TypeCall, TypeAnswer, TypeICE, TypeBye:
	default:
		s.send(from, Message{Type: TypeError, Code: CodeBadFrame, To: from.id})
		return
	}
	if msg.To == "" {
		s.send(from, Message{Type: TypeError, Code: CodeBadFrame, To: from.id})
		return
	}

	s.mu.RLock()
	target, ok := s.peers[msg.To]
	s.mu.RUnlock()
	if !ok {
		s.send(from, Message{Type: TypeError, Code: CodeUnknownPeer, To: from.id})
		return
	}

	from.addContact(target.id)
	target.addContact(from.id)

	msg.From = from.id
	s.send(target, msg)
}

func (s *RelayServer) unregister(peer *relayPeer) {
	s.mu.Lock()
	if current, ok := s.peers[peer.id]; !ok || current != peer {
		s.mu.Unlock()
		return
	}
	delete(s.peers, peer.id)
	s.mu.Unlock()

	// Everyone this peer talked to learns about the departure.
	peer.contactsMu.Lock()
	contacts := make([]string, 0, len(peer.contacts))
	for id := range peer.contacts {
		contacts = append(contacts, id)
	}
	peer.contactsMu.Unlock()

	for _, id := range contacts {
		s.mu.RLock()
		other, ok := s.peers[id]
		s.mu.RUnlock()
		if ok {
			s.send(other, Message{Type: TypePeerGone, From: peer.id, To: id})
		}
	}

	s.logger.Infow("peer unregistered", "peer_id", peer.id, "notified", len(contacts))
}

func (s *RelayServer) send(peer *relayPeer, msg Message) {
	s.writeTo(peer.conn, &peer.writeMu, msg)
}

func (s *RelayServer) writeTo(conn *websocket.Conn, mu *sync.Mutex, msg Message) {
	mu.Lock()
	defer mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debugw("frame write failed", "type", msg.Type, "to", msg.To, "error", err)
	}
}

func (p *relayPeer) addContact(id string) {
	p.contactsMu.Lock()
	p.contacts[id] = struct{}{}
	p.contactsMu.Unlock()
}
