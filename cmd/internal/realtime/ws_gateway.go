// Package realtime exposes the chat over WebSocket. Each WebSocket connection becomes an ordinary
// chat session whose byte stream travels in text messages.
package realtime

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"linechat/cmd/internal/chat"

	"github.com/coder/websocket"
)

// Subprotocol is the WebSocket subprotocol clients must offer.
const Subprotocol = "linechat.v1"

// Attacher starts a chat session on a connection. *chat.Server implements it.
type Attacher interface {
	Attach(conn net.Conn) (*chat.Session, error)
}

// GatewayConfig holds the origin policy.
type GatewayConfig struct {
	// AllowedOrigins lists full origins ("http://localhost:3000") or bare hosts ("localhost").
	// "*" allows any origin.
	AllowedOrigins []string

	// OriginRequired rejects upgrades that carry no Origin header. Non-browser clients usually omit it.
	OriginRequired bool

	// InsecureSkipVerify disables websocket.Accept's own origin check. Dev only.
	InsecureSkipVerify bool
}

// WSGateway upgrades HTTP requests and attaches the resulting connection to the chat server.
type WSGateway struct {
	log  *slog.Logger
	chat Attacher

	originRequired bool
	allowedOrigins []string
	insecure       bool

	// Derived for websocket.Accept, which authorizes cross-origin requests only via host patterns.
	originPatterns []string
}

// NewWSGateway constructs a gateway in front of srv.
func NewWSGateway(log *slog.Logger, srv Attacher, cfg GatewayConfig) *WSGateway {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &WSGateway{
		log:            log,
		chat:           srv,
		originRequired: cfg.OriginRequired,
		allowedOrigins: cfg.AllowedOrigins,
		insecure:       cfg.InsecureSkipVerify,
		originPatterns: deriveOriginPatterns(cfg.AllowedOrigins),
	}
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades the request and blocks until the chat session has been reclaimed.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{Subprotocol},
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.insecure,
	})
	if err != nil {
		g.log.Warn("ws.accept.fail", "err", err, "remote", r.RemoteAddr)
		return
	}

	if sp := conn.Subprotocol(); sp != Subprotocol {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", Subprotocol, "remote", r.RemoteAddr)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	// The session owns nc from here; the reclaimer closes it with a normal closure.
	nc := websocket.NetConn(r.Context(), conn, websocket.MessageText)

	sess, err := g.chat.Attach(nc)
	if err != nil {
		if errors.Is(err, chat.ErrServerClosed) {
			g.log.Info("ws.reject.shutdown", "remote", r.RemoteAddr)
		} else {
			g.log.Error("ws.attach.fail", "err", err, "remote", r.RemoteAddr)
		}
		return
	}

	g.log.Info("ws.session.start", "session_id", sess.ID(), "remote", sess.RemoteAddr())
	<-sess.Done()
	g.log.Info("ws.session.end", "session_id", sess.ID(), "name", sess.Name())
}

// ---- origin policy ----

func (g *WSGateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.originRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.allowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range g.allowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			return nil
		}
		if strings.EqualFold(origin, a) {
			return nil
		}
		// host match ignores scheme and port
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = strings.TrimSpace(u.Host)
		if s == "" {
			return ""
		}
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

// deriveOriginPatterns turns the allowlist into host patterns for websocket.Accept, so both origin
// checks agree. A "*" entry becomes the "*" pattern.
func deriveOriginPatterns(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		if strings.TrimSpace(a) == "*" {
			seen["*"] = struct{}{}
			continue
		}
		if h := originHostOnly(a); h != "" {
			// websocket.Accept matches against host:port
			seen[h] = struct{}{}
			seen[h+":*"] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}
