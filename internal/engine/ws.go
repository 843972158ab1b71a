package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/net/websocket"

	"forgecore/internal/route"
	"forgecore/pkg/logging"
)

// wsServer owns one net/http.Server serving golang.org/x/net/websocket
// connections, matched and dispatched through the same route dispatcher
// used for HTTP.
type wsServer struct {
	port       int
	dispatcher *route.Dispatcher
	srv        *http.Server
}

func newWSServer(port int, d *route.Dispatcher) *wsServer {
	return &wsServer{port: port, dispatcher: d}
}

func (s *wsServer) start() error {
	mux := http.NewServeMux()
	mux.Handle("/", websocket.Handler(s.handle))
	s.srv = &http.Server{Addr: fmt.Sprintf(":%d", s.port), Handler: mux}

	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("engine", err, "WebSocket listener on :%d failed", s.port)
		}
	}()
	logging.Info("engine", "WebSocket listening on :%d", s.port)
	return nil
}

func (s *wsServer) stop(ctx context.Context) {
	if s.srv == nil {
		return
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		logging.Warn("engine", "WebSocket shutdown on :%d did not complete cleanly: %v", s.port, err)
	}
	logging.Info("engine", "WebSocket stopped on :%d", s.port)
}

// connAdapter satisfies route.SocketConn over a raw websocket.Conn.
type connAdapter struct {
	conn *websocket.Conn
}

func (c connAdapter) WriteText(text string) error { return websocket.Message.Send(c.conn, text) }
func (c connAdapter) WriteBinary(b []byte) error   { return websocket.Message.Send(c.conn, b) }
func (c connAdapter) Close() error                 { return c.conn.Close() }

// handle runs for the lifetime of one accepted connection: it resolves
// the path once, then reads frames until the client disconnects,
// dispatching each to the matched endpoint's SocketFunc.
func (s *wsServer) handle(conn *websocket.Conn) {
	defer conn.Close()

	path := conn.Request().URL.Path
	exchange := route.NewSocketExchange(conn.Request().Context(), path, connAdapter{conn: conn})
	result, err := s.dispatcher.ResolveSocket(exchange)
	if err != nil {
		return
	}
	if result.Primary == nil {
		return
	}

	for {
		var text string
		if err := websocket.Message.Receive(conn, &text); err != nil {
			return
		}
		frame := route.Frame{Kind: route.FrameText, Text: text}
		result.Primary.SocketFunc(exchange, frame)
		for _, monitor := range result.Monitors {
			monitor.SocketFunc(exchange, frame)
		}
	}
}
