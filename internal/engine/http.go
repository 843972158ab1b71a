package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"forgecore/internal/engineerr"
	"forgecore/internal/route"
	"forgecore/pkg/logging"
)

// httpServer owns one net/http.Server bound to the dispatcher; it starts
// and stops independently of the engine's own lifecycle so dynamic-mode
// sleep/wake can toggle it without tearing down anything else.
type httpServer struct {
	port       int
	dispatcher *route.Dispatcher
	srv        *http.Server
}

func newHTTPServer(port int, d *route.Dispatcher) *httpServer {
	return &httpServer{port: port, dispatcher: d}
}

func (h *httpServer) start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handle)
	h.srv = &http.Server{Addr: fmt.Sprintf(":%d", h.port), Handler: mux}

	ln, err := net.Listen("tcp", h.srv.Addr)
	if err != nil {
		return err
	}
	go func() {
		if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("engine", err, "HTTP listener on :%d failed", h.port)
		}
	}()
	logging.Info("engine", "HTTP listening on :%d", h.port)
	return nil
}

func (h *httpServer) stop(ctx context.Context) {
	if h.srv == nil {
		return
	}
	if err := h.srv.Shutdown(ctx); err != nil {
		logging.Warn("engine", "HTTP shutdown on :%d did not complete cleanly: %v", h.port, err)
	}
	logging.Info("engine", "HTTP stopped on :%d", h.port)
}

func (h *httpServer) handle(w http.ResponseWriter, r *http.Request) {
	exchange := route.NewHTTPExchange(r.Context(), w, r, nil)
	result, err := h.dispatcher.ResolveHTTP(exchange)
	if err != nil {
		if engineerr.Is(err, engineerr.KindNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if result.Share != nil {
		http.ServeFile(w, r, joinShare(result.Share.Root, result.ShareTail))
	} else if result.Primary != nil {
		exchange = route.NewHTTPExchange(r.Context(), w, r, result.Params)
		result.Primary.HTTPFunc(exchange)
	}

	for _, monitor := range result.Monitors {
		monitor.HTTPFunc(route.NewHTTPExchange(r.Context(), w, r, result.Params))
	}
}

func joinShare(root, tail string) string {
	tail = strings.TrimPrefix(tail, "/")
	if tail == "" {
		return root
	}
	return root + "/" + tail
}
