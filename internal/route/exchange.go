package route

import (
	"context"
	"net/http"
)

// HTTPExchange is handed to an HTTP endpoint's handler func. It wraps the
// stdlib request/response pair — the HTTP/1.1 wire parser is treated
// itself as an external collaborator, so forgecore builds this thin
// envelope on top of net/http rather than its own parser.
type HTTPExchange struct {
	Request  *http.Request
	Response http.ResponseWriter

	ctx        context.Context
	pathParams map[string]string
}

// NewHTTPExchange constructs an exchange for a single inbound request,
// carrying the per-exchange deadline context.
func NewHTTPExchange(ctx context.Context, w http.ResponseWriter, r *http.Request, pathParams map[string]string) *HTTPExchange {
	return &HTTPExchange{Request: r, Response: w, ctx: ctx, pathParams: pathParams}
}

// Context returns the exchange's deadline-bearing context.
func (e *HTTPExchange) Context() context.Context { return e.ctx }

// Method returns the HTTP method of the inbound request.
func (e *HTTPExchange) Method() string { return e.Request.Method }

// Path returns the request's URL path.
func (e *HTTPExchange) Path() string { return e.Request.URL.Path }

// PathParam returns the named-group value captured by the compiled
// pattern, or "" if name wasn't declared by the matched template.
func (e *HTTPExchange) PathParam(name string) string { return e.pathParams[name] }

// FrameKind distinguishes the three socket entry-point shapes named in
// a socket handler callback: "(SocketExchange, text|binary|frame)".
type FrameKind int

const (
	FrameText FrameKind = iota
	FrameBinary
	FrameRaw
)

// Frame is the boxed argument handed alongside a SocketExchange, modelling
// a "variant enum plus boxed argument tuple" dispatch strategy in place
// of a reflective method-lookup dispatch.
type Frame struct {
	Kind   FrameKind
	Text   string
	Binary []byte
}

// SocketExchange is handed to a WebSocket endpoint's handler func.
type SocketExchange struct {
	Path string

	ctx  context.Context
	conn SocketConn
}

// SocketConn is the narrow transport contract a WebSocket listener must
// satisfy; the concrete implementation (golang.org/x/net/websocket) is an
// external collaborator.
type SocketConn interface {
	WriteText(s string) error
	WriteBinary(b []byte) error
	Close() error
}

// NewSocketExchange constructs a socket exchange for one accepted
// connection; the same exchange accompanies every frame read from it.
func NewSocketExchange(ctx context.Context, path string, conn SocketConn) *SocketExchange {
	return &SocketExchange{Path: path, ctx: ctx, conn: conn}
}

// Context returns the exchange's deadline-bearing context.
func (e *SocketExchange) Context() context.Context { return e.ctx }

// WriteText writes a text frame back to the client.
func (e *SocketExchange) WriteText(s string) error { return e.conn.WriteText(s) }

// WriteBinary writes a binary frame back to the client.
func (e *SocketExchange) WriteBinary(b []byte) error { return e.conn.WriteBinary(b) }

// Close closes the underlying socket connection.
func (e *SocketExchange) Close() error { return e.conn.Close() }
