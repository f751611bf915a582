package rtsp

// note this package can likely most be mostly replaced with net.http with some hacks, this
// is just for fun.

import (
	"errors"
	"io"
	"log"
	"net"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/rebeljah/picastflow/media"
	"github.com/rebeljah/picastflow/tubes"
)

type handler interface {
	serveRTSP(*requestContext)
	withMiddleware(handler) handler
}

type serveMux map[RTSPMethod]handler

func newDefaultMux() serveMux {
	return make(serveMux)
}

func (m serveMux) handle(method RTSPMethod, handler handler) {
	m[method] = handler
}

func (m serveMux) serveRTSP(ctx *requestContext) {
	handler, ok := m[ctx.request.Method]

	if !ok {
		ctx.response.writeHeader(MethodNotAllowed)
		return
	}

	handler.serveRTSP(ctx)
}

func (m serveMux) withMiddleware(mdl handler) handler {
	return newMiddleWare(mdl, m)
}

// HandlerFunc type is an adapter to allow the use of
// ordinary functions as RTSP handlers. If f is a function
// with the appropriate signature, HandlerFunc(f) is a
// Handler that calls f.
type HandlerFunc func(*requestContext)

// serveRTSP calls f(ctx) to implement Handler.
func (f HandlerFunc) serveRTSP(ctx *requestContext) {
	f(ctx)
}

func (f HandlerFunc) withMiddleware(mdl handler) handler {
	return newMiddleWare(mdl, f)
}

type Middleware struct {
	handler     handler
	nextHandler handler
}

func newMiddleWare(handler handler, nextHandler handler) Middleware {
	return Middleware{handler: handler, nextHandler: nextHandler}
}

func (m Middleware) serveRTSP(ctx *requestContext) {
	m.handler.serveRTSP(ctx)

	if ctx.response.StatusCode == OK {
		m.nextHandler.serveRTSP(ctx)
	}
}

func (m Middleware) withMiddleware(mdl handler) handler {
	return newMiddleWare(mdl, m)
}

func handleMirrorCSeqHeader(ctx *requestContext) {
	cseq, ok := ctx.request.Headers.GetLine(HeaderNameCSeq)
	if !ok {
		ctx.response.writeHeader(BadRequest)
		return
	}

	_, err := strconv.Atoi(string(cseq.ValueNoError()))

	if err != nil {
		ctx.response.writeHeader(BadRequest)
		return
	}

	ctx.response.Headers.PutGenericLine("CSeq", cseq.ValueNoError())
}

func handleSettingFinalHeaders(ctx *requestContext) {
	// content-length
	if n := len(ctx.response.Body); n == 0 {
		ctx.response.Headers.Delete(HeaderNameContentLength)
	} else {
		ctx.response.Headers.PutGenericLine(
			HeaderNameContentLength, strconv.Itoa(n),
		)
	}

	ctx.response.Headers.PutGenericLine(
		HeaderNameConnection, "close",
	)
}

type RTSPServer struct {
	sessions      sessionManager
	handler       handler
	rtpServer     RTPServer
	mediaManifest media.Manifest
	listener      net.Listener
	interruptOnce sync.Once
}

func NewRTSPServer(rtpServer RTPServer, manifest media.Manifest) *RTSPServer {
	s := &RTSPServer{
		sessions:      newSessionManager(),
		mediaManifest: manifest,
		rtpServer:     rtpServer,
	}

	mux := newDefaultMux()
	mux.handle(DESCRIBE, HandlerFunc(s.handleDescribe))
	mux.handle(SETUP, HandlerFunc(s.handleSetup))
	mux.handle(TEARDOWN, HandlerFunc(s.handleTeardown))
	mux.handle(PLAY, HandlerFunc(s.handlePlay))
	mux.handle(PAUSE, HandlerFunc(s.handlePause))
	mux.handle(OPTIONS, HandlerFunc(s.handleOptions))

	s.handler = HandlerFunc(handleSettingFinalHeaders)
	s.handler = mux
	s.handler = s.handler.withMiddleware(HandlerFunc(s.handleSettingContextSession))
	s.handler = s.handler.withMiddleware(HandlerFunc(handleMirrorCSeqHeader))

	return s
}

func (s *RTSPServer) ListenAndServe(addr string) error {
	log.Println("starting RTSP server on " + addr)

	ls, err := net.Listen("tcp", addr)

	if err != nil {
		return err
	}

	s.listener = ls
	defer s.listener.Close()

	for {
		conn, err := s.listener.Accept()

		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			log.Printf("RTSP listener accept error: %v", err)

			continue
		}

		go s.serveConnection(conn)
	}
}

func (s *RTSPServer) Interrupt(err error) {
	s.interruptOnce.Do(func() {
		log.Printf("Interrupting RTSP server: %v\n", err)

		s.listener.Close()

		log.Println("RTSP server shutdown complete")
	})
}

func (s *RTSPServer) handleSetup(ctx *requestContext) {
	path := strings.Trim(ctx.request.URL.Path, "/ ")
	segments := strings.Split(path, "/")

	// media/{uid}
	if len(segments) != 2 {
		ctx.response.writeHeader(NotFound)
		return
	}

	if segments[0] != "media" {
		ctx.response.writeHeader(MethodNotAllowed)
		return
	}

	mediaUID := media.UID(segments[1])

	metadata, ok := s.mediaManifest.Get(mediaUID)

	if !ok {
		ctx.response.writeHeader(NotFound)
		return
	}

	ctx.session.Stream = NewStreamState()

	if ok && ctx.session.Stream.StateNow != Init {
		ctx.response.writeHeader(MethodNotValidInThisState)
		return
	}

	line, ok := ctx.request.Headers.GetLine(HeaderNameTransport)

	if !ok {
		ctx.response.writeHeader(BadRequest)
		return
	}

	var transportHeader TransportHeaderLine
	if transportHeader, ok = line.(TransportHeaderLine); !ok {
		ctx.response.writeHeader(InternalServerError)
		return
	}

	if len(transportHeader.Transports) == 0 {
		ctx.response.writeHeader(BadRequest)
		return
	}

	var trackInfo media.TrackInfo
	for _, t := range metadata.Structure.Tracks {
		trackInfo = t
		break
	}

	args := newSetupArguments(
		TrackStreamUID(ctx.session.Stream.StreamUID),
		ctx.raddr,
		metadata.Structure,
		trackInfo,
		transportHeader.Transports,
	)

	transport, err := s.rtpServer.SetupStream(args)

	if err != nil {
		ctx.response.writeHeader(InternalServerError)
		return
	}

	ctx.response.Headers.PutGenericLine(
		HeaderNameSession, string(ctx.session.UID),
	)

	ctx.response.Headers.PutLine(
		NewTransportHeaderLine([]TransportInfo{transport}),
	)

	ctx.session.Stream.OnSetup()
}

func (s *RTSPServer) handleTeardown(ctx *requestContext) {
	// validate media/{id}

	/////////////////// TODO section is repeated in HandleSetup (extract?)
	path := strings.Trim(ctx.request.URL.Path, "/ ")
	segments := strings.Split(path, "/")

	if n := len(segments); n != 2 {
		ctx.response.writeHeader(NotFound)
		return
	}

	if segments[0] != "media" {
		ctx.response.writeHeader(MethodNotAllowed)
		return
	}
	///////////////////////

	st := ctx.session.Stream

	if st == nil {
		ctx.response.writeHeader(NotFound)
		return
	}

	// make sure stream can actually be torn down in current state
	if st.StateNow.After(TEARDOWN) == ErrorState {
		ctx.response.writeHeader(MethodNotValidInThisState)
		return
	}

	s.rtpServer.TeardownStream(TrackStreamUID(st.StreamUID))
	st.OnTeardown()

	s.sessions.delete(ctx.session.UID)
}

func (*RTSPServer) handlePlay(ctx *requestContext) {}

func (*RTSPServer) handlePause(ctx *requestContext) {}

func (*RTSPServer) handleOptions(ctx *requestContext) {}

func (s *RTSPServer) handleSettingContextSession(ctx *requestContext) {
	sessionHeader, ok := ctx.request.Headers.GetLine(HeaderNameSession)

	sessionNotRequired := ctx.request.Method == SETUP ||
		ctx.request.Method == OPTIONS ||
		ctx.request.Method == DESCRIBE

	// context not required for SETUP, OPTIONS, DESCRIBE
	if !ok {
		if !sessionNotRequired {
			ctx.response.writeHeader(SessionNotFound)
		}
		return
	}

	// SETUP not valid for an active streaming session
	if ctx.request.Method == SETUP {
		ctx.response.writeHeader(MethodNotValidInThisState)
		return
	}

	sessionUID := SessionUID(sessionHeader.ValueNoError())
	ctx.session, ok = s.sessions.get(sessionUID)

	if !ok {
		ctx.response.writeHeader(SessionNotFound)
		return
	}
}

// requestHandlerDrain is the terminal stage of a connection's textual
// framing chain: it runs each parsed Request through the server's handler
// and writes the response straight back to the connection.
type requestHandlerDrain struct {
	server *RTSPServer
	conn   net.Conn
	raddr  net.Addr
}

func (d *requestHandlerDrain) InputType() reflect.Type { return nil }

func (d *requestHandlerDrain) FlowingFrom(tubes.Fount) (tubes.Fount, error) { return nil, nil }

func (d *requestHandlerDrain) Receive(item any) error {
	req := item.(Request)

	log.Printf("handling RTSP request from: %v (%v %v)", d.raddr, req.Method, req.URL)

	rctx := newRequestContext(d.raddr, &req, newResponse(OK), nil)
	d.server.handler.serveRTSP(rctx)

	resp, err := rctx.response.marshal()
	if err != nil {
		resp, _ = newResponse(InternalServerError).marshal()
		log.Printf("error while marshalling RTSP response to: %v", d.raddr)
	}

	log.Printf("writing RTSP response to: %v", d.raddr)
	if _, err := d.conn.Write(resp); err != nil {
		log.Printf("RTSP write error to %v: %v\n", d.raddr, err)
		return err
	}

	log.Printf("wrote RTSP response to: %v (%v %v)", d.raddr, rctx.response.StatusCode, rctx.response.StatusText)
	return nil
}

func (d *requestHandlerDrain) FlowStopped(error) error { return nil }

// connectionFramer drives one connection's byte stream through whichever
// half of the textual/interleaved split is currently active, switching
// between them with tubes.Diverter when RFC 2326 §10.12 interleaved frames
// appear mid-connection and again when textual requests resume.
type connectionFramer struct {
	textTube            *RequestFramingTube
	textDiverter        *tubes.Diverter
	interleavedTube     *InterleavedFrameTube
	interleavedDiverter *tubes.Diverter
	active              tubes.Drain
	interleaved         bool
}

func newConnectionFramer(server *RTSPServer, conn net.Conn) *connectionFramer {
	raddr := conn.RemoteAddr()

	textTube := NewRequestFramingTube()
	textDiverter := tubes.NewDiverter(textTube)
	if _, err := textDiverter.Fount().FlowTo(&requestHandlerDrain{server: server, conn: conn, raddr: raddr}); err != nil {
		log.Printf("rtsp: failed wiring request framing for %v: %v", raddr, err)
	}

	interleavedTube := NewInterleavedFrameTube()
	interleavedDiverter := tubes.NewDiverter(interleavedTube)
	if _, err := interleavedDiverter.Fount().FlowTo(frameLogDrain{}); err != nil {
		log.Printf("rtsp: failed wiring interleaved framing for %v: %v", raddr, err)
	}

	return &connectionFramer{
		textTube:            textTube,
		textDiverter:        textDiverter,
		interleavedTube:     interleavedTube,
		interleavedDiverter: interleavedDiverter,
		active:              textDiverter,
	}
}

// feed hands one chunk of bytes read off the connection to whichever
// framing path is currently active, switching paths (and replaying the
// unconsumed tail onto the new path) whenever a switch marker turns up.
func (f *connectionFramer) feed(raddr net.Addr, chunk []byte) error {
	if err := f.active.Receive(chunk); err != nil {
		return err
	}

	if !f.interleaved {
		if !f.textTube.AwaitingInterleave() {
			return nil
		}

		tail := f.textTube.TakeTail()
		log.Printf("rtsp: %v switching to interleaved binary framing", raddr)
		if err := f.textDiverter.Divert(f.interleavedDiverter); err != nil {
			return err
		}
		f.active = f.interleavedDiverter
		f.interleaved = true
		if len(tail) > 0 {
			return f.feed(raddr, tail)
		}
		return nil
	}

	if !f.interleavedTube.AwaitingTextual() {
		return nil
	}

	tail := f.interleavedTube.TakeTail()
	log.Printf("rtsp: %v switching back to textual framing", raddr)
	if err := f.interleavedDiverter.Divert(f.textDiverter); err != nil {
		return err
	}
	f.active = f.textDiverter
	f.interleaved = false
	if len(tail) > 0 {
		return f.feed(raddr, tail)
	}
	return nil
}

func (s *RTSPServer) serveConnection(conn net.Conn) {
	raddr := conn.RemoteAddr()
	log.Printf("serving RTSP to: %v", raddr)
	defer conn.Close()

	framer := newConnectionFramer(s, conn)

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			if ferr := framer.feed(raddr, chunk); ferr != nil {
				log.Printf("RTSP framing error from %v: %v\n", raddr, ferr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("RTSP read error from %v: %v\n", raddr, err)
			}
			return
		}
	}
}
