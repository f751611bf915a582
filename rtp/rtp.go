package rtp

import (
	"fmt"
	"log"
	"maps"
	"net"
	"os"
	"strconv"
	"sync"

	pionrtp "github.com/pion/rtp"
	"github.com/rebeljah/picastflow/media"
	"github.com/rebeljah/picastflow/rtsp"
	"github.com/rebeljah/picastflow/tubes"
)

const jitterBufferSize = 8

func pacePPS() float64 {
	if v := os.Getenv("PICAST_RTP_PACE_PPS"); v != "" {
		if pps, err := strconv.ParseFloat(v, 64); err == nil && pps > 0 {
			return pps
		}
	}
	return DefaultPacePPS
}

type trackStream struct {
	id            rtsp.TrackStreamUID
	transportInfo rtsp.TransportInfo
	structureInfo media.StructureInfo
	trackInfo     media.TrackInfo
	raddr         *net.UDPAddr

	entry     *packetFount
	chain     tubes.Drain
	drain     *UDPDrain
	playPause *tubes.Pause
}

func (s *trackStream) teardown() {
	if s.playPause != nil {
		s.playPause.Unpause()
		s.playPause = nil
	}
	s.entry.StopFlow()
}

type streams map[rtsp.TrackStreamUID]*trackStream

// implements rtsp.RTPServer
type Server struct {
	streams        streams
	interruptCause chan error
	interruptOnce  sync.Once
}

func NewServer() *Server {
	return &Server{
		streams:        make(streams),
		interruptCause: make(chan error, 1),
	}
}

func (s *Server) Interrupt(err error) {
	s.interruptOnce.Do(func() {
		log.Printf("Interrupting RTP server: %v\n", err)

		for v := range maps.Values(s.streams) {
			s.teardownStream(v)
		}

		s.interruptCause <- err
	})
}

func (s *Server) SetupStream(args rtsp.SetupArguments) (rtsp.TransportInfo, error) {
	log.Printf(
		"setting up RTP stream to: %v with stream id: %v for track: (role=%v, id=%v)",
		args.RAddr, args.StreamID, args.TrackInfo.Role, args.TrackInfo.ID,
	)

	// Method SETUP not currently supported for a Ready / Playing track
	// currently, SETUP only applies to an RTSP stream in the `Init` state
	if _, ok := s.streams[args.StreamID]; ok {
		return rtsp.TransportInfo{}, fmt.Errorf("stream already exists with ID: %s", args.StreamID)
	}

	clientUDPAddr, err := net.ResolveUDPAddr("udp", args.RAddr.String())
	if err != nil {
		return rtsp.TransportInfo{}, err
	}

	selectedTransport := args.AcceptableTransports[0] // TODO: HACK! just selects most preferred without validation

	udpDrain, err := NewUDPDrain(clientUDPAddr)
	if err != nil {
		return rtsp.TransportInfo{}, err
	}

	chain, err := tubes.Series(
		NewJitterBufferTube(jitterBufferSize),
		NewPacingTube(pacePPS()),
		udpDrain,
	)
	if err != nil {
		return rtsp.TransportInfo{}, err
	}

	entry := newPacketFount()
	if _, err := entry.FlowTo(chain); err != nil {
		return rtsp.TransportInfo{}, err
	}

	// a track is SETUP into Ready, not Playing: hold a pause until PLAY.
	playPause, err := entry.PauseFlow()
	if err != nil {
		return rtsp.TransportInfo{}, err
	}

	s.streams[args.StreamID] = &trackStream{
		id:            args.StreamID,
		structureInfo: args.StructureInfo,
		trackInfo:     args.TrackInfo,
		transportInfo: selectedTransport,
		raddr:         clientUDPAddr,
		entry:         entry,
		chain:         chain,
		drain:         udpDrain,
		playPause:     playPause,
	}

	return selectedTransport, nil
}

func (s *Server) teardownStream(stream *trackStream) {
	if stream == nil {
		return
	}

	stream.teardown()
	delete(s.streams, stream.id)

	log.Printf("RTP stream with id: %v to: %v torn down\n", stream.id, stream.raddr)
}

// close the underlying connection and cleans up the stream state
//   - if the stream id is not found, this is a no-op.
func (s *Server) TeardownStream(streamID rtsp.TrackStreamUID) {
	stream, ok := s.streams[streamID]

	if !ok {
		return
	}

	s.teardownStream(stream)
}

// begin streaming: releases the pause held since SETUP so packets already
// queued (and any enqueued from here on) flow to the client.
func (s *Server) PlayStream(streamID rtsp.TrackStreamUID) {
	stream, ok := s.streams[streamID]
	if !ok {
		return
	}

	if stream.playPause == nil {
		return
	}

	if err := stream.playPause.Unpause(); err != nil {
		log.Printf("RTP stream %v: unpause on play failed: %v", streamID, err)
	}
	stream.playPause = nil
}

// PauseStream re-acquires a pause on the stream's send pipeline, buffering
// further packets until the next PlayStream.
func (s *Server) PauseStream(streamID rtsp.TrackStreamUID) {
	stream, ok := s.streams[streamID]
	if !ok {
		return
	}

	if stream.playPause != nil {
		return
	}

	pause, err := stream.entry.PauseFlow()
	if err != nil {
		log.Printf("RTP stream %v: pause failed: %v", streamID, err)
		return
	}
	stream.playPause = pause
}

// SendPacket pushes a single RTP packet into the named stream's send
// pipeline. Packets pushed while the stream is not currently playing are
// buffered by the pipeline's entry fount and flushed on the next PlayStream.
func (s *Server) SendPacket(streamID rtsp.TrackStreamUID, pkt *pionrtp.Packet) error {
	stream, ok := s.streams[streamID]
	if !ok {
		return fmt.Errorf("no such RTP stream: %v", streamID)
	}
	return stream.entry.enqueue(pkt)
}

func (s *Server) IsServing(streamUID rtsp.TrackStreamUID) bool {
	_, ok := s.streams[streamUID]
	return ok
}

// StreamStatus reports whether streamID's send pipeline is currently paused
// and how many packets are buffered in its entry fount, for CLI/flow
// introspection. ok is false if no such stream exists.
func (s *Server) StreamStatus(streamID rtsp.TrackStreamUID) (paused bool, buffered int, ok bool) {
	stream, exists := s.streams[streamID]
	if !exists {
		return false, 0, false
	}
	return stream.playPause != nil, len(stream.entry.queue), true
}

func (s *Server) InterruptCause() <-chan error {
	return s.interruptCause
}
