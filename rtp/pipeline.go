package rtp

import (
	"fmt"
	"net"
	"reflect"
	"sort"
	"time"

	"github.com/pion/rtp"
	"golang.org/x/time/rate"

	"github.com/rebeljah/picastflow/tubes"
)

var packetType = reflect.TypeOf(&rtp.Packet{})

// packetFount is the entry point of a track's send pipeline. Unlike most
// founts it has no upstream of its own: packets arrive by push (a call to
// enqueue from whatever produces them), not by being pulled. A pause from
// downstream is honored by buffering pushed packets instead of delivering
// them, so the pipeline's own "never Receive while paused" contract holds
// even though the producer driving enqueue has no idea a pause is in effect.
type packetFount struct {
	drain  tubes.Drain
	pauser *tubes.Pauser
	queue  []*rtp.Packet
}

func newPacketFount() *packetFount {
	f := &packetFount{}
	f.pauser = tubes.NewPauser(nil, f.onLastResume)
	return f
}

func (f *packetFount) onLastResume() error {
	for len(f.queue) > 0 && f.pauser.Count() == 0 {
		pkt := f.queue[0]
		f.queue = f.queue[1:]
		if err := f.drain.Receive(pkt); err != nil {
			return err
		}
	}
	return nil
}

func (f *packetFount) OutputType() reflect.Type { return packetType }

func (f *packetFount) FlowTo(drain tubes.Drain) (tubes.Fount, error) {
	if f.drain != nil {
		f.drain.FlowingFrom(nil)
	}
	f.drain = drain
	if drain == nil {
		return nil, nil
	}
	return drain.FlowingFrom(f)
}

func (f *packetFount) PauseFlow() (*tubes.Pause, error) {
	return f.pauser.Pause()
}

func (f *packetFount) StopFlow() error {
	if f.drain == nil {
		return nil
	}
	return f.drain.FlowStopped(nil)
}

// enqueue pushes a packet into the pipeline. While the fount is paused
// (PlayStream has not yet run, or PauseStream has run since) the packet is
// buffered and delivered once the outstanding pause is released.
func (f *packetFount) enqueue(pkt *rtp.Packet) error {
	if f.pauser.Count() > 0 || f.drain == nil {
		f.queue = append(f.queue, pkt)
		return nil
	}
	return f.drain.Receive(pkt)
}

// seqBefore reports whether a precedes b in RTP sequence order, accounting
// for the 16-bit wraparound RFC 3550 §5.1 describes.
func seqBefore(a, b uint16) bool {
	return int16(a-b) < 0
}

// JitterBufferTube reorders packets that arrive slightly out of sequence by
// holding a small ring of them and releasing the oldest once the ring is
// full, rather than releasing strictly on arrival order.
type JitterBufferTube struct {
	tubes.BaseTube
	size int
	buf  []*rtp.Packet
}

// NewJitterBufferTube returns a tube that holds up to size packets before
// releasing the earliest-sequenced one downstream.
func NewJitterBufferTube(size int) *JitterBufferTube {
	if size < 1 {
		size = 1
	}
	return &JitterBufferTube{size: size}
}

func (t *JitterBufferTube) InputType() reflect.Type  { return packetType }
func (t *JitterBufferTube) OutputType() reflect.Type { return packetType }

func (t *JitterBufferTube) insert(pkt *rtp.Packet) {
	i := sort.Search(len(t.buf), func(i int) bool {
		return seqBefore(pkt.SequenceNumber, t.buf[i].SequenceNumber)
	})
	t.buf = append(t.buf, nil)
	copy(t.buf[i+1:], t.buf[i:])
	t.buf[i] = pkt
}

func (t *JitterBufferTube) pop() *rtp.Packet {
	pkt := t.buf[0]
	t.buf = t.buf[1:]
	return pkt
}

func (t *JitterBufferTube) Received(item any) ([]any, error) {
	t.insert(item.(*rtp.Packet))

	var out []any
	for len(t.buf) > t.size {
		out = append(out, t.pop())
	}
	return out, nil
}

func (t *JitterBufferTube) Stopped(reason error) ([]any, error) {
	var out []any
	for len(t.buf) > 0 {
		out = append(out, t.pop())
	}
	return out, nil
}

// DefaultPacePPS is the send rate used when PICAST_RTP_PACE_PPS is unset or
// unparsable.
const DefaultPacePPS = 1000

// PacingTube throttles outbound packets to a configured packets/sec budget.
// Each reservation that requires waiting is handed downstream as a
// *tubes.Pending settled by a time.AfterFunc once the wait elapses, rather
// than blocking this goroutine.
type PacingTube struct {
	tubes.BaseTube
	limiter *rate.Limiter
}

// NewPacingTube returns a tube that paces items to pps per second, bursting
// at most one packet at a time.
func NewPacingTube(pps float64) *PacingTube {
	return &PacingTube{limiter: rate.NewLimiter(rate.Limit(pps), 1)}
}

func (t *PacingTube) InputType() reflect.Type  { return packetType }
func (t *PacingTube) OutputType() reflect.Type { return packetType }

func (t *PacingTube) Received(item any) ([]any, error) {
	r := t.limiter.Reserve()
	if !r.OK() {
		return nil, fmt.Errorf("rtp: pacing limiter cannot reserve a slot for packet")
	}

	delay := r.Delay()
	if delay <= 0 {
		return []any{item}, nil
	}

	pending := tubes.NewPending()
	time.AfterFunc(delay, func() { pending.Succeed(item) })
	return []any{pending}, nil
}

// UDPDrain is the terminal stage of a track's send pipeline: it marshals
// each packet and writes it to the client's UDP transport.
type UDPDrain struct {
	conn  *net.UDPConn
	fount tubes.Fount
}

// NewUDPDrain dials raddr and returns a drain that writes marshaled RTP
// packets to it.
func NewUDPDrain(raddr *net.UDPAddr) (*UDPDrain, error) {
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	return &UDPDrain{conn: conn}, nil
}

func (d *UDPDrain) InputType() reflect.Type { return packetType }

func (d *UDPDrain) FlowingFrom(fount tubes.Fount) (tubes.Fount, error) {
	d.fount = fount
	return nil, nil
}

func (d *UDPDrain) Receive(item any) error {
	pkt := item.(*rtp.Packet)

	b, err := pkt.Marshal()
	if err != nil {
		return err
	}

	_, err = d.conn.Write(b)
	return err
}

func (d *UDPDrain) FlowStopped(reason error) error {
	return d.conn.Close()
}
