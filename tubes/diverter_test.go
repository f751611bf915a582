package tubes

import (
	"reflect"
	"strings"
	"testing"
)

// borkSplitTube splits its input on the literal "BORK", discarding it.
type borkSplitTube struct{ BaseTube }

func (borkSplitTube) Received(item any) ([]any, error) {
	s := item.(string)
	idx := strings.Index(s, "BORK")
	if idx < 0 {
		return []any{s}, nil
	}
	return []any{s[:idx], s[idx+len("BORK"):]}, nil
}

func (borkSplitTube) Reassemble(remaining []any) ([]any, error) {
	out := make([]any, 0, len(remaining)+1)
	out = append(out, "(bork was here)")
	out = append(out, remaining...)
	return out, nil
}

// switchedTube prefixes every item it receives.
type switchedTube struct{ BaseTube }

func (switchedTube) Received(item any) ([]any, error) {
	return []any{"switched " + item.(string)}, nil
}

// divertOnFirst is a Drain that, the first time it sees want, triggers a
// diversion to newDownstream before returning.
type divertOnFirst struct {
	*captureDrain
	switcher      *Diverter
	newDownstream Drain
	want          any
	triggered     bool
}

// FlowingFrom accepts its upstream without rebinding the embedded
// captureDrain, whose upstream link belongs to the diverted path.
func (d *divertOnFirst) FlowingFrom(Fount) (Fount, error) { return nil, nil }

func (d *divertOnFirst) Receive(item any) error {
	if err := d.captureDrain.Receive(item); err != nil {
		return err
	}
	if !d.triggered && item == d.want {
		d.triggered = true
		return d.switcher.Divert(d.newDownstream)
	}
	return nil
}

func TestDivertReassemblesBufferedTail(t *testing.T) {
	switcher := NewDiverter(borkSplitTube{})

	capture := &captureDrain{}
	trigger := &divertOnFirst{captureDrain: capture, switcher: switcher, want: "before"}

	wrapperChain, err := Series(switchedTube{}, capture)
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	trigger.newDownstream = wrapperChain

	if _, err := switcher.Fount().FlowTo(trigger); err != nil {
		t.Fatalf("FlowTo: %v", err)
	}

	fount := newMemoryFount([]any{"beforeBORKto switchee"})
	if _, err := fount.FlowTo(switcher); err != nil {
		t.Fatalf("FlowTo: %v", err)
	}

	want := []any{"before", "switched (bork was here)", "switched to switchee"}
	if !reflect.DeepEqual(capture.received, want) {
		t.Fatalf("got %v, want %v", capture.received, want)
	}
}
