package input

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/inputevent-go"
)

const DevInputEventTag = "dev-input-event"

// linux/input-event-codes.h
const evKey = 0x01

// EventButtons tracks two keys of evdev device, e.g. gpio-keys overlay.
// Events are consumed by background goroutine, ReadButtons returns latest state.
type EventButtons struct {
	KeyA uint16
	KeyB uint16

	f     io.ReadCloser
	a     uint32
	b     uint32
	errMu sync.Mutex
	err   error
	done  chan struct{}
}

var _ ButtonReader = new(EventButtons)

func OpenEventButtons(device string, keyA, keyB uint16) (*EventButtons, error) {
	f, err := os.Open(device)
	if err != nil {
		return nil, errors.Annotatef(err, "%s open", DevInputEventTag)
	}
	return NewEventButtons(f, keyA, keyB), nil
}

// NewEventButtons starts reading events from r until error or Close.
func NewEventButtons(r io.ReadCloser, keyA, keyB uint16) *EventButtons {
	self := &EventButtons{
		KeyA: keyA,
		KeyB: keyB,
		f:    r,
		done: make(chan struct{}),
	}
	go self.run()
	return self
}

func (self *EventButtons) String() string {
	return fmt.Sprintf("%s(%d,%d)", DevInputEventTag, self.KeyA, self.KeyB)
}

func (self *EventButtons) ReadButtons() (a, b bool, err error) {
	self.errMu.Lock()
	err = self.err
	self.errMu.Unlock()
	if err != nil {
		return false, false, err
	}
	return atomic.LoadUint32(&self.a) != 0, atomic.LoadUint32(&self.b) != 0, nil
}

func (self *EventButtons) Close() error {
	err := self.f.Close()
	<-self.done
	return err
}

// Done is closed when reader goroutine exits.
func (self *EventButtons) Done() <-chan struct{} { return self.done }

func (self *EventButtons) run() {
	defer close(self.done)
	for {
		ie, err := inputevent.ReadOne(self.f)
		if err != nil {
			self.errMu.Lock()
			self.err = errors.Annotatef(err, "%s read", DevInputEventTag)
			self.errMu.Unlock()
			return
		}
		if ie.Type != evKey {
			continue
		}
		var state uint32
		switch inputevent.KeyEventState(ie.Value) {
		case inputevent.KeyStateDown, inputevent.KeyStateHold:
			state = 1
		case inputevent.KeyStateUp:
		default:
			continue
		}
		switch ie.Code {
		case self.KeyA:
			atomic.StoreUint32(&self.a, state)
		case self.KeyB:
			atomic.StoreUint32(&self.b, state)
		}
	}
}
