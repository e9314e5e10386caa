package wl

import "deedles.dev/wlshim/wire"

const CallbackInterface = "wl_callback"

const callbackEvDone uint16 = 0

var callbackEvents = []string{"done"}

// Callback is a one-shot notification object. The compositor fires it
// once and then deletes it.
type Callback struct {
	wire.ObjectID
	Listener CallbackListener

	client *Client
}

type CallbackListener interface {
	Done(data uint32)
}

// Then registers f to run when the callback fires.
func (c *Callback) Then(f func(uint32)) {
	c.Listener = callbackFunc(f)
}

type callbackFunc func(uint32)

func (f callbackFunc) Done(data uint32) { f(data) }

func (c *Callback) Interface() string {
	return CallbackInterface
}

func (c *Callback) MethodName(op uint16) string {
	return eventName(callbackEvents, op)
}

func (c *Callback) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case callbackEvDone:
		data := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if c.Listener != nil {
			c.Listener.Done(data)
		}
		return nil
	}

	return wire.UnknownOpError{Interface: CallbackInterface, Type: "event", Op: msg.Op()}
}
