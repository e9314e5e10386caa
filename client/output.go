package wl

import "deedles.dev/wlshim/wire"

const (
	OutputInterface = "wl_output"
	OutputVersion   = 3
)

const (
	outputRelease uint16 = iota
)

const (
	outputEvGeometry uint16 = iota
	outputEvMode
	outputEvDone
	outputEvScale
)

var outputEvents = []string{
	"geometry",
	"mode",
	"done",
	"scale",
}

type OutputSubpixel uint32

const (
	OutputSubpixelUnknown OutputSubpixel = iota
	OutputSubpixelNone
	OutputSubpixelHorizontalRGB
	OutputSubpixelHorizontalBGR
	OutputSubpixelVerticalRGB
	OutputSubpixelVerticalBGR
)

type OutputTransform uint32

const (
	OutputTransformNormal OutputTransform = iota
	OutputTransform90
	OutputTransform180
	OutputTransform270
	OutputTransformFlipped
	OutputTransformFlipped90
	OutputTransformFlipped180
	OutputTransformFlipped270
)

type OutputMode uint32

const (
	OutputModeCurrent   OutputMode = 0x1
	OutputModePreferred OutputMode = 0x2
)

// Output is a compositor output, such as a monitor. Its properties
// arrive as a burst of events terminated by a done event.
type Output struct {
	wire.ObjectID

	Listener OutputListener

	client *Client
}

type OutputListener interface {
	Geometry(x, y, physicalWidth, physicalHeight int32, subpixel OutputSubpixel, maker, model string, transform OutputTransform)
	Mode(flags OutputMode, width, height, refresh int32)

	// Done is sent after a group of property events to mark the end
	// of an atomic update.
	Done()

	Scale(factor int32)
}

// BindOutput binds the named global as a wl_output.
func BindOutput(c *Client, r *Registry, name, version uint32) *Output {
	output := Output{client: c}
	c.Add(&output)
	r.Bind(name, wire.NewID{
		Interface: OutputInterface,
		Version:   min(version, OutputVersion),
		ID:        output.ID(),
	})
	return &output
}

func (output *Output) Interface() string {
	return OutputInterface
}

func (output *Output) MethodName(op uint16) string {
	return eventName(outputEvents, op)
}

// Release tells the compositor that the client no longer cares about
// this output. Requires version 3.
func (output *Output) Release() {
	output.client.Enqueue(wire.NewMessage(output, "release", outputRelease))
	output.client.Delete(output.ID())
}

func (output *Output) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case outputEvGeometry:
		x := msg.ReadInt()
		y := msg.ReadInt()
		pw := msg.ReadInt()
		ph := msg.ReadInt()
		subpixel := msg.ReadUint()
		maker := msg.ReadString()
		model := msg.ReadString()
		transform := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if output.Listener != nil {
			output.Listener.Geometry(x, y, pw, ph, OutputSubpixel(subpixel), maker, model, OutputTransform(transform))
		}
		return nil

	case outputEvMode:
		flags := msg.ReadUint()
		width := msg.ReadInt()
		height := msg.ReadInt()
		refresh := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		if output.Listener != nil {
			output.Listener.Mode(OutputMode(flags), width, height, refresh)
		}
		return nil

	case outputEvDone:
		if output.Listener != nil {
			output.Listener.Done()
		}
		return nil

	case outputEvScale:
		factor := msg.ReadInt()
		if err := msg.Err(); err != nil {
			return err
		}
		if output.Listener != nil {
			output.Listener.Scale(factor)
		}
		return nil

	default:
		return wire.UnknownOpError{Interface: OutputInterface, Type: "event", Op: msg.Op()}
	}
}
