package editor

import (
	"fmt"
	"io"
	"log/slog"
)

// State is the controller's gesture state.
type State int

const (
	Idle State = iota
	Dragging
	Pinching
	SliderAdjusting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Pinching:
		return "pinching"
	case SliderAdjusting:
		return "slider"
	default:
		return "unknown"
	}
}

// Event is a controller input. Coordinates are preview logical units.
type Event interface{ event() }

type (
	PointerDown  struct{ X, Y float64 }
	PointerMove  struct{ X, Y float64 }
	PointerUp    struct{}
	PointerLeave struct{}
	PinchStart   struct{}
	// PinchChange carries the pinch factor relative to the gesture start.
	PinchChange struct{ Factor float64 }
	PinchEnd    struct{}
	SliderStart struct{}
	// SliderChange carries the absolute photo scale.
	SliderChange struct{ Scale float64 }
	SliderEnd    struct{}
)

func (PointerDown) event()  {}
func (PointerMove) event()  {}
func (PointerUp) event()    {}
func (PointerLeave) event() {}
func (PinchStart) event()   {}
func (PinchChange) event()  {}
func (PinchEnd) event()     {}
func (SliderStart) event()  {}
func (SliderChange) event() {}
func (SliderEnd) event()    {}

// Listener is called after each state change.
type Listener func(prev, next State)

// Controller maps input events onto a Session. Each accepted event repaints
// the preview exactly once; ignored events do not repaint. With coalescing
// on, moves and pinch changes only mark the preview dirty and Frame paints
// it at most once per display frame.
type Controller struct {
	session   *Session
	state     State
	lastX     float64
	lastY     float64
	pinchBase float64
	photoGen  uint64
	coalesce  bool
	dirty     bool
	listeners []Listener
	logger    *slog.Logger
}

// NewController returns an idle controller for s.
func NewController(s *Session, coalesce bool, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{session: s, photoGen: s.PhotoGeneration(), coalesce: coalesce, logger: logger}
}

func (c *Controller) State() State           { return c.state }
func (c *Controller) AddListener(l Listener) { c.listeners = append(c.listeners, l) }
func (c *Controller) Session() *Session      { return c.session }

// Handle applies one event. It reports whether the event was accepted.
func (c *Controller) Handle(ev Event) (bool, error) {
	c.syncPhoto()
	switch e := ev.(type) {
	case PointerDown:
		if c.state != Idle || !c.inside(e.X, e.Y) || !c.session.HasPhoto() {
			return false, nil
		}
		c.lastX, c.lastY = e.X, e.Y
		c.transition(Dragging)
		return true, c.paint()

	case PointerMove:
		if c.state != Dragging {
			return false, nil
		}
		dx, dy := e.X-c.lastX, e.Y-c.lastY
		c.lastX, c.lastY = e.X, e.Y
		if err := c.session.PanBy(dx, dy); err != nil {
			return false, err
		}
		return true, c.paintOrDefer()

	case PointerUp, PointerLeave:
		if c.state != Dragging {
			return false, nil
		}
		c.transition(Idle)
		return true, c.paint()

	case PinchStart:
		if (c.state != Idle && c.state != Dragging) || !c.session.HasPhoto() {
			return false, nil
		}
		c.pinchBase = c.session.Position().Scale
		c.transition(Pinching)
		return true, c.paint()

	case PinchChange:
		if c.state != Pinching {
			return false, nil
		}
		if err := c.session.SetScale(c.pinchBase * e.Factor); err != nil {
			return false, err
		}
		return true, c.paintOrDefer()

	case PinchEnd:
		if c.state != Pinching {
			return false, nil
		}
		c.transition(Idle)
		return true, c.paint()

	case SliderStart:
		if c.state != Idle || !c.session.HasPhoto() {
			return false, nil
		}
		c.transition(SliderAdjusting)
		return true, c.paint()

	case SliderChange:
		// A bare change, such as a keyboard step, is accepted while idle.
		if c.state != Idle && c.state != SliderAdjusting {
			return false, nil
		}
		if err := c.session.SetScale(e.Scale); err != nil {
			return false, err
		}
		return true, c.paint()

	case SliderEnd:
		if c.state != SliderAdjusting {
			return false, nil
		}
		c.transition(Idle)
		return true, c.paint()
	}
	return false, fmt.Errorf("unknown event %T", ev)
}

// Frame paints a deferred change, if any. Call it once per display frame
// when coalescing.
func (c *Controller) Frame() error {
	if !c.dirty {
		return nil
	}
	return c.paint()
}

// Reset drops any gesture in progress. Handle calls it when the session's
// photo was replaced since the gesture began.
func (c *Controller) Reset() {
	c.dirty = false
	c.transition(Idle)
}

func (c *Controller) syncPhoto() {
	gen := c.session.PhotoGeneration()
	if gen == c.photoGen {
		return
	}
	c.photoGen = gen
	if c.state != Idle {
		c.logger.Debug("gesture dropped after photo change", "state", c.state.String())
		c.Reset()
	}
}

func (c *Controller) inside(x, y float64) bool {
	w, h := c.session.Preview().LogicalSize()
	return x >= 0 && y >= 0 && x < float64(w) && y < float64(h)
}

func (c *Controller) paint() error {
	c.dirty = false
	return c.session.Repaint()
}

func (c *Controller) paintOrDefer() error {
	if c.coalesce {
		c.dirty = true
		return nil
	}
	return c.paint()
}

func (c *Controller) transition(next State) {
	prev := c.state
	if prev == next {
		return
	}
	c.state = next
	c.logger.Debug("editor state transition", "from", prev.String(), "to", next.String())
	for _, l := range c.listeners {
		l(prev, next)
	}
}
