package window

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/voxel-client/internal/render"
)

const consoleBacklog = 64

// Console is a window driven by text commands, one per line:
//
//	down <key> | up <key>   key edge, key named through Bindings
//	look <dx> <dy>          cursor motion
//	zoom <d>                scroll
//	resize <w> <h>
//	close                   close the window
//
// Any other line is delivered as a text event. End of input closes the
// window. Output written through Output is presented on SwapBuffers.
type Console struct {
	log      *zap.Logger
	bindings Bindings
	lines    chan string
	closed   bool
	grabbed  bool

	out      *bufio.Writer
	renderer *render.Headless
}

func NewConsole(in io.Reader, out io.Writer, bindings Bindings, log *zap.Logger) *Console {
	if log == nil {
		log = zap.NewNop()
	}
	if bindings == nil {
		bindings = DefaultBindings()
	}
	c := &Console{
		log:      log.Named("window"),
		bindings: bindings,
		lines:    make(chan string, consoleBacklog),
		out:      bufio.NewWriter(out),
		renderer: render.NewHeadless(log),
	}
	go c.scan(in)
	return c
}

func (c *Console) scan(in io.Reader) {
	defer close(c.lines)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		c.lines <- sc.Text()
	}
	if err := sc.Err(); err != nil {
		c.log.Warn("console input failed", zap.Error(err))
	}
}

// FetchEvents yields the lines typed since the previous frame.
func (c *Console) FetchEvents() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for {
			if c.closed {
				return
			}
			select {
			case line, ok := <-c.lines:
				if !ok {
					c.closed = true
					yield(Close())
					return
				}
				ev, ok := c.parse(line)
				if !ok {
					continue
				}
				if !yield(ev) {
					return
				}
			default:
				return
			}
		}
	}
}

func (c *Console) parse(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, false
	}
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "close":
		return Close(), true
	case "down", "up":
		if len(fields) != 2 {
			break
		}
		k, ok := c.bindings[strings.ToLower(fields[1])]
		if !ok {
			c.log.Debug("unbound key", zap.String("key", fields[1]))
			return Event{}, false
		}
		if strings.EqualFold(fields[0], "down") {
			return KeyDown(k), true
		}
		return KeyUp(k), true
	case "look":
		if dx, dy, ok := twoFloats(fields); ok {
			return CursorMove(dx, dy), true
		}
	case "resize":
		if w, h, ok := twoFloats(fields); ok {
			return Resize(w, h), true
		}
	case "zoom":
		if len(fields) == 2 {
			if d, err := strconv.ParseFloat(fields[1], 32); err == nil {
				return Zoom(float32(d)), true
			}
		}
	}
	return Text(line), true
}

func twoFloats(fields []string) (float32, float32, bool) {
	if len(fields) != 3 {
		return 0, 0, false
	}
	a, err := strconv.ParseFloat(fields[1], 32)
	if err != nil {
		return 0, 0, false
	}
	b, err := strconv.ParseFloat(fields[2], 32)
	if err != nil {
		return 0, 0, false
	}
	return float32(a), float32(b), true
}

func (c *Console) GrabCursor(grab bool)  { c.grabbed = grab }
func (c *Console) IsCursorGrabbed() bool { return c.grabbed }

// Output buffers console text until the next SwapBuffers.
func (c *Console) Output() io.Writer { return c.out }

func (c *Console) SwapBuffers() error {
	if err := c.out.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrPresent, err)
	}
	return nil
}

func (c *Console) Renderer() render.Renderer { return c.renderer }

// Frames reports how many frames were rendered.
func (c *Console) Frames() uint64 { return c.renderer.Frames() }
