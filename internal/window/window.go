// Package window is the host surface the frame loop runs against: an event
// pump, cursor capture and buffer presentation.
package window

import (
	"errors"
	"iter"

	"github.com/DoyleJ11/voxel-client/internal/render"
)

var ErrPresent = errors.New("present frame")

type Window interface {
	// FetchEvents yields the events pending at this frame. The sequence is
	// finite; call again next frame.
	FetchEvents() iter.Seq[Event]
	GrabCursor(grab bool)
	IsCursorGrabbed() bool
	// SwapBuffers presents the frame. Failures wrap ErrPresent.
	SwapBuffers() error
	Renderer() render.Renderer
}
