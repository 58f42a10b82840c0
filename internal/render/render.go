// Package render is the contract between the frame loop and whatever draws
// the picture.
package render

import (
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

type Rgba struct {
	R, G, B, A float32
}

type DrawKind int

const (
	DrawFigure DrawKind = iota
	DrawText
)

// DrawCall is one item queued for the current frame.
type DrawCall struct {
	Kind  DrawKind
	Pos   mgl32.Vec3
	Label string
}

type Renderer interface {
	Clear(color Rgba)
	Submit(call DrawCall)
	Flush()
}

// FrameStats summarises what a frame drew.
type FrameStats struct {
	Clear Rgba
	Calls int
}

// Headless accepts draw calls without a display. It keeps the stats of the
// last flushed frame.
type Headless struct {
	log     *zap.Logger
	frames  uint64
	pending FrameStats
	last    FrameStats
}

func NewHeadless(log *zap.Logger) *Headless {
	if log == nil {
		log = zap.NewNop()
	}
	return &Headless{log: log.Named("render")}
}

func (h *Headless) Clear(color Rgba) {
	h.pending = FrameStats{Clear: color}
}

func (h *Headless) Submit(DrawCall) {
	h.pending.Calls++
}

func (h *Headless) Flush() {
	h.frames++
	h.last = h.pending
	if ce := h.log.Check(zap.DebugLevel, "frame"); ce != nil {
		ce.Write(zap.Uint64("frame", h.frames), zap.Int("calls", h.last.Calls))
	}
}

func (h *Headless) Frames() uint64        { return h.frames }
func (h *Headless) LastFrame() FrameStats { return h.last }
