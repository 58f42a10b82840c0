// Package scene keeps the visible state of the world in step with the
// session and turns it into draw calls.
package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/DoyleJ11/voxel-client/internal/client"
	"github.com/DoyleJ11/voxel-client/internal/render"
	"github.com/DoyleJ11/voxel-client/internal/window"
)

const (
	cursorSensitivity = 0.01
	zoomSensitivity   = 1.0
)

type Scene struct {
	camera *Camera
}

func New(aspect float32) *Scene {
	return &Scene{camera: NewCamera(aspect)}
}

func (s *Scene) Camera() *Camera { return s.camera }

// HandleInputEvent interprets events the session did not claim. It reports
// whether the event meant anything to the scene.
func (s *Scene) HandleInputEvent(ev window.Event) bool {
	switch ev.Kind {
	case window.EventCursorMove:
		d := ev.Delta.Mul(cursorSensitivity)
		s.camera.RotateBy(mgl32.Vec3{d[0], d[1], 0})
		return true
	case window.EventZoom:
		s.camera.ZoomBy(ev.Zoom * zoomSensitivity)
		return true
	case window.EventResize:
		if ev.Delta[1] > 0 {
			s.camera.SetAspectRatio(ev.Delta[0] / ev.Delta[1])
		}
		return true
	default:
		return false
	}
}

// Maintain points the camera at the player's entity.
func (s *Scene) Maintain(_ render.Renderer, view client.View) {
	if p, ok := view.Player(); ok {
		s.camera.SetFocus(p.Pos)
	}
}

// Render submits one figure per entity.
func (s *Scene) Render(r render.Renderer, view client.View) {
	for _, e := range view.Entities {
		r.Submit(render.DrawCall{Kind: render.DrawFigure, Pos: e.Pos, Label: e.Name})
	}
}

// Orientation is the camera's (yaw, pitch, roll).
func (s *Scene) Orientation() mgl32.Vec3 { return s.camera.Orientation() }
