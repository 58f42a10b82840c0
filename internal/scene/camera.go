package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const twoPi = 2 * math.Pi

// Camera orbits a focus point. Orientation is (yaw, pitch, roll) in radians.
type Camera struct {
	focus  mgl32.Vec3
	ori    mgl32.Vec3
	dist   float32
	fov    float32
	aspect float32
}

func NewCamera(aspect float32) *Camera {
	return &Camera{
		focus:  mgl32.Vec3{0, 0, 10},
		dist:   10,
		fov:    1.3,
		aspect: aspect,
	}
}

// RotateBy wraps yaw and roll into (-2π, 2π) and clamps pitch to ±π/2.
func (c *Camera) RotateBy(delta mgl32.Vec3) {
	c.ori[0] = float32(math.Mod(float64(c.ori[0]+delta[0]), twoPi))
	c.ori[1] = mgl32.Clamp(c.ori[1]+delta[1], -math.Pi/2, math.Pi/2)
	c.ori[2] = float32(math.Mod(float64(c.ori[2]+delta[2]), twoPi))
}

// ZoomBy changes the orbit distance, never below zero.
func (c *Camera) ZoomBy(delta float32) {
	c.dist = max(c.dist+delta, 0)
}

func (c *Camera) Orientation() mgl32.Vec3   { return c.ori }
func (c *Camera) Focus() mgl32.Vec3         { return c.focus }
func (c *Camera) SetFocus(focus mgl32.Vec3) { c.focus = focus }
func (c *Camera) Distance() float32         { return c.dist }
func (c *Camera) AspectRatio() float32      { return c.aspect }
func (c *Camera) SetAspectRatio(a float32)  { c.aspect = a }
func (c *Camera) FieldOfView() float32      { return c.fov }
