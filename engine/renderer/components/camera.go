package components

import (
	"github.com/spaghettifunk/novus/engine/math"
)

// Camera is a look-at camera with a perspective projection. The view and
// projection matrices are rebuilt lazily when a setter marks them dirty.
type Camera struct {
	position math.Vec3
	target   math.Vec3
	up       math.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	isDirty    bool
	viewMatrix math.Mat4
	projMatrix math.Mat4
}

// NewCamera looks from position at target with +Y up.
func NewCamera(position, target math.Vec3, fov, aspect, near, far float32) *Camera {
	return &Camera{
		position: position,
		target:   target,
		up:       math.NewVec3Up(),
		fov:      fov,
		aspect:   aspect,
		near:     near,
		far:      far,
		isDirty:  true,
	}
}

func (c *Camera) Position() math.Vec3 {
	return c.position
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.position = position
	c.isDirty = true
}

func (c *Camera) Target() math.Vec3 {
	return c.target
}

func (c *Camera) SetTarget(target math.Vec3) {
	c.target = target
	c.isDirty = true
}

// SetAspect is called when the framebuffer is resized.
func (c *Camera) SetAspect(aspect float32) {
	c.aspect = aspect
	c.isDirty = true
}

func (c *Camera) rebuild() {
	if !c.isDirty {
		return
	}
	c.viewMatrix = math.NewMat4LookAt(c.position, c.target, c.up)
	c.projMatrix = math.NewMat4Perspective(c.fov, c.aspect, c.near, c.far)
	c.isDirty = false
}

func (c *Camera) View() math.Mat4 {
	c.rebuild()
	return c.viewMatrix
}

func (c *Camera) Projection() math.Mat4 {
	c.rebuild()
	return c.projMatrix
}

// Forward is the unit direction the camera looks along.
func (c *Camera) Forward() math.Vec3 {
	return c.target.Sub(c.position).Normalized()
}

// MoveForward moves both the eye and the target along Forward.
func (c *Camera) MoveForward(amount float32) {
	d := c.Forward().MulScalar(amount)
	c.position = c.position.Add(d)
	c.target = c.target.Add(d)
	c.isDirty = true
}
