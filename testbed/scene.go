package testbed

import (
	"github.com/spaghettifunk/novus/engine/math"
	"github.com/spaghettifunk/novus/engine/renderer"
)

const (
	// CBPerObjectSize is WorldViewProj, World, WorldView and
	// WorldInvTranspose back to back.
	CBPerObjectSize = 4 * math.Mat4Size

	boxScaleStep  = 0.04
	boxFieldScale = 0.01
	timeOffset    = 1000.0
	spinRate      = 0.001
)

// boxField spins every box around the Y axis at a speed proportional to
// its index, which spreads them into a spiral.
type boxField struct {
	count int
}

func (b *boxField) ObjectCount() int {
	return b.count
}

// World is S(0.04i) T(i, 0, 0) RotY(-(t+1000) i 0.001) S(0.01).
func (b *boxField) World(i int, t float32) (world, invTranspose math.Mat4) {
	scale := boxScaleStep * float32(i)
	rot := math.NewMat4EulerY(-(t + timeOffset) * float32(i) * spinRate)
	world = math.NewMat4UniformScale(scale).
		Mul(math.NewMat4Translation(math.NewVec3(float32(i), 0, 0))).
		Mul(rot).
		Mul(math.NewMat4UniformScale(boxFieldScale))

	// Both scales are uniform, so the normal matrix is the rotation scaled
	// by the reciprocal. Box 0 has zero scale and keeps the bare rotation.
	invTranspose = rot
	if s := scale * boxFieldScale; s > 0 {
		invTranspose = rot.Mul(math.NewMat4UniformScale(1 / s))
	}
	return world, invTranspose
}

func (b *boxField) WriteConstants(i int, f renderer.FrameInfo, dst []byte) {
	world, invTranspose := b.World(i, f.Time)
	worldView := world.Mul(f.View)
	worldView.Mul(f.Proj).Put(dst[0*math.Mat4Size:])
	world.Put(dst[1*math.Mat4Size:])
	worldView.Put(dst[2*math.Mat4Size:])
	invTranspose.Put(dst[3*math.Mat4Size:])
}
