package software

import (
	"encoding/binary"
	"fmt"
	"image/color"

	"github.com/spaghettifunk/novus/engine/math"
	"github.com/spaghettifunk/novus/engine/renderer/rhi"
)

// draw transforms every referenced vertex by the bound world-view-projection
// matrix and splats it into the render target as a single depth-tested
// pixel shaded by its normal.
func (e *executor) draw(st *drawState, args rhi.DrawArgs) error {
	switch {
	case st.pso == nil:
		return fmt.Errorf("%w: draw without a pipeline state", rhi.ErrInvalidListState)
	case st.root == nil:
		return fmt.Errorf("%w: draw without a root signature", rhi.ErrInvalidListState)
	case st.root != st.pso.root:
		return fmt.Errorf("%w: root signature does not match pipeline %s", rhi.ErrInvalidArgument, st.pso.name)
	case st.rtv == nil:
		return fmt.Errorf("%w: draw without a render target", rhi.ErrInvalidListState)
	case st.topology == rhi.PrimitiveTopologyUndefined:
		return fmt.Errorf("%w: draw without a topology", rhi.ErrInvalidListState)
	case st.vb.Stride < 12:
		return fmt.Errorf("%w: vertex stride %d", rhi.ErrInvalidArgument, st.vb.Stride)
	case st.ib.Format != rhi.FormatR32Uint:
		return fmt.Errorf("%w: index format %s", rhi.ErrInvalidArgument, st.ib.Format)
	}

	wvp, err := e.constants(st)
	if err != nil {
		return err
	}
	vertices, err := e.dev.mem.resolve(st.vb.Location, uint64(st.vb.Size))
	if err != nil {
		return err
	}
	indices, err := e.dev.mem.resolve(st.ib.Location, uint64(st.ib.Size))
	if err != nil {
		return err
	}
	end := uint64(args.StartIndex) + uint64(args.IndexCount)
	if end*4 > uint64(len(indices)) {
		return fmt.Errorf("%w: %d indices from %d overrun the index buffer", rhi.ErrIndexOutOfRange, args.IndexCount, args.StartIndex)
	}

	depthTest := st.pso.desc.DepthEnabled && st.dsv != nil
	var pixels uint64
	for inst := uint32(0); inst < max(args.InstanceCount, 1); inst++ {
		for i := uint64(args.StartIndex); i < end; i++ {
			vi := int64(binary.LittleEndian.Uint32(indices[i*4:])) + int64(args.BaseVertex)
			off := vi * int64(st.vb.Stride)
			if vi < 0 || off+int64(st.vb.Stride) > int64(len(vertices)) {
				return fmt.Errorf("%w: vertex %d outside the vertex buffer", rhi.ErrIndexOutOfRange, vi)
			}
			v := vertices[off:]
			var n math.Vec3
			if st.vb.Stride >= math.SimpleVertexSize {
				n = math.ReadVec3(v[12:])
			}
			if e.splat(st, wvp, math.ReadVec3(v), n, depthTest) {
				pixels++
			}
		}
	}
	e.dev.stats.draws.Add(1)
	e.dev.stats.pixels.Add(pixels)
	return nil
}

func (e *executor) splat(st *drawState, wvp math.Mat4, p, n math.Vec3, depthTest bool) bool {
	clip := p.ToVec4(1).Transform(wvp)
	if clip.W <= 0 {
		return false
	}
	ndcX, ndcY, z := clip.X/clip.W, clip.Y/clip.W, clip.Z/clip.W
	if ndcX < -1 || ndcX > 1 || ndcY < -1 || ndcY > 1 || z < 0 || z > 1 {
		return false
	}

	vp := st.viewport
	x := int(vp.X + (ndcX+1)*0.5*vp.Width)
	y := int(vp.Y + (1-ndcY)*0.5*vp.Height)
	depth := vp.MinDepth + z*(vp.MaxDepth-vp.MinDepth)

	bounds := st.rtv.color.Rect
	if x < bounds.Min.X || y < bounds.Min.Y || x >= bounds.Max.X || y >= bounds.Max.Y {
		return false
	}
	if st.hasScis {
		s := st.scissor
		if x < int(s.Left) || y < int(s.Top) || x >= int(s.Right) || y >= int(s.Bottom) {
			return false
		}
	}
	if depthTest {
		w := int(st.dsv.desc.Width)
		if x >= w || y >= int(st.dsv.desc.Height) {
			return false
		}
		idx := y*w + x
		if depth >= st.dsv.depth[idx] {
			return false
		}
		st.dsv.depth[idx] = depth
	}

	n = n.Normalized()
	st.rtv.color.SetRGBA(x, y, color.RGBA{
		R: unorm(n.X*0.5 + 0.5),
		G: unorm(n.Y*0.5 + 0.5),
		B: unorm(n.Z*0.5 + 0.5),
		A: 255,
	})
	return true
}
