package software

import (
	"image"
	"image/color"

	"github.com/spaghettifunk/novus/engine/renderer/rhi"
)

// texture backs render targets with an RGBA image and depth targets with a
// float buffer. Its state and pixels are only touched by the queue
// goroutine once it has been submitted against.
type texture struct {
	rhi.ResourceBase

	desc     rhi.TextureDesc
	state    rhi.ResourceState
	color    *image.RGBA
	depth    []float32
	released bool
}

func newTexture(desc rhi.TextureDesc) *texture {
	t := &texture{desc: desc, state: desc.InitialState}
	kind := desc.Kind
	if !kind.IsTexture() {
		kind = rhi.ResourceKindTexture2D
	}
	t.InitResource(kind, desc.Name)

	if desc.DepthStencil {
		t.depth = make([]float32, int(desc.Width)*int(desc.Height))
	} else {
		t.color = image.NewRGBA(image.Rect(0, 0, int(desc.Width), int(desc.Height)))
	}
	return t
}

func (t *texture) Size() uint64 {
	return uint64(t.desc.Width) * uint64(t.desc.Height) * uint64(max(t.desc.DepthOrArraySize, 1)) * uint64(t.desc.Format.Size())
}

func (t *texture) Width() uint32 {
	return t.desc.Width
}

func (t *texture) Height() uint32 {
	return t.desc.Height
}

func (t *texture) DepthOrArraySize() uint32 {
	return t.desc.DepthOrArraySize
}

func (t *texture) Format() rhi.Format {
	return t.desc.Format
}

func (t *texture) Release() error {
	t.released = true
	t.color = nil
	t.depth = nil
	return nil
}

func (t *texture) clearColor(c [4]float32) {
	if t.color == nil {
		return
	}
	px := color.RGBA{unorm(c[0]), unorm(c[1]), unorm(c[2]), unorm(c[3])}
	pix := t.color.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = px.R, px.G, px.B, px.A
	}
}

func (t *texture) clearDepth(d float32) {
	for i := range t.depth {
		t.depth[i] = d
	}
}

func unorm(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
