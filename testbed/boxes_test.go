package testbed

import (
	"testing"

	"github.com/spaghettifunk/novus/engine/assets"
	"github.com/spaghettifunk/novus/engine/core"
	"github.com/spaghettifunk/novus/engine/math"
	"github.com/spaghettifunk/novus/engine/platform"
	"github.com/spaghettifunk/novus/engine/renderer"
	"github.com/spaghettifunk/novus/engine/renderer/rhi"
	"github.com/spaghettifunk/novus/engine/renderer/software"
)

func testConfig() *core.Config {
	cfg := core.DefaultConfig()
	cfg.Application.Headless = true
	cfg.Application.Width = 64
	cfg.Application.Height = 64
	cfg.Renderer.ObjectCount = 64
	cfg.Renderer.ThreadCount = 3
	cfg.Renderer.LinearHeapSize = 64 << 10
	cfg.Assets.Dir = "../assets"
	cfg.Assets.Watch = false
	return cfg
}

func startApp(t *testing.T, cfg *core.Config) *BoxesApp {
	t.Helper()
	am, err := assets.NewAssetManager(nil)
	if err != nil {
		t.Fatalf("NewAssetManager: %v", err)
	}
	t.Cleanup(func() { am.Shutdown() })
	if err := am.Initialize(cfg.Assets.Dir, false); err != nil {
		t.Fatalf("Initialize assets: %v", err)
	}

	surface := platform.NewHeadless()
	surface.Startup(cfg.Application.Name, 0, 0, cfg.Application.Width, cfg.Application.Height)

	app := NewBoxesApp(cfg, nil)
	app.SetAssets(am)
	if err := app.Init(surface); err != nil {
		app.Destroy()
		t.Fatalf("Init: %v", err)
	}
	return app
}

func TestBoxesRenderFrames(t *testing.T) {
	cases := []struct {
		name    string
		binding string
		bundles bool
	}{
		{"root cbv", core.BindingRootCBV, false},
		{"descriptor table", core.BindingDescriptorTable, false},
		{"bundles", core.BindingRootCBV, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Renderer.Binding = tc.binding
			cfg.Renderer.UseBundles = tc.bundles
			cfg.Renderer.ObjectsPerBundle = 10
			app := startApp(t, cfg)

			const frames = 3
			for i := 0; i < frames; i++ {
				app.Update()
				if err := app.Render(); err != nil {
					t.Fatalf("frame %d: %v", i, err)
				}
			}

			stats := app.Coordinator().Stats()
			if stats.Draws != cfg.Renderer.ObjectCount || stats.Lists != cfg.Renderer.ThreadCount+1 {
				t.Errorf("frame stats %+v", stats)
			}
			dev, ok := app.Device().(*software.Device)
			if !ok {
				t.Fatalf("device is %T", app.Device())
			}
			ds := dev.Stats()
			if ds.Presents != frames || ds.Draws != frames*uint64(cfg.Renderer.ObjectCount) {
				t.Errorf("device stats %+v", ds)
			}
			if ds.Pixels == 0 {
				t.Errorf("no box reached the screen")
			}
			if err := app.Destroy(); err != nil {
				t.Fatalf("Destroy: %v", err)
			}
		})
	}
}

func TestBoxesConfigReloadChangesClearColor(t *testing.T) {
	app := startApp(t, testConfig())
	defer app.Destroy()

	next := testConfig()
	next.Renderer.ClearColor = [4]float32{1, 1, 0, 1}
	if err := app.FnOnConfig(next); err != nil {
		t.Fatalf("FnOnConfig: %v", err)
	}
	if got := app.Coordinator().ClearColor(); got != next.Renderer.ClearColor {
		t.Errorf("clear color %v", got)
	}
}

func TestBoxesInitWithoutAssets(t *testing.T) {
	app := NewBoxesApp(testConfig(), nil)
	if err := app.Init(platform.NewHeadless()); err == nil {
		t.Fatalf("Init without assets succeeded")
	}
	if err := app.Destroy(); err != nil {
		t.Errorf("Destroy after failed Init: %v", err)
	}
}

func TestRenderBeforeInit(t *testing.T) {
	app := NewBoxesApp(testConfig(), nil)
	if err := app.Render(); err == nil {
		t.Fatalf("Render before Init succeeded")
	}
}

func TestBoxFieldNormalMatrix(t *testing.T) {
	field := &boxField{count: 100}
	for _, i := range []int{1, 10, 99} {
		world, invTranspose := field.World(i, 2.5)
		p := world.Mul(invTranspose.Transposed())
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				want := float32(0)
				if r == c {
					want = 1
				}
				if d := p.Data[r*4+c] - want; d > 1e-3 || d < -1e-3 {
					t.Fatalf("box %d: world * invTranspose^T [%d][%d] = %f", i, r, c, p.Data[r*4+c])
				}
			}
		}
	}

	world, _ := field.World(7, 0)
	center := math.NewVec3Zero().Transform(world)
	if d := center.Length(); d < 0.069 || d > 0.071 {
		t.Errorf("box 7 centre at distance %f, want 0.07", d)
	}
}

func TestWriteConstantsLayout(t *testing.T) {
	field := &boxField{count: 4}
	f := testFrame()
	dst := make([]byte, CBPerObjectSize)
	field.WriteConstants(3, f, dst)

	world, invTranspose := field.World(3, f.Time)
	want := []math.Mat4{world.Mul(f.View).Mul(f.Proj), world, world.Mul(f.View), invTranspose}
	for k, m := range want {
		if got := math.Mat4FromBytes(dst[k*math.Mat4Size:]); !got.Compare(m, 1e-5) {
			t.Errorf("matrix %d does not match", k)
		}
	}
	if CBPerObjectSize != rhi.ConstantBufferAlignment {
		t.Errorf("per object constants are %d bytes", CBPerObjectSize)
	}
}

func testFrame() renderer.FrameInfo {
	return renderer.FrameInfo{
		Frame: 1,
		Time:  1.5,
		View:  math.NewMat4LookAt(cameraEye, math.NewVec3Zero(), math.NewVec3Up()),
		Proj:  math.NewMat4Perspective(math.K_PI/4, 16.0/9.0, 1, 10000),
	}
}
