package components

import (
	"testing"

	"github.com/spaghettifunk/novus/engine/math"
)

func TestCameraViewPlacesTargetInFront(t *testing.T) {
	cam := NewCamera(math.NewVec3(0, 20, 50), math.NewVec3Zero(), math.K_PI/4, 1280.0/720.0, 1, 10000)

	// Right-handed view space looks down -Z.
	p := math.NewVec3Zero().Transform(cam.View())
	if p.Z >= 0 {
		t.Fatalf("target at view z %f, want negative", p.Z)
	}
	if d := p.Length(); d < 53.8 || d > 54.0 {
		t.Errorf("target at distance %f, want about 53.9", d)
	}

	clip := math.NewVec4(0, 0, 0, 1).Transform(cam.View().Mul(cam.Projection()))
	if clip.W <= 0 {
		t.Fatalf("clip w = %f", clip.W)
	}
	ndcZ := clip.Z / clip.W
	if ndcZ < 0 || ndcZ > 1 {
		t.Errorf("ndc depth %f outside [0, 1]", ndcZ)
	}
}

func TestCameraMarksDirty(t *testing.T) {
	cam := NewCamera(math.NewVec3(0, 0, 10), math.NewVec3Zero(), math.K_PI/4, 1, 1, 100)
	before := cam.View()
	cam.MoveForward(5)
	after := cam.View()
	if before == after {
		t.Fatalf("view unchanged after moving")
	}
	if got := cam.Position(); !got.Compare(math.NewVec3(0, 0, 5), 0.0001) {
		t.Errorf("position %v, want (0, 0, 5)", got)
	}
	if got := cam.Target(); !got.Compare(math.NewVec3(0, 0, -5), 0.0001) {
		t.Errorf("target %v, want (0, 0, -5)", got)
	}
}
