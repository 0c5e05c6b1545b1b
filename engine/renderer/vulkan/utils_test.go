package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func TestVulkanSafeString(t *testing.T) {
	cases := map[string]string{
		"":           "\x00",
		"VK_surface": "VK_surface\x00",
		"done\x00":   "done\x00",
	}
	for in, want := range cases {
		if got := VulkanSafeString(in); got != want {
			t.Errorf("VulkanSafeString(%q) = %q, want %q", in, got, want)
		}
	}

	in := []string{"a", "b\x00"}
	out := VulkanSafeStrings(in)
	if out[0] != "a\x00" || out[1] != "b\x00" || in[0] != "a" {
		t.Errorf("VulkanSafeStrings = %q, input now %q", out, in)
	}
}

func TestFindFirstZeroInByteArray(t *testing.T) {
	var name [16]byte
	copy(name[:], "llvmpipe")
	if got := FindFirstZeroInByteArray(name[:]); got != 8 {
		t.Errorf("got %d, want 8", got)
	}
	full := []byte("abc")
	if got := FindFirstZeroInByteArray(full); got != 3 {
		t.Errorf("unterminated: got %d, want 3", got)
	}
}

func TestAdapterNames(t *testing.T) {
	if adapterType(vk.PhysicalDeviceTypeDiscreteGpu) != "discrete" || adapterType(vk.PhysicalDeviceTypeOther) != "unknown" {
		t.Errorf("adapter type names are wrong")
	}
	if got := versionString(uint32(vk.MakeVersion(1, 3, 250))); got != "1.3.250" {
		t.Errorf("versionString = %q", got)
	}
}
