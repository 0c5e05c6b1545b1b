package loaders

import (
	"os"
	"path/filepath"
	"testing"
)

func TestShaderLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boxes.hlsl")
	if err := os.WriteFile(path, []byte("float4 VS() {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := (&ShaderLoader{}).Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Name != "boxes" || res.DataSize != uint64(len(res.Data)) {
		t.Fatalf("unexpected resource %+v", res)
	}
}

func TestBinaryLoaderRejectsTornWords(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.spv")
	if err := os.WriteFile(bad, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (&BinaryLoader{}).Load(bad); err == nil {
		t.Fatal("expected an error for a 3 byte file")
	}

	good := filepath.Join(dir, "good.spv")
	if err := os.WriteFile(good, []byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0}, 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := (&BinaryLoader{}).Load(good)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	words := BytesToBytecode(res.Data)
	if len(words) != 2 || words[0] != 0x07230203 || words[1] != 1 {
		t.Fatalf("words = %#x", words)
	}
}
