package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// pngHeader is the signature plus an IHDR chunk for a 1x1 image; enough for
// content sniffing to report image/png.
var pngHeader = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x77, 0x53, 0xde,
}

// WriteSourceImage writes a small PNG-looking file under dir and returns its path.
func WriteSourceImage(t testing.TB, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, pngHeader, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// PNGBytes returns a copy of the bytes written by WriteSourceImage.
func PNGBytes() []byte {
	out := make([]byte, len(pngHeader))
	copy(out, pngHeader)
	return out
}
