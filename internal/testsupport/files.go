package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// mp4Header is the minimal ftyp box prefix that identifies a file as MP4.
var mp4Header = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'}

// WriteVideo writes a file that sniffs as MP4, padded to the requested size.
func WriteVideo(t testing.TB, path string, size int64) {
	t.Helper()

	if size < int64(len(mp4Header)) {
		size = int64(len(mp4Header))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	if _, err := f.Write(mp4Header); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size - int64(len(mp4Header))
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}
