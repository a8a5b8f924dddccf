package fetcher

import (
	"os"
	"testing"
)

// writeTestFile is a helper that writes data to a file path.
func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
