package downloader

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
)

func contextBG() context.Context {
	return context.Background()
}

// parseTestRange parses a "bytes=start-end" header for test servers that
// need to slice their canned response body.
func parseTestRange(t *testing.T, header string, bodyLen int) (int, int) {
	t.Helper()
	if header == "" {
		return 0, bodyLen - 1
	}
	trimmed := strings.TrimPrefix(header, "bytes=")
	parts := strings.SplitN(trimmed, "-", 2)
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		t.Fatalf("bad range header %q: %v", header, err)
	}
	end := bodyLen - 1
	if len(parts) == 2 && parts[1] != "" {
		end, err = strconv.Atoi(parts[1])
		if err != nil {
			t.Fatalf("bad range header %q: %v", header, err)
		}
	}
	if start < 0 || end >= bodyLen || start > end {
		t.Fatalf(fmt.Sprintf("range %q out of bounds for body length %d", header, bodyLen))
	}
	return start, end
}
