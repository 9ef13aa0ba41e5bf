package webui

import (
	"io"
	"strings"
	"testing"
)

func TestStaticFSServesIndex(t *testing.T) {
	t.Parallel()
	f, err := StaticFS().Open("index.html")
	if err != nil {
		t.Fatalf("open index.html: %v", err)
	}
	defer func() { _ = f.Close() }()
	b, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "/v1/predict") {
		t.Fatal("index.html does not call the predict endpoint")
	}
}
