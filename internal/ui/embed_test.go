package ui

import (
	"io"
	"strings"
	"testing"
)

func TestAssetsEmbedded(t *testing.T) {
	for _, name := range []string{"/index.html", "/app.js", "/style.css"} {
		f, err := FS().Open(name)
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		b, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil || len(b) == 0 {
			t.Fatalf("read %s: %v (%d bytes)", name, err, len(b))
		}
	}
	f, _ := FS().Open("/index.html")
	defer f.Close()
	b, _ := io.ReadAll(f)
	if !strings.Contains(string(b), "app.js") {
		t.Fatalf("index.html does not load app.js")
	}
}

func TestAPIPathsAreRootAbsolute(t *testing.T) {
	f, err := FS().Open("/app.js")
	if err != nil {
		t.Fatalf("open app.js: %v", err)
	}
	defer f.Close()
	b, _ := io.ReadAll(f)
	js := string(b)
	if strings.Contains(js, "../v1/") {
		t.Fatalf("app.js uses relative API paths; they break under nested UI bases")
	}
	for _, p := range []string{"'/v1/events'", "'/v1/controls'"} {
		if !strings.Contains(js, p) {
			t.Fatalf("app.js missing %s", p)
		}
	}
}
