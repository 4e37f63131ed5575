package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := range 16 {
		for x := range 16 {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func testOptions() options {
	return options{
		concurrency: 2,
		resizedSize: 32,
		dctSize:     8,
		provider:    "draw",
		quiet:       true,
	}
}

func TestIsImageFile(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"a.jpg":      true,
		"b.JPEG":     true,
		"c.png":      true,
		"d.webp":     true,
		"e.tiff":     true,
		"f.txt":      false,
		"noext":      false,
		"dir/g.bmp":  true,
		"archive.gz": false,
	}
	for path, want := range tests {
		if got := isImageFile(path); got != want {
			t.Errorf("isImageFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestRun_GroupsDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o700); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(dir, "red1.png"), color.NRGBA{R: 255, A: 255})
	writePNG(t, filepath.Join(sub, "red2.png"), color.NRGBA{R: 255, A: 255})
	writePNG(t, filepath.Join(dir, "blue.png"), color.NRGBA{B: 255, A: 255})
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := run(context.Background(), testOptions(), []string{dir}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "# 24 (2)") {
		t.Errorf("missing red group header in:\n%s", text)
	}
	if strings.Contains(text, "blue.png") {
		t.Errorf("singleton printed without --all:\n%s", text)
	}
}

func TestRun_JSONAll(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "black.png"), color.Black)
	writePNG(t, filepath.Join(dir, "white.png"), color.White)

	opts := testOptions()
	opts.all = true
	opts.jsonOut = true
	opts.cachePath = filepath.Join(t.TempDir(), "cache.db")

	for range 2 { // second pass is served from the cache
		var out bytes.Buffer
		if err := run(context.Background(), opts, []string{dir}, &out); err != nil {
			t.Fatalf("run: %v", err)
		}
		var groups []jsonGroup
		if err := json.Unmarshal(out.Bytes(), &groups); err != nil {
			t.Fatalf("Unmarshal: %v\n%s", err, out.String())
		}
		if len(groups) != 2 {
			t.Fatalf("groups = %+v, want 2", groups)
		}
		for _, g := range groups {
			if len(g.Members) != 1 || len(g.Hex) != 16 {
				t.Errorf("group = %+v", g)
			}
		}
	}
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()
	opts := testOptions()
	opts.provider = "gpu"
	if err := run(context.Background(), opts, []string{t.TempDir()}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown provider")
	}

	opts = testOptions()
	opts.dctSize = 64
	if err := run(context.Background(), opts, []string{t.TempDir()}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for dct size above resized size")
	}

	if err := run(context.Background(), testOptions(), []string{"/does/not/exist"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for missing path")
	}
}
