package assets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cough.mp3"), []byte("ID3"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "empty.mp3"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	abs := filepath.Join(t.TempDir(), "sigh.wav")
	if err := os.WriteFile(abs, []byte("RIFF"), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(dir, map[string]string{
		"*coughs*": "cough.mp3",
		"*sighs*":  abs,
		"*laughs*": "laugh.mp3",
		"*hums*":   "empty.mp3",
	})

	path, err := r.Resolve("*coughs*")
	if err != nil {
		t.Fatalf("Resolve(*coughs*) failed: %v", err)
	}
	if path != filepath.Join(dir, "cough.mp3") {
		t.Errorf("path = %q", path)
	}

	if path, err := r.Resolve("*sighs*"); err != nil || path != abs {
		t.Errorf("absolute asset: got %q, %v", path, err)
	}

	for _, marker := range []string{"*laughs*", "*hums*", "*unknown*"} {
		if _, err := r.Resolve(marker); !errors.Is(err, ErrAssetMissing) {
			t.Errorf("Resolve(%s): expected ErrAssetMissing, got %v", marker, err)
		}
	}
}

func TestMarkers_Sorted(t *testing.T) {
	r := NewResolver("", map[string]string{"b": "b.mp3", "a": "a.mp3"})
	got := r.Markers()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Markers() = %v", got)
	}
}

func TestNewResolver_CopiesMap(t *testing.T) {
	sounds := map[string]string{"a": "a.mp3"}
	r := NewResolver("", sounds)
	sounds["b"] = "b.mp3"
	if len(r.Markers()) != 1 {
		t.Error("resolver should not observe later changes to the input map")
	}
}
