package walker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"mediascan/internal/mediatypes"
)

// createTestTree writes empty files at the given relative paths under root.
func createTestTree(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func collect(t *testing.T, w *Walker, root string) ([]DirGroup, []string) {
	t.Helper()
	var (
		groups []DirGroup
		dirs   []string
	)
	err := w.Walk(context.Background(), root,
		func(dir string) { dirs = append(dirs, dir) },
		func(g DirGroup) error {
			groups = append(groups, g)
			return nil
		})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	return groups, dirs
}

func relPaths(root string, groups []DirGroup) []string {
	var out []string
	for _, g := range groups {
		for _, f := range g.Files {
			rel, _ := filepath.Rel(root, f.Path)
			out = append(out, rel)
		}
	}
	return out
}

func TestWalkGroupsByDirectory(t *testing.T) {
	root := t.TempDir()
	createTestTree(t, root,
		"b.mp4", "a.mkv", "notes.txt",
		"sub/c.jpg", "sub/d.wav",
		"sub/deeper/e.avi",
	)

	w := New(Config{})
	groups, dirs := collect(t, w, root)

	if len(groups) != 3 {
		t.Fatalf("len(groups) = %d, want 3", len(groups))
	}

	want := []string{"a.mkv", "b.mp4", "sub/c.jpg", "sub/d.wav", "sub/deeper/e.avi"}
	if got := relPaths(root, groups); !reflect.DeepEqual(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}

	if groups[0].Files[0].Type != mediatypes.Video {
		t.Errorf("a.mkv type = %v, want video", groups[0].Files[0].Type)
	}
	if groups[1].Files[1].Type != mediatypes.Audio {
		t.Errorf("d.wav type = %v, want audio", groups[1].Files[1].Type)
	}

	if len(dirs) != 3 {
		t.Errorf("onDir called %d times, want 3", len(dirs))
	}

	stats := w.Stats()
	if stats.Files != 5 || stats.Directories != 3 {
		t.Errorf("Stats() = %+v, want 5 files in 3 directories", stats)
	}
}

func TestWalkIgnoresDirectorySubstrings(t *testing.T) {
	root := t.TempDir()
	createTestTree(t, root,
		"keep/a.mp4",
		"old_backup/b.mp4",
		"old_backup/nested/c.mp4",
		"x/my_backup_2020/d.mp4",
	)

	w := New(Config{IgnoreDirs: []string{"backup"}})
	groups, _ := collect(t, w, root)

	want := []string{"keep/a.mp4"}
	if got := relPaths(root, groups); !reflect.DeepEqual(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
	if w.Stats().Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", w.Stats().Skipped)
	}
}

func TestWalkHonorsClassifierIgnoreList(t *testing.T) {
	root := t.TempDir()
	createTestTree(t, root, "a.mp4", "b.jpg", "c.wav")

	w := New(Config{Classifier: mediatypes.NewClassifier([]string{"mp4", mediatypes.IgnoreAllAudio})})
	groups, _ := collect(t, w, root)

	want := []string{"b.jpg"}
	if got := relPaths(root, groups); !reflect.DeepEqual(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
}

func TestWalkVisitsHiddenEntries(t *testing.T) {
	root := t.TempDir()
	createTestTree(t, root, ".hidden/a.mp4", ".b.mp4", "c.mp4")

	groups, _ := collect(t, New(Config{}), root)
	if got := len(relPaths(root, groups)); got != 3 {
		t.Errorf("paths = %d, want 3", got)
	}
}

func TestWalkMissingRootIsSkipped(t *testing.T) {
	w := New(Config{})
	groups, _ := collect(t, w, filepath.Join(t.TempDir(), "missing"))
	if len(groups) != 0 {
		t.Errorf("len(groups) = %d, want 0", len(groups))
	}
	if w.Stats().Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", w.Stats().Skipped)
	}
}

func TestWalkUnreadableDirectoryContinues(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	root := t.TempDir()
	createTestTree(t, root, "a/locked/x.mp4", "b/y.mp4")
	locked := filepath.Join(root, "a", "locked")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(locked, 0o755)

	groups, _ := collect(t, New(Config{}), root)
	if got := relPaths(root, groups); !reflect.DeepEqual(got, []string{"b/y.mp4"}) {
		t.Errorf("paths = %v, want [b/y.mp4]", got)
	}
}

func TestWalkFileRoot(t *testing.T) {
	root := t.TempDir()
	createTestTree(t, root, "clip.mov")

	groups, _ := collect(t, New(Config{}), filepath.Join(root, "clip.mov"))
	if len(groups) != 1 || len(groups[0].Files) != 1 {
		t.Fatalf("groups = %+v, want one single-file group", groups)
	}
	if groups[0].Dir != root {
		t.Errorf("Dir = %q, want %q", groups[0].Dir, root)
	}
}

func TestWalkStopsOnEmitError(t *testing.T) {
	root := t.TempDir()
	createTestTree(t, root, "a/1.mp4", "b/2.mp4")

	stop := errors.New("stop")
	calls := 0
	err := New(Config{}).Walk(context.Background(), root, nil, func(DirGroup) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("Walk() error = %v, want %v", err, stop)
	}
	if calls != 1 {
		t.Errorf("emit called %d times, want 1", calls)
	}
}

func TestWalkCancelled(t *testing.T) {
	root := t.TempDir()
	createTestTree(t, root, "a.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(Config{}).Walk(ctx, root, nil, func(DirGroup) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Walk() error = %v, want context.Canceled", err)
	}
}

func TestIsIgnoredPath(t *testing.T) {
	w := New(Config{IgnoreDirs: []string{"@eaDir"}})
	tests := []struct {
		path string
		want bool
	}{
		{"/media/a.mp4", false},
		{"/media/x/a.mp4", false},
		{"/media/@eaDir/a.mp4", true},
		{"/media/x/@eaDir/y/a.mp4", true},
		{"/media/.cache/a.mp4", false},
		{"/media/x/my_eaDir/a.mp4", false},
		{"/other/a.mp4", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := w.IsIgnoredPath("/media", tt.path); got != tt.want {
				t.Errorf("IsIgnoredPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
