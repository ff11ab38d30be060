package bridge

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

func TestClampRel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "."},
		{".", "."},
		{"images", "images"},
		{"images/", "images"},
		{"/images", "images"},
		{"../images", "images"},
		{"../../..", "."},
		{"a/../../b", "b"},
		{`images\skins`, "images/skins"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, clampRel(tt.in))
		})
	}
}

func TestReadImagesDirectoryStates(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		rel   string
		want  []string
	}{
		{
			name: "missing directory",
			rel:  "images",
			want: nil,
		},
		{
			name:  "path is a file",
			files: []string{"images"},
			rel:   "images",
			want:  nil,
		},
		{
			name:  "empty directory",
			files: []string{"other/readme.md"},
			rel:   "other",
			want:  nil,
		},
		{
			name:  "populated flat",
			files: []string{"images/a.png", "images/b.JPG", "images/c.gif", "images/d.txt"},
			rel:   "images",
			want:  []string{"images/a.png", "images/b.JPG"},
		},
		{
			name: "nested",
			files: []string{
				"images/skins/red/1.png",
				"images/skins/blue/2.jpg",
				"images/skins/blue/notes.md",
				"images/top.png",
			},
			rel:  "images",
			want: []string{"images/skins/blue/2.jpg", "images/skins/red/1.png", "images/top.png"},
		},
		{
			name:  "escape attempt stays at root",
			files: []string{"root.png", "images/a.png"},
			rel:   "../../",
			want:  []string{"images/a.png", "root.png"},
		},
		{
			name:  "backslash separators",
			files: []string{"images/skins/a.png"},
			rel:   `images\skins`,
			want:  []string{"images/skins/a.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeTree(t, root, tt.files...)
			a := NewAssets(root, []string{".png", "jpg"}, nil)

			var got []string
			assert.NotPanics(t, func() {
				got = slices.Collect(a.ReadImages(tt.rel))
			})
			slices.Sort(got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadImagesIsNotRestartable(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "images/a.png", "images/b.png")
	seq := NewAssets(root, []string{".png"}, nil).ReadImages("images")

	assert.Len(t, slices.Collect(seq), 2)
	assert.Empty(t, slices.Collect(seq))
}

func TestReadImagesStopsEarly(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "images/a.png", "images/b.png", "images/c.png")

	count := 0
	for range NewAssets(root, []string{".png"}, nil).ReadImages("images") {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestReadImagesStaysInsideRootThroughSymlinkedDir(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, "secret/private.png", "app/images/a.png")
	root := filepath.Join(base, "app")
	if err := os.Symlink(filepath.Join(base, "secret"), filepath.Join(root, "assets")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	assets := NewAssets(root, []string{".png"}, nil)
	assert.Empty(t, slices.Collect(assets.ReadImages("assets")))
	assert.Empty(t, slices.Collect(assets.ReadImages("assets/")))
	assert.Equal(t, []string{"images/a.png"}, slices.Collect(assets.ReadImages("images")))
}

func TestReadImagesSkipsSymlinks(t *testing.T) {
	outside := t.TempDir()
	writeTree(t, outside, "secret.png")

	root := t.TempDir()
	writeTree(t, root, "images/a.png")
	if err := os.Symlink(outside, filepath.Join(root, "images", "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	got := slices.Collect(NewAssets(root, []string{".png"}, nil).ReadImages("images"))
	assert.Equal(t, []string{"images/a.png"}, got)
}

func TestMaterializeEmptySequence(t *testing.T) {
	out := Materialize(NewAssets(t.TempDir(), []string{".png"}, nil).ReadImages("missing"))
	assert.Equal(t, []string{}, out)
	assert.Equal(t, true, Materialize(true))
}
