package filesystem_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/lndp/pkg/filesystem"
)

func newLocalTree(t *testing.T) (*filesystem.LocalTree, string) {
	t.Helper()

	dir := t.TempDir()

	tree, err := filesystem.NewLocalTree(dir)
	if err != nil {
		t.Fatalf("NewLocalTree failed: %v", err)
	}

	return tree, dir
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestLocalTree_ListChildren(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)
	ctx := context.Background()

	tree, dir := newLocalTree(t)
	writeFile(t, filepath.Join(dir, "photos", "x.bin"), []byte("0123456789"))

	root, err := tree.Root(ctx)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(root.ID).To(Equal("/"))
	g.Expect(root.IsDirectory).To(BeTrue())

	top, err := tree.ListChildren(ctx, root)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(top).To(HaveLen(1))
	g.Expect(top[0].ID).To(Equal("/photos"))
	g.Expect(top[0].IsDirectory).To(BeTrue())

	children, err := tree.ListChildren(ctx, top[0])
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(children).To(HaveLen(1))
	g.Expect(children[0].Name).To(Equal("x.bin"))
	g.Expect(children[0].Length).To(Equal(int64(10)))
	g.Expect(children[0].IsDirectory).To(BeFalse())
}

func TestLocalTree_ListChildren_MissingFolderIsNotFound(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	tree, _ := newLocalTree(t)

	_, err := tree.ListChildren(context.Background(), filesystem.DocumentRef{ID: "/gone"})
	g.Expect(err).To(MatchError(filesystem.ErrNotFound))
}

func TestLocalTree_ReadRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		offset  int64
		size    int
		want    string
		wantErr bool
	}{
		{name: "whole file", offset: 0, size: 100, want: "0123456789"},
		{name: "tail shorter than size", offset: 5, size: 100, want: "56789"},
		{name: "middle", offset: 2, size: 3, want: "234"},
		{name: "at eof", offset: 10, size: 100, want: ""},
		{name: "past eof", offset: 50, size: 100, want: ""},
		{name: "negative offset", offset: -1, size: 10, wantErr: true},
		{name: "zero size", offset: 0, size: 0, wantErr: true},
	}

	tree, dir := newLocalTree(t)
	writeFile(t, filepath.Join(dir, "x.bin"), []byte("0123456789"))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			ref, err := tree.Stat(context.Background(), "/x.bin")
			g.Expect(err).ToNot(HaveOccurred())

			data, err := tree.ReadRange(context.Background(), ref, tt.offset, tt.size)
			if tt.wantErr {
				g.Expect(err).To(MatchError(filesystem.ErrIO))
				return
			}

			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(string(data)).To(Equal(tt.want))
		})
	}
}

func TestLocalTree_CreateWriteAppendRename(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)
	ctx := context.Background()

	tree, dir := newLocalTree(t)
	root, _ := tree.Root(ctx)

	sub, err := tree.CreateDirectory(ctx, root, "albums")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(sub.ID).To(Equal("/albums"))

	_, err = tree.CreateDirectory(ctx, root, "albums")
	g.Expect(err).To(MatchError(filesystem.ErrAlreadyExists))

	file, err := tree.CreateFile(ctx, sub, "text/plain", "notes.txt")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(file.Length).To(BeZero())

	_, err = tree.CreateFile(ctx, sub, "text/plain", "notes.txt")
	g.Expect(err).To(MatchError(filesystem.ErrAlreadyExists))

	g.Expect(tree.AppendBytes(ctx, file, []byte("hello "))).To(Succeed())
	g.Expect(tree.AppendBytes(ctx, file, []byte("world"))).To(Succeed())

	data, err := os.ReadFile(filepath.Join(dir, "albums", "notes.txt"))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(string(data)).To(Equal("hello world"))

	w, err := tree.OpenWriter(ctx, file)
	g.Expect(err).ToNot(HaveOccurred())
	_, err = w.Write([]byte("new"))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(w.Close()).To(Succeed())

	renamed, err := tree.Rename(ctx, file, "final.txt")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(renamed.ID).To(Equal("/albums/final.txt"))
	g.Expect(renamed.Length).To(Equal(int64(3)))

	r, err := tree.OpenReader(ctx, renamed)
	g.Expect(err).ToNot(HaveOccurred())
	defer r.Close()

	content, err := io.ReadAll(r)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(string(content)).To(Equal("new"))
}

func TestLocalTree_IDsCannotEscapeRoot(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	tree, dir := newLocalTree(t)
	writeFile(t, filepath.Join(dir, "inside.txt"), []byte("in"))

	ref, err := tree.Stat(context.Background(), "/../../inside.txt")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(ref.ID).To(Equal("/inside.txt"))
}

func TestLocalTree_Thumbnail(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)
	ctx := context.Background()

	tree, dir := newLocalTree(t)

	img := image.NewRGBA(image.Rect(0, 0, 600, 400))
	for x := range 600 {
		img.Set(x, x%400, color.RGBA{R: 255, A: 255})
	}

	var buf bytes.Buffer
	g.Expect(png.Encode(&buf, img)).To(Succeed())
	writeFile(t, filepath.Join(dir, "pic.png"), buf.Bytes())
	writeFile(t, filepath.Join(dir, "doc.txt"), []byte("text"))

	pic, err := tree.Stat(ctx, "/pic.png")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(pic.SupportsThumbnail).To(BeTrue())

	thumb := tree.Thumbnail(ctx, pic)
	g.Expect(thumb).ToNot(BeEmpty())

	cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb))
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(format).To(Equal("jpeg"))
	g.Expect(cfg.Width).To(Equal(filesystem.ThumbnailSize))
	g.Expect(cfg.Height).To(Equal(200))

	doc, err := tree.Stat(ctx, "/doc.txt")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(tree.Thumbnail(ctx, doc)).To(BeNil())
}

func TestLocalTree_Summary(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	tree, dir := newLocalTree(t)
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("abc"))
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), []byte("de"))

	summary, err := tree.Summary()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(summary).To(Equal(filesystem.Summary{Files: 2, Dirs: 1, Bytes: 5}))
}

func TestNewLocalTree_RejectsFile(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "file"), []byte("x"))

	_, err := filesystem.NewLocalTree(filepath.Join(dir, "file"))
	g.Expect(err).To(MatchError(filesystem.ErrNotFound))

	_, err = filesystem.NewLocalTree(filepath.Join(dir, "missing"))
	g.Expect(err).To(MatchError(filesystem.ErrNotFound))
}
