package fileops_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/lndp/pkg/fileops"
	"github.com/joe/lndp/pkg/filesystem"
)

var modTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCopyStreamCopiesAllBytesInChunks(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := bytes.NewReader([]byte("0123456789"))

	var dst bytes.Buffer

	var reported []int64

	stats, err := fileops.CopyStream(context.Background(), src, &dst, 10, make([]byte, 4), 3, "a.txt",
		func(done, total int64, name string) {
			g.Expect(total).Should(Equal(int64(10)))
			g.Expect(name).Should(Equal("a.txt"))
			reported = append(reported, done)
		})

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(dst.String()).Should(Equal("0123456789"))
	g.Expect(stats.BytesCopied).Should(Equal(int64(10)))
	g.Expect(reported).Should(Equal([]int64{4, 8, 10}))
}

func TestCopyStreamStopsAfterEmptyReads(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	var dst bytes.Buffer

	stats, err := fileops.CopyStream(context.Background(), stallReader{}, &dst, 10, make([]byte, 4), 3, "a.txt", nil)

	g.Expect(err).Should(MatchError(filesystem.ErrTruncated))
	g.Expect(stats.EmptyReads).Should(Equal(3))
	g.Expect(stats.BytesCopied).Should(BeZero())
}

func TestCopyStreamRejectsUnknownLength(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	_, err := fileops.CopyStream(context.Background(), bytes.NewReader(nil), &bytes.Buffer{}, -1,
		make([]byte, 4), 3, "a.txt", nil)

	g.Expect(err).Should(MatchError(filesystem.ErrTruncated))
}

func TestCopyStreamHonoursCancellation(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fileops.CopyStream(ctx, bytes.NewReader([]byte("abc")), &bytes.Buffer{}, 3,
		make([]byte, 4), 3, "a.txt", nil)

	g.Expect(err).Should(MatchError(fileops.ErrCopyCancelled))
}

func TestCopyStreamWrapsWriteErrors(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	_, err := fileops.CopyStream(context.Background(), bytes.NewReader([]byte("abc")), failingWriter{}, 3,
		make([]byte, 4), 3, "a.txt", nil)

	g.Expect(err).Should(MatchError(filesystem.ErrIO))
}

func TestCopyDocument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		setup     func(src *filesystem.MockTree, ref filesystem.DocumentRef)
		wantErr   error
		wantBytes string
	}{
		{
			name:      "round trip",
			setup:     func(*filesystem.MockTree, filesystem.DocumentRef) {},
			wantBytes: "0123456789",
		},
		{
			name:      "stalled source is truncated",
			setup:     func(src *filesystem.MockTree, ref filesystem.DocumentRef) { src.SetStall(ref.ID) },
			wantErr:   filesystem.ErrTruncated,
			wantBytes: "",
		},
		{
			name:      "short source is truncated",
			setup:     func(src *filesystem.MockTree, ref filesystem.DocumentRef) { src.SetReadLimit(ref.ID, 4) },
			wantErr:   filesystem.ErrTruncated,
			wantBytes: "0123",
		},
		{
			name: "read error is an io error",
			setup: func(src *filesystem.MockTree, ref filesystem.DocumentRef) {
				src.SetReadError(ref.ID, errors.New("boom"))
			},
			wantErr:   filesystem.ErrIO,
			wantBytes: "0123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			src := filesystem.NewMockTree()
			dst := filesystem.NewMockTree()
			ref := src.AddFile("/a.txt", []byte("0123456789"), modTime)
			tt.setup(src, ref)

			ops := fileops.New(src, dst)
			ops.BufferSize = 4
			root, _ := dst.Root(context.Background())

			result, err := ops.CopyDocument(context.Background(), fileops.CopyRequest{Source: ref, DestDir: root}, nil)

			if tt.wantErr != nil {
				g.Expect(err).Should(MatchError(tt.wantErr))
			} else {
				g.Expect(err).ShouldNot(HaveOccurred())
			}

			g.Expect(result.Expected).Should(Equal(int64(10)))

			content, ok := dst.Content("/a.txt")
			g.Expect(ok).Should(BeTrue())
			g.Expect(string(content)).Should(Equal(tt.wantBytes))
		})
	}
}

func TestCopyDocumentCreatesZeroLengthFile(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	dst := filesystem.NewMockTree()
	ref := src.AddFile("/empty.txt", nil, modTime)
	root, _ := dst.Root(context.Background())

	result, err := fileops.New(src, dst).CopyDocument(context.Background(),
		fileops.CopyRequest{Source: ref, DestDir: root}, nil)

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(result.Stats.BytesCopied).Should(BeZero())
	g.Expect(dst.Calls()).Should(ContainElement("create /empty.txt"))
}

func TestCopyDocumentOverwritesExistingFile(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	dst := filesystem.NewMockTree()
	ref := src.AddFile("/a.txt", []byte("new"), modTime)
	existing := dst.AddFile("/a.txt", []byte("old content"), modTime)
	root, _ := dst.Root(context.Background())

	_, err := fileops.New(src, dst).CopyDocument(context.Background(), fileops.CopyRequest{
		Source:   ref,
		DestDir:  root,
		Existing: []filesystem.DocumentRef{existing},
	}, nil)

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(dst.Calls()).ShouldNot(ContainElement("create /a.txt"))

	content, _ := dst.Content("/a.txt")
	g.Expect(string(content)).Should(Equal("new"))
}

func TestCopyDocumentSkipsWhenNameIsDirectory(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	dst := filesystem.NewMockTree()
	ref := src.AddFile("/a.txt", []byte("new"), modTime)
	dir := dst.AddDir("/a.txt", modTime)
	root, _ := dst.Root(context.Background())

	_, err := fileops.New(src, dst).CopyDocument(context.Background(), fileops.CopyRequest{
		Source:   ref,
		DestDir:  root,
		Existing: []filesystem.DocumentRef{dir},
	}, nil)

	g.Expect(err).Should(MatchError(fileops.ErrBlockedByDirectory))
	g.Expect(fileops.IsSkip(err)).Should(BeTrue())
}

func TestCopyDocumentSmallDownscalesLargeImage(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	dst := filesystem.NewMockTree()
	ref := src.AddFile("/IMG_1.png", pngBytes(g, 2400, 1200), modTime)
	root, _ := dst.Root(context.Background())

	ops := fileops.New(src, dst)
	ops.Threshold = 600

	result, err := ops.CopyDocument(context.Background(),
		fileops.CopyRequest{Source: ref, DestDir: root, Small: true, Prefix: "pics/"}, nil)

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(result.Downscaled).Should(BeTrue())
	g.Expect(result.Name).Should(Equal("IMG_1.small.png"))
	g.Expect(result.DisplayPath("pics/")).Should(Equal("pics/IMG_1.small.png"))

	content, ok := dst.Content("/IMG_1.small.png")
	g.Expect(ok).Should(BeTrue())

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(content))
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(cfg.Width).Should(Equal(600))
	g.Expect(cfg.Height).Should(Equal(300))
}

func TestCopyDocumentSmallKeepsSmallImage(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewMockTree()
	dst := filesystem.NewMockTree()
	original := pngBytes(g, 40, 20)
	ref := src.AddFile("/tiny.png", original, modTime)
	root, _ := dst.Root(context.Background())

	result, err := fileops.New(src, dst).CopyDocument(context.Background(),
		fileops.CopyRequest{Source: ref, DestDir: root, Small: true}, nil)

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(result.Downscaled).Should(BeFalse())

	content, _ := dst.Content("/tiny.png")
	g.Expect(content).Should(Equal(original))
}

func TestSmallName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "IMG_1.JPEG", want: "IMG_1.small.jpg"},
		{in: "IMG_1.jpeg", want: "IMG_1.small.jpg"},
		{in: "IMG_2.JPG", want: "IMG_2.small.JPG"},
		{in: "photo.png", want: "photo.small.png"},
		{in: "scan", want: "scan.small.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)
			g.Expect(fileops.SmallName(tt.in)).Should(Equal(tt.want))
		})
	}
}

func TestDownscaleKeepsAspectRatio(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	encoded, ok := fileops.Downscale(pngBytes(g, 500, 1000), 400, fileops.SmallQuality)
	g.Expect(ok).Should(BeTrue())

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(encoded))
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(cfg.Width).Should(Equal(200))
	g.Expect(cfg.Height).Should(Equal(400))
}

func TestDownscaleRejectsUndecodableData(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	_, ok := fileops.Downscale([]byte("not an image"), 400, fileops.SmallQuality)
	g.Expect(ok).Should(BeFalse())
}

func pngBytes(g Gomega, width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		img.Set(x, height/2, color.RGBA{R: 200, A: 255})
	}

	var buf bytes.Buffer
	g.Expect(png.Encode(&buf, img)).Should(Succeed())

	return buf.Bytes()
}

type stallReader struct{}

func (stallReader) Read([]byte) (int, error) { return 0, nil }

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk gone") }
