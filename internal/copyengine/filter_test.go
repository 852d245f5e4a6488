package copyengine_test

import (
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/lndp/internal/copyengine"
	"github.com/joe/lndp/pkg/filesystem"
)

func TestGlobFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		include []string
		exclude []string
		path    string
		want    bool
	}{
		{name: "no patterns include everything", path: "a/b.txt", want: true},
		{name: "base name pattern matches in subfolder", include: []string{"*.jpg"}, path: "2023/IMG_1.JPG", want: true},
		{name: "include miss", include: []string{"*.jpg"}, path: "notes.txt", want: false},
		{name: "doublestar crosses folders", include: []string{"albums/**/*.rw2"}, path: "albums/2023/x/P1.RW2", want: true},
		{name: "exclude wins", include: []string{"*"}, exclude: []string{"*.tmp"}, path: "a/cache.tmp", want: false},
		{name: "blank patterns are ignored", include: []string{" "}, path: "x", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			filter := copyengine.NewGlobFilter(tt.include, tt.exclude)
			g.Expect(filter.ShouldInclude(tt.path)).Should(Equal(tt.want))
		})
	}
}

func TestValidatePatterns(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	_, ok := copyengine.ValidatePatterns([]string{"*.jpg", "**/x"})
	g.Expect(ok).Should(BeTrue())

	bad, ok := copyengine.ValidatePatterns([]string{"*.jpg", "[a-"})
	g.Expect(ok).Should(BeFalse())
	g.Expect(bad).Should(Equal("[a-"))
}

func TestParseCopyMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    copyengine.CopyMode
		wantErr bool
	}{
		{in: "", want: copyengine.ModeFull},
		{in: "FULL", want: copyengine.ModeFull},
		{in: "small", want: copyengine.ModeSmall},
		{in: "update", want: copyengine.ModeUpdateIfNewer},
		{in: "update-if-newer", want: copyengine.ModeUpdateIfNewer},
		{in: "mirror", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			mode, err := copyengine.ParseCopyMode(tt.in)
			if tt.wantErr {
				g.Expect(err).Should(MatchError(filesystem.ErrUnsupported))
				return
			}

			g.Expect(err).ShouldNot(HaveOccurred())
			g.Expect(mode).Should(Equal(tt.want))
			g.Expect(mode.String()).ShouldNot(BeEmpty())
		})
	}
}

func TestDestinationIsCurrent(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := filesystem.NewFileRef("/a", "a", "text/plain", 3, older, false)

	g.Expect(copyengine.DestinationIsCurrent(
		filesystem.NewFileRef("/a", "a", "text/plain", 3, newer, false), src)).Should(BeTrue())
	g.Expect(copyengine.DestinationIsCurrent(
		filesystem.NewFileRef("/a", "a", "text/plain", 4, newer, false), src)).Should(BeFalse())
	g.Expect(copyengine.DestinationIsCurrent(
		filesystem.NewFileRef("/a", "a", "text/plain", 3, older, false), src)).Should(BeFalse())
}
