package tui_test

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/lndp/internal/copyengine"
	"github.com/joe/lndp/internal/tui"
	"github.com/joe/lndp/internal/tui/shared"
)

func send(model tea.Model, events ...copyengine.Event) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, event := range events {
		model, cmd = model.Update(shared.EngineEventMsg{Event: event})
	}

	return model, cmd
}

func TestCopyModelTracksProgress(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	bridge := shared.NewEventBridge()
	model, cmd := send(tui.NewCopyModel("Copying album", bridge, func() {}),
		copyengine.StateChanged{From: copyengine.StateScanning, To: copyengine.StateCopying},
		copyengine.QueueProgress{Counter: 2, Total: 5},
		copyengine.FileStarted{Path: "/album/a.jpg", Size: 2048},
		copyengine.FileProgress{Path: "/album/a.jpg", Bytes: 1024, Total: 2048},
		copyengine.SpeedUpdate{Path: "/album/a.jpg", KBps: 512},
		copyengine.FileSkipped{Path: "/album/b.jpg", Reason: copyengine.SkipUpToDate},
		copyengine.FileFailed{Path: "/album/c.jpg", Err: errors.New("connection reset")},
	)

	g.Expect(cmd).ToNot(BeNil())

	view := model.View()
	g.Expect(view).To(ContainSubstring("Copying album"))
	g.Expect(view).To(ContainSubstring("2 of 5"))
	g.Expect(view).To(ContainSubstring("/album/a.jpg"))
	g.Expect(view).To(ContainSubstring("512 kb/s"))
	g.Expect(view).To(ContainSubstring("Copied 0  Skipped 1  Failed 1"))
	g.Expect(view).To(ContainSubstring("connection reset"))
	g.Expect(model.(tui.CopyModel).Result()).To(BeNil())
}

func TestCopyModelQuitsOnCompletion(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	result := &copyengine.CopyResult{FilesCopied: 3, BytesCopied: 3 * 1024, DirsCreated: 1}
	model, cmd := send(tui.NewCopyModel("Copy", shared.NewEventBridge(), func() {}),
		copyengine.CopyComplete{Result: result},
	)

	g.Expect(cmd).ToNot(BeNil())
	g.Expect(cmd()).To(Equal(tea.QuitMsg{}))
	g.Expect(model.(tui.CopyModel).Result()).To(BeIdenticalTo(result))
	g.Expect(model.View()).To(ContainSubstring("Copy complete"))
	g.Expect(model.View()).To(ContainSubstring("Copied   3 files (3.0 KiB)"))
}

func TestCopyModelCancelsOnce(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	cancels := 0
	var model tea.Model = tui.NewCopyModel("Copy", shared.NewEventBridge(), func() { cancels++ })

	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	g.Expect(cmd).To(BeNil())

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	g.Expect(cancels).To(Equal(1))
	g.Expect(model.View()).To(ContainSubstring("Cancelling"))
}

func TestCopyModelSummarisesStoppedCopy(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	model, _ := send(tui.NewCopyModel("Copy", shared.NewEventBridge(), nil),
		copyengine.CopyComplete{Result: &copyengine.CopyResult{Err: context.Canceled}},
	)

	g.Expect(model.View()).To(ContainSubstring("Copy stopped: context canceled"))
}
