package tui

import (
	"context"
	"sync"

	"github.com/MarcoPoloResearchLab/slidedeck/internal/editor"
	tea "github.com/charmbracelet/bubbletea"
)

// stateChangedMsg tells the model to re-read the editor snapshot.
type stateChangedMsg struct{}

// Bridge forwards editor change notifications into a running program.
// Notifications coalesce, so OnChange never blocks the caller.
type Bridge struct {
	mu      sync.Mutex
	program *tea.Program
	signal  chan struct{}
}

func NewBridge() *Bridge {
	return &Bridge{signal: make(chan struct{}, 1)}
}

// OnChange matches editor.Config.OnChange.
func (b *Bridge) OnChange(editor.Snapshot) {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

func (b *Bridge) attach(program *tea.Program) {
	b.mu.Lock()
	b.program = program
	b.mu.Unlock()
}

func (b *Bridge) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.signal:
			b.mu.Lock()
			program := b.program
			b.mu.Unlock()
			if program != nil {
				program.Send(stateChangedMsg{})
			}
		}
	}
}
