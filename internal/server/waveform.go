package server

import (
	"context"

	"github.com/hdltools/svls/internal/debug"
	svlerr "github.com/hdltools/svls/internal/errors"
	"github.com/hdltools/svls/internal/wcp"
)

// AttachWaveform connects to a waveform viewer. Viewer events run on the
// client's receive goroutine but take the driver mutex, because both the
// viewer and the normal request path can trigger the same navigation
// queries.
func (d *Driver) AttachWaveform(ctx context.Context, addr string) error {
	client, err := wcp.Dial(ctx, addr, d.handleWaveformEvent)
	if err != nil {
		return err
	}
	d.mu.Lock()
	if d.wave != nil {
		d.wave.Close()
	}
	d.wave = client
	d.mu.Unlock()
	return nil
}

// DetachWaveform closes the viewer connection if one is attached.
func (d *Driver) DetachWaveform() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.wave != nil {
		d.wave.Close()
		d.wave = nil
	}
}

// AddSignalsToWaveform pushes hierarchical signal paths to the attached
// viewer.
func (d *Driver) AddSignalsToWaveform(paths []string) error {
	d.mu.Lock()
	wave := d.wave
	d.mu.Unlock()
	if wave == nil {
		return svlerr.NewNotFoundError("waveform viewer", "not attached")
	}
	return wave.AddVariables(paths)
}

func (d *Driver) handleWaveformEvent(msg wcp.Message) {
	d.mu.Lock()
	comp := d.comp
	d.mu.Unlock()

	switch msg.Event {
	case "goto_declaration", "focus_changed":
		if len(msg.Names) == 0 || comp == nil {
			return
		}
		path := msg.Names[0]
		a := comp.Analysis()
		if a == nil {
			return
		}
		sym, err := a.Comp.LookupPath(path)
		if err != nil {
			debug.LogWcp("viewer path %q not in design: %v", path, err)
			return
		}
		debug.LogWcp("viewer navigated to %s (%s %s)", path, sym.Kind(), sym.File())
	default:
		debug.LogWcp("unhandled viewer event %q", msg.Event)
	}
}
