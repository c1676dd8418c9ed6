package main

import (
	"context"
	"image"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/image/font"
)

// renderObserver is told about every frame written to the panel.
type renderObserver interface {
	Rendered(lines [numSlots]string)
}

// Renderer refreshes the IP line and pushes all five lines to the display
// on every tick, whether or not any poll completed in between.
type Renderer struct {
	lines     *DisplayLines
	display   oledDisplay
	ifaces    interfaceSource
	face      font.Face
	scale     int
	wrap      bool
	cursor    image.Point
	interval  time.Duration
	log       zerolog.Logger
	observers []renderObserver
}

func newRenderer(cfg *Config, lines *DisplayLines, display oledDisplay, ifaces interfaceSource, logger zerolog.Logger) *Renderer {
	return &Renderer{
		lines:    lines,
		display:  display,
		ifaces:   ifaces,
		face:     defaultFace,
		scale:    cfg.Display.Scale,
		wrap:     cfg.Display.WrapEnabled(),
		cursor:   image.Pt(cfg.Display.CursorX, cfg.Display.CursorY),
		interval: cfg.RenderInterval.Std(),
		log:      logger.With().Str("component", "renderer").Logger(),
	}
}

func (r *Renderer) addObserver(o renderObserver) {
	r.observers = append(r.observers, o)
}

func (r *Renderer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.renderOnce(ctx)
		}
	}
}

// refreshIP writes "IP:<addr>" for the default interface. When the lookup
// fails or finds nothing the slot keeps its previous text.
func (r *Renderer) refreshIP(ctx context.Context) {
	if r.ifaces == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.interval)
	defer cancel()

	name, err := r.ifaces.DefaultInterface(ctx)
	if err != nil {
		r.log.Debug().Err(err).Msg("default interface lookup failed")
		return
	}
	ifaces, err := r.ifaces.Interfaces(ctx)
	if err != nil {
		r.log.Debug().Err(err).Msg("interface list failed")
		return
	}
	if ip, ok := lookupIPv4(ifaces, name); ok {
		r.lines.Set(SlotIP, "IP:"+ip)
	}
}

func (r *Renderer) renderOnce(ctx context.Context) error {
	r.refreshIP(ctx)

	snapshot := r.lines.Snapshot()
	r.display.SetCursor(r.cursor.X, r.cursor.Y)
	if err := r.display.WriteString(r.face, r.scale, strings.Join(snapshot[:], "\n"), r.wrap); err != nil {
		r.log.Error().Err(err).Msg("display write failed")
		return err
	}
	for _, o := range r.observers {
		o.Rendered(snapshot)
	}
	return nil
}
