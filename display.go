package main

import (
	"fmt"
	"image"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"
)

// ssd1306 drivers talk to this address unless told otherwise
const ssd1306DefaultAddr = 0x3C

// oledDisplay is the text-mode surface the renderer writes to.
type oledDisplay interface {
	Clear() error
	SetCursor(x, y int)
	WriteString(face font.Face, scale int, text string, wrap bool) error
	// Frame returns a copy of the last frame sent to the panel.
	Frame() image.Image
	Close() error
}

// textCanvas holds the 1-bit framebuffer shared by both drivers.
type textCanvas struct {
	mu         sync.Mutex
	frame      *image1bit.VerticalLSB
	cursor     image.Point
	lineHeight int
}

func (c *textCanvas) init(cfg DisplayConfig) {
	c.frame = image1bit.NewVerticalLSB(image.Rect(0, 0, cfg.Width, cfg.Height))
	c.lineHeight = cfg.LineHeight
	c.cursor = image.Pt(cfg.CursorX, cfg.CursorY)
}

func (c *textCanvas) SetCursor(x, y int) {
	c.mu.Lock()
	c.cursor = image.Pt(x, y)
	c.mu.Unlock()
}

func (c *textCanvas) Frame() image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	return toGray(c.frame)
}

// addressedBus redirects transactions aimed at the driver's fixed address
// to the configured one.
type addressedBus struct {
	i2c.Bus
	addr uint16
}

func (b *addressedBus) Tx(addr uint16, w, r []byte) error {
	if addr == ssd1306DefaultAddr {
		addr = b.addr
	}
	return b.Bus.Tx(addr, w, r)
}

// ssd1306Display drives an SSD1306 panel over I2C.
type ssd1306Display struct {
	textCanvas
	dev *ssd1306.Dev
	bus i2c.BusCloser
}

func openSSD1306(cfg DisplayConfig) (*ssd1306Display, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", cfg.Bus, err)
	}
	opts := ssd1306.DefaultOpts
	opts.W = cfg.Width
	opts.H = cfg.Height
	dev, err := ssd1306.NewI2C(&addressedBus{Bus: bus, addr: cfg.Address}, &opts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("init ssd1306 at 0x%02X: %w", cfg.Address, err)
	}
	d := &ssd1306Display{dev: dev, bus: bus}
	d.init(cfg)
	return d, nil
}

func (d *ssd1306Display) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	clearFrame(d.frame)
	return d.dev.Draw(d.frame.Bounds(), d.frame, image.Point{})
}

// WriteString redraws the whole framebuffer and sends it to the panel.
func (d *ssd1306Display) WriteString(face font.Face, scale int, text string, wrap bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	renderText(d.frame, face, scale, d.cursor, d.lineHeight, text, wrap)
	return d.dev.Draw(d.frame.Bounds(), d.frame, image.Point{})
}

func (d *ssd1306Display) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	haltErr := d.dev.Halt()
	busErr := d.bus.Close()
	if haltErr != nil {
		return fmt.Errorf("halt ssd1306: %w", haltErr)
	}
	return busErr
}

// consoleDisplay logs the text instead of driving hardware.
type consoleDisplay struct {
	textCanvas
	log  zerolog.Logger
	last string
}

func newConsoleDisplay(cfg DisplayConfig, logger zerolog.Logger) *consoleDisplay {
	d := &consoleDisplay{
		log: logger.With().Str("component", "console-display").Logger(),
	}
	d.init(cfg)
	return d
}

func (d *consoleDisplay) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	clearFrame(d.frame)
	d.last = ""
	return nil
}

func (d *consoleDisplay) WriteString(face font.Face, scale int, text string, wrap bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	renderText(d.frame, face, scale, d.cursor, d.lineHeight, text, wrap)
	if text != d.last {
		d.last = text
		d.log.Info().Msg("\n" + text)
	}
	return nil
}

func (d *consoleDisplay) Close() error { return nil }

// openDisplay picks the driver named in the settings.
func openDisplay(cfg DisplayConfig, logger zerolog.Logger) (oledDisplay, error) {
	switch cfg.Driver {
	case DRIVER_SSD1306:
		d, err := openSSD1306(cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	case DRIVER_CONSOLE:
		return newConsoleDisplay(cfg, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", ErrInvalidDisplay, cfg.Driver)
	}
}
