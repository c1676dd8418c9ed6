package main

import (
	"bytes"
	"context"
	"image"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/image/font"
)

// syncBuffer lets several goroutines log into one buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger() (zerolog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return zerolog.New(buf).Level(zerolog.DebugLevel), buf
}

type fakeDisplay struct {
	mu       sync.Mutex
	clears   int
	writes   []string
	cursor   image.Point
	scale    int
	wrap     bool
	closed   bool
	writeErr error
}

func (d *fakeDisplay) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clears++
	return nil
}

func (d *fakeDisplay) SetCursor(x, y int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cursor = image.Pt(x, y)
}

func (d *fakeDisplay) WriteString(face font.Face, scale int, text string, wrap bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr != nil {
		return d.writeErr
	}
	d.writes = append(d.writes, text)
	d.scale = scale
	d.wrap = wrap
	return nil
}

func (d *fakeDisplay) Frame() image.Image {
	return image.NewGray(image.Rect(0, 0, DEFAULT_OLED_WIDTH, DEFAULT_OLED_HEIGHT))
}

func (d *fakeDisplay) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDisplay) clearCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clears
}

func (d *fakeDisplay) writeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.writes)
}

func (d *fakeDisplay) lastWrite() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.writes) == 0 {
		return ""
	}
	return d.writes[len(d.writes)-1]
}

func (d *fakeDisplay) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type fakeInterfaces struct {
	defaultName string
	defaultErr  error
	list        []netInterface
	listErr     error
}

func (f *fakeInterfaces) DefaultInterface(ctx context.Context) (string, error) {
	return f.defaultName, f.defaultErr
}

func (f *fakeInterfaces) Interfaces(ctx context.Context) ([]netInterface, error) {
	return f.list, f.listErr
}

// testConfig returns valid http settings pointing at the given URLs.
func testConfig(timeURL, scoreURL, shotclockURL string) *Config {
	cfg := defaultConfig()
	cfg.ClientType = CLIENT_TYPE_HTTP
	cfg.TimeURL = timeURL
	cfg.ScoreURL = scoreURL
	cfg.ShotclockURL = shotclockURL
	return &cfg
}
