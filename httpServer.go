package main

import (
	"bytes"
	"errors"
	"image/png"
	"net"
	"strconv"
	"sync"

	"github.com/gofiber/fiber/v2"
)

// previewServer exposes what the panel shows for checking the display from
// a laptop at the jury table.
type previewServer struct {
	app      *fiber.App
	lines    *DisplayLines
	display  oledDisplay
	counters func() map[string]PollCounters

	mu       sync.Mutex
	ln       net.Listener
	served   chan struct{}
	serveErr error
}

func newPreviewServer(lines *DisplayLines, display oledDisplay, counters func() map[string]PollCounters) *previewServer {
	s := &previewServer{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
			JSONEncoder:           jsonAPI.Marshal,
			JSONDecoder:           jsonAPI.Unmarshal,
		}),
		lines:    lines,
		display:  display,
		counters: counters,
	}

	// Routes
	s.app.Get("/", s.indexHandler)
	s.app.Get("/lines", s.linesHandler)
	s.app.Get("/frame", s.serveFrame)
	return s
}

func (s *previewServer) indexHandler(c *fiber.Ctx) error {
	return c.SendString(s.lines.Text() + "\n")
}

func (s *previewServer) linesHandler(c *fiber.Ctx) error {
	snapshot := s.lines.Snapshot()
	body := fiber.Map{"lines": snapshot[:]}
	if s.counters != nil {
		body["polls"] = s.counters()
	}
	return c.JSON(body)
}

func (s *previewServer) serveFrame(c *fiber.Ctx) error {
	frame := s.display.Frame()
	if frame == nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("No frame available")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to encode image")
	}

	c.Set("Content-Type", "image/png")
	c.Set("Content-Length", strconv.Itoa(buf.Len()))
	return c.Send(buf.Bytes())
}

// Start binds addr and serves in the background until Shutdown. The socket
// is bound before Start returns, so a Shutdown right after cannot race it.
func (s *previewServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	served := make(chan struct{})
	s.mu.Lock()
	s.ln = ln
	s.served = served
	s.mu.Unlock()

	go func() {
		defer close(served)
		if err := s.app.Listener(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			s.mu.Lock()
			s.serveErr = err
			s.mu.Unlock()
		}
	}()
	return nil
}

// Addr is the bound address, nil before Start.
func (s *previewServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops serving and waits for the serve goroutine to return.
func (s *previewServer) Shutdown() error {
	s.mu.Lock()
	ln, served := s.ln, s.served
	s.mu.Unlock()
	if ln == nil {
		return nil
	}

	shutdownErr := s.app.Shutdown()
	// covers Shutdown landing before the server registered the listener
	_ = ln.Close()
	<-served

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.serveErr != nil {
		return s.serveErr
	}
	return shutdownErr
}
