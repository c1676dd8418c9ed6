package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

var errServiceClosed = errors.New("service closed")

// Service owns the display buffer, both loops and the panel handle.
type Service struct {
	cfg      *Config
	log      zerolog.Logger
	lines    *DisplayLines
	display  oledDisplay
	poller   *Poller
	renderer *Renderer
	preview  *previewServer
	mirror   *mqttMirror

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	closed  bool
}

// NewService validates the settings, clears the panel once and wires the
// loops. Nothing runs until Run is called.
func NewService(cfg *Config, display oledDisplay, ifaces interfaceSource, logger zerolog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, ErrNoSettings
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if display == nil {
		return nil, fmt.Errorf("%w: no display", ErrInvalidDisplay)
	}

	lines := NewDisplayLines()
	poller, err := NewPoller(cfg, lines, logger)
	if err != nil {
		return nil, err
	}
	if err := display.Clear(); err != nil {
		return nil, fmt.Errorf("clear display: %w", err)
	}

	s := &Service{
		cfg:      cfg,
		log:      logger.With().Str("component", "service").Logger(),
		lines:    lines,
		display:  display,
		poller:   poller,
		renderer: newRenderer(cfg, lines, display, ifaces, logger),
	}
	if cfg.Preview.Listen != "" {
		s.preview = newPreviewServer(lines, display, poller.Counters)
	}
	if cfg.MQTT.Broker != "" {
		s.mirror = newMQTTMirror(cfg.MQTT, logger)
		s.renderer.addObserver(s.mirror)
	}
	return s, nil
}

func (s *Service) Lines() *DisplayLines { return s.lines }

// Run starts the poll and render loops and blocks until ctx is cancelled or
// Close is called.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errServiceClosed
	}
	if s.running {
		s.mu.Unlock()
		return errors.New("service already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.mu.Unlock()
	defer close(s.done)
	defer cancel()

	previewUp := false
	if s.preview != nil {
		if err := s.preview.Start(s.cfg.Preview.Listen); err != nil {
			s.log.Error().Err(err).Str("listen", s.cfg.Preview.Listen).Msg("preview server failed to start")
		} else {
			previewUp = true
			s.log.Info().Str("listen", s.preview.Addr().String()).Msg("preview server listening")
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.poller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.renderer.Run(ctx)
	}()
	s.log.Info().
		Str("clientType", s.cfg.ClientType).
		Dur("poll_interval", s.cfg.PollInterval.Std()).
		Dur("render_interval", s.cfg.RenderInterval.Std()).
		Msg("service running")

	<-ctx.Done()
	wg.Wait()

	if previewUp {
		if err := s.preview.Shutdown(); err != nil {
			s.log.Warn().Err(err).Msg("preview server shutdown")
		}
	}
	s.log.Info().Msg("service stopped")
	return nil
}

// Close stops both loops, waits for them, then blanks and releases the
// panel. Safe to call more than once.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if s.mirror != nil {
		s.mirror.Close()
	}
	clearErr := s.display.Clear()
	closeErr := s.display.Close()
	if clearErr != nil {
		return fmt.Errorf("clear display: %w", clearErr)
	}
	return closeErr
}
