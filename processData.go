package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

const (
	STATUS_OK = "OK"

	ENDPOINT_CLOCK     = "clock"
	ENDPOINT_SCORE     = "score"
	ENDPOINT_SHOTCLOCK = "shotclock"

	maxResponseBodySize = 64 << 10
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// pollOutcome is what happened to one fetch. Skipped responses (bad JSON,
// status other than OK) are expected noise and are not errors.
type pollOutcome int

const (
	outcomeApplied pollOutcome = iota
	outcomeSkipped
	outcomeFailed
)

func (o pollOutcome) String() string {
	switch o {
	case outcomeApplied:
		return "applied"
	case outcomeSkipped:
		return "skipped"
	case outcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type clockReading struct {
	Status string       `json:"status"`
	Minute *json.Number `json:"minute"`
	Second *json.Number `json:"second"`
	Period *json.Number `json:"period"`
}

type scoreReading struct {
	Status string       `json:"status"`
	Home   *json.Number `json:"home"`
	Guest  *json.Number `json:"guest"`
}

type shotclockReading struct {
	Status string       `json:"status"`
	Time   *json.Number `json:"time"`
}

// numberText renders a JSON number the way a scoreboard shows it: 5.0 is "5".
func numberText(n json.Number) string {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := n.Float64(); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return string(n)
}

// zeroPad left-pads the text of n with zeros up to places characters.
func zeroPad(n json.Number, places int) string {
	s := numberText(n)
	if len(s) >= places {
		return s
	}
	return strings.Repeat("0", places-len(s)) + s
}

func formatClock(minute, second, period json.Number) string {
	return "Tijd:" + zeroPad(minute, 2) + ":" + zeroPad(second, 2) + " / Per:" + numberText(period) + "   "
}

func formatShotclock(t json.Number) string {
	return "Schotklok:" + zeroPad(t, 2)
}

func formatScore(home, guest json.Number) (string, string) {
	return "THUIS:" + zeroPad(home, 2), "UIT:" + zeroPad(guest, 2)
}

func applyClock(body []byte, lines *DisplayLines) pollOutcome {
	var r clockReading
	if err := jsonAPI.Unmarshal(body, &r); err != nil || r.Status != STATUS_OK {
		return outcomeSkipped
	}
	if r.Minute == nil || r.Second == nil || r.Period == nil {
		return outcomeSkipped
	}
	lines.Set(SlotClock, formatClock(*r.Minute, *r.Second, *r.Period))
	return outcomeApplied
}

func applyScore(body []byte, lines *DisplayLines) pollOutcome {
	var r scoreReading
	if err := jsonAPI.Unmarshal(body, &r); err != nil || r.Status != STATUS_OK {
		return outcomeSkipped
	}
	if r.Home == nil || r.Guest == nil {
		return outcomeSkipped
	}
	home, guest := formatScore(*r.Home, *r.Guest)
	lines.SetPair(SlotHome, home, SlotGuest, guest)
	return outcomeApplied
}

func applyShotclock(body []byte, lines *DisplayLines) pollOutcome {
	var r shotclockReading
	if err := jsonAPI.Unmarshal(body, &r); err != nil || r.Status != STATUS_OK {
		return outcomeSkipped
	}
	if r.Time == nil {
		return outcomeSkipped
	}
	lines.Set(SlotShotClock, formatShotclock(*r.Time))
	return outcomeApplied
}

type endpoint struct {
	name  string
	url   string
	apply func(body []byte, lines *DisplayLines) pollOutcome
}

// PollCounters is a per-endpoint tally of fetch outcomes.
type PollCounters struct {
	Applied uint64 `json:"applied"`
	Skipped uint64 `json:"skipped"`
	Failed  uint64 `json:"failed"`
}

type endpointCounters struct {
	applied atomic.Uint64
	skipped atomic.Uint64
	failed  atomic.Uint64
}

// Poller fetches the clock, score and shot clock endpoints on every tick.
// Ticks never wait for earlier requests; whichever response lands last wins.
type Poller struct {
	client    *http.Client
	endpoints []endpoint
	lines     *DisplayLines
	interval  time.Duration
	timeout   time.Duration
	log       zerolog.Logger
	counters  map[string]*endpointCounters
	inflight  sync.WaitGroup
}

// newHTTPClient picks the transport for clientType. Anything other than http
// or https is a configuration error.
func newHTTPClient(clientType string, insecureSkipVerify bool) (*http.Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	}
	switch clientType {
	case CLIENT_TYPE_HTTP:
	case CLIENT_TYPE_HTTPS:
		transport.TLSClientConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: insecureSkipVerify,
		}
		transport.TLSHandshakeTimeout = 10 * time.Second
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidClientType, clientType)
	}
	return &http.Client{Transport: transport}, nil
}

func NewPoller(cfg *Config, lines *DisplayLines, logger zerolog.Logger) (*Poller, error) {
	client, err := newHTTPClient(cfg.ClientType, cfg.TLSInsecureSkipVerify)
	if err != nil {
		return nil, err
	}
	p := &Poller{
		client: client,
		endpoints: []endpoint{
			{name: ENDPOINT_CLOCK, url: cfg.TimeURL, apply: applyClock},
			{name: ENDPOINT_SCORE, url: cfg.ScoreURL, apply: applyScore},
			{name: ENDPOINT_SHOTCLOCK, url: cfg.ShotclockURL, apply: applyShotclock},
		},
		lines:    lines,
		interval: cfg.PollInterval.Std(),
		timeout:  cfg.RequestTimeout.Std(),
		log:      logger.With().Str("component", "poller").Logger(),
		counters: make(map[string]*endpointCounters),
	}
	for _, ep := range p.endpoints {
		p.counters[ep.name] = &endpointCounters{}
	}
	return p, nil
}

// Run polls until ctx is cancelled, then waits for in-flight requests,
// which are cancelled along with ctx.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.log.Info().Dur("interval", p.interval).Msg("polling started")
	for {
		select {
		case <-ctx.Done():
			p.inflight.Wait()
			p.client.CloseIdleConnections()
			p.log.Info().Msg("polling stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick fires one request per endpoint without waiting for them.
func (p *Poller) tick(ctx context.Context) {
	for _, ep := range p.endpoints {
		p.inflight.Add(1)
		go func(ep endpoint) {
			defer p.inflight.Done()
			p.fetch(ctx, ep)
		}(ep)
	}
}

// pollOnce runs a tick and waits for every in-flight request.
func (p *Poller) pollOnce(ctx context.Context) {
	p.tick(ctx)
	p.inflight.Wait()
}

func (p *Poller) fetch(ctx context.Context, ep endpoint) pollOutcome {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	outcome := p.doFetch(ctx, ep)
	p.record(ep.name, outcome)
	return outcome
}

func (p *Poller) doFetch(ctx context.Context, ep endpoint) pollOutcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.url, nil)
	if err != nil {
		p.log.Error().Err(err).Str("endpoint", ep.name).Str("url", ep.url).Msg("failed to create request")
		return outcomeFailed
	}
	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			p.log.Debug().Str("endpoint", ep.name).Msg("request cancelled")
		} else {
			p.log.Error().Err(err).Str("endpoint", ep.name).Str("url", ep.url).Msg("fetch failed")
		}
		return outcomeFailed
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		p.log.Error().Err(err).Str("endpoint", ep.name).Str("url", ep.url).Msg("failed to read response body")
		return outcomeFailed
	}

	outcome := ep.apply(body, p.lines)
	if outcome == outcomeSkipped {
		p.log.Debug().Str("endpoint", ep.name).Int("status_code", resp.StatusCode).Msg("response ignored")
	}
	return outcome
}

func (p *Poller) record(name string, outcome pollOutcome) {
	c, ok := p.counters[name]
	if !ok {
		return
	}
	switch outcome {
	case outcomeApplied:
		c.applied.Add(1)
	case outcomeSkipped:
		c.skipped.Add(1)
	case outcomeFailed:
		c.failed.Add(1)
	}
}

// Counters returns a copy of the per-endpoint outcome tallies.
func (p *Poller) Counters() map[string]PollCounters {
	out := make(map[string]PollCounters, len(p.counters))
	for name, c := range p.counters {
		out[name] = PollCounters{
			Applied: c.applied.Load(),
			Skipped: c.skipped.Load(),
			Failed:  c.failed.Load(),
		}
	}
	return out
}
