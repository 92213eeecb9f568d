package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"

	"github.com/ljmasx/SignalSlice/location"
	"github.com/ljmasx/SignalSlice/sampler/internal/browser"
)

// Selectors for live busyness on a Google Maps place page. Live readings
// phrase busyness without a time reference; the historical histogram always
// anchors to "at <hour>".
const (
	liveSelector       = `[aria-label*="% busy"], [aria-label*="% Busy"], [aria-label*="right now"], [aria-label*="Right now"], [aria-label*="currently"], [aria-label*="Currently"]`
	historicalSelector = `div[aria-label*="Popular times"] [aria-label*="at"]`
)

// GMapsConfig configures the Google Maps sampler.
type GMapsConfig struct {
	// RemoteURL connects to an external Chrome instead of launching one.
	RemoteURL string

	// SettleTime is how long to let a place page finish rendering after
	// load. Default: 4s.
	SettleTime time.Duration

	// DelayBetween spaces out page visits within one scan. Default: 2s.
	DelayBetween time.Duration

	// SampleTimeout bounds one location's sample attempt. A location that
	// exceeds it fails alone; the scan moves on. Default: 90s.
	SampleTimeout time.Duration

	// RecycleInterval bounds Chrome's lifetime. Default: 4h.
	RecycleInterval time.Duration

	// Timezone the venues live in; decides which histogram hour is "now".
	// Default: America/New_York.
	Timezone string

	Logger *slog.Logger
}

func (c *GMapsConfig) defaults() {
	if c.SettleTime <= 0 {
		c.SettleTime = 4 * time.Second
	}
	if c.DelayBetween <= 0 {
		c.DelayBetween = 2 * time.Second
	}
	if c.SampleTimeout <= 0 {
		c.SampleTimeout = 90 * time.Second
	}
	if c.Timezone == "" {
		c.Timezone = "America/New_York"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// pageSource hands out navigated pages. Satisfied by browser.Manager;
// narrowed to an interface so timeout behavior is testable without Chrome.
type pageSource interface {
	Page(ctx context.Context, pageURL string) (*rod.Page, error)
	Close() error
}

// GMaps samples busyness from Google Maps place pages. Priority per
// location: live percentage > live text estimate > historical histogram for
// the current hour > no data.
type GMaps struct {
	cfg    GMapsConfig
	mgr    pageSource
	tz     *time.Location
	logger *slog.Logger
}

// NewGMaps creates the sampler. Chrome launches lazily on the first scan.
func NewGMaps(cfg GMapsConfig) (*GMaps, error) {
	cfg.defaults()
	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("sampler: timezone %q: %w", cfg.Timezone, err)
	}
	mgr := browser.NewManager(browser.Config{
		RemoteURL:       cfg.RemoteURL,
		RecycleInterval: cfg.RecycleInterval,
		Logger:          cfg.Logger,
	})
	return &GMaps{cfg: cfg, mgr: mgr, tz: tz, logger: cfg.Logger}, nil
}

// Sample visits each location's place page in turn. Each attempt runs
// under its own SampleTimeout, so a hung page fails that location alone;
// only cancellation of ctx itself stops the remainder of the batch with
// no-data readings.
func (g *GMaps) Sample(ctx context.Context, locs []location.Location) []Reading {
	readings := make([]Reading, 0, len(locs))
	for i, loc := range locs {
		r := g.sampleLocation(ctx, loc)
		readings = append(readings, r)

		if i < len(locs)-1 {
			select {
			case <-ctx.Done():
				// Remaining locations get explicit no-data readings so the
				// batch stays positionally complete.
				for _, rest := range locs[i+1:] {
					readings = append(readings, Reading{
						LocationID: rest.ID,
						Source:     SourceNone,
						Err:        ctx.Err().Error(),
						CapturedAt: time.Now(),
					})
				}
				return readings
			case <-time.After(g.cfg.DelayBetween):
			}
		}
	}
	return readings
}

// sampleLocation bounds one location's attempt with the per-location
// timeout.
func (g *GMaps) sampleLocation(ctx context.Context, loc location.Location) Reading {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.SampleTimeout)
	defer cancel()
	return g.sampleOne(ctx, loc)
}

func (g *GMaps) sampleOne(ctx context.Context, loc location.Location) Reading {
	r := Reading{LocationID: loc.ID, Source: SourceNone, CapturedAt: time.Now()}

	page, err := g.mgr.Page(ctx, loc.URL)
	if err != nil {
		g.logger.Warn("sampler: open page failed", "location", loc.ID, "error", err)
		r.Err = err.Error()
		return r
	}
	defer page.Close()

	// Let the dynamic busyness widgets render.
	select {
	case <-ctx.Done():
		r.Err = ctx.Err().Error()
		return r
	case <-time.After(g.cfg.SettleTime):
	}

	// 1. Live percentage.
	if pct, ok := g.livePercent(ctx, page); ok {
		r.Busyness, r.HasData, r.Source = pct, true, SourceLive
		return r
	}

	// 2. Live text estimate.
	if pct, ok := g.liveText(ctx, page); ok {
		r.Busyness, r.HasData, r.Source = pct, true, SourceLive
		return r
	}

	// 3. Historical histogram for the current hour.
	if pct, ok := g.historical(ctx, page); ok {
		r.Busyness, r.HasData, r.Source = pct, true, SourceHistorical
		return r
	}

	g.logger.Debug("sampler: no busyness data", "location", loc.ID)
	return r
}

func (g *GMaps) livePercent(ctx context.Context, page *rod.Page) (int, bool) {
	els, err := page.Context(ctx).Elements(liveSelector)
	if err != nil {
		return 0, false
	}
	for _, el := range els {
		aria, err := el.Attribute("aria-label")
		if err != nil || aria == nil {
			continue
		}
		if pct, ok := ParseLivePercent(*aria); ok {
			return pct, true
		}
	}
	return 0, false
}

func (g *GMaps) liveText(ctx context.Context, page *rod.Page) (int, bool) {
	res, err := page.Context(ctx).Eval(`() => document.body.innerText`)
	if err != nil {
		return 0, false
	}
	return MatchLiveText(res.Value.Str())
}

func (g *GMaps) historical(ctx context.Context, page *rod.Page) (int, bool) {
	els, err := page.Context(ctx).Elements(historicalSelector)
	if err != nil {
		return 0, false
	}
	var entries []PopularTime
	for _, el := range els {
		aria, err := el.Attribute("aria-label")
		if err != nil || aria == nil {
			continue
		}
		if pt, ok := ParsePopularTime(*aria); ok {
			entries = append(entries, pt)
		}
	}
	return FindTodayHour(entries, time.Now().In(g.tz).Hour())
}

// Close shuts down the browser.
func (g *GMaps) Close() error {
	return g.mgr.Close()
}
