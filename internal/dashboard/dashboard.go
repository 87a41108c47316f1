package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/rampede/rampede/internal/outcome"
	"github.com/rampede/rampede/internal/ramp"
	"github.com/rampede/rampede/internal/schedule"
)

// RunConfig holds the run parameters shown in the header.
type RunConfig struct {
	TargetURL  string        // Full target URL
	Method     string        // HTTP method
	Rates      []int         // Ascending rate levels (req/min)
	Window     time.Duration // Measurement window per level
	BatchSize  int           // Dispatches per cadence tick
	ConfigFile string        // Path to config file if used
}

// Dashboard renders a live terminal UI for a ramp run.
type Dashboard struct {
	tracker      *ramp.Tracker
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid              *ui.Grid
	summaryPara       *widgets.Paragraph
	levelGauge        *widgets.Gauge
	statusList        *widgets.List
	latencySparkle    *widgets.SparklineGroup
	throughputSparkle *widgets.SparklineGroup

	startTime time.Time
	targetURL string
	params    string
}

// New creates a new Dashboard. shutdownFunc is invoked when the operator
// quits; it should cancel the run context.
func New(tracker *ramp.Tracker, cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		tracker:      tracker,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		startTime:    time.Now(),
		targetURL:    cfg.TargetURL,
		params:       formatRunParams(cfg),
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	// Run Summary Paragraph
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Ramp"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	// Level Progress Gauge
	d.levelGauge = widgets.NewGauge()
	d.levelGauge.Title = "Level Progress"
	d.levelGauge.Percent = 0
	d.levelGauge.BarColor = ui.ColorBlue
	d.levelGauge.BorderStyle.Fg = ui.ColorCyan
	d.levelGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	// Status Bucket List (latest completed level)
	d.statusList = widgets.NewList()
	d.statusList.Title = "Last Level Status"
	d.statusList.Rows = []string{"Awaiting data"}
	d.statusList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.statusList.BorderStyle.Fg = ui.ColorCyan

	// Avg Latency Sparkline
	latency := widgets.NewSparkline()
	latency.Title = "Mean (ms)"
	latency.LineColor = ui.ColorGreen
	latency.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(latency)
	d.latencySparkle.Title = "Avg Latency by Level"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	// Achieved Throughput Sparkline
	throughput := widgets.NewSparkline()
	throughput.Title = "req/min"
	throughput.LineColor = ui.ColorMagenta
	throughput.Data = []float64{0}

	d.throughputSparkle = widgets.NewSparklineGroup(throughput)
	d.throughputSparkle.Title = "Achieved Throughput by Level"
	d.throughputSparkle.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.2,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.2,
			ui.NewCol(0.5, d.levelGauge),
			ui.NewCol(0.5, d.statusList),
		),
		ui.NewRow(0.3,
			ui.NewCol(1.0, d.latencySparkle),
		),
		ui.NewRow(0.3,
			ui.NewCol(1.0, d.throughputSparkle),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and cleans up.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			// Drain any remaining events
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			// Check if context is done to avoid blocking
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Do not return here; wait for Stop() to cancel context
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the tracker.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := d.tracker.Snapshot()
	elapsed := time.Since(d.startTime)

	d.summaryPara.Text = fmt.Sprintf(
		"Target: %s\n%s\nElapsed: %s | %s",
		d.targetURL,
		d.params,
		elapsed.Round(time.Second),
		phaseText(snap),
	)
	if snap.Phase == ramp.PhaseDone {
		d.summaryPara.BorderStyle.Fg = bannerColor(snap.Reason)
	}

	percent, label := gaugeState(snap)
	d.levelGauge.Percent = percent
	d.levelGauge.Label = label

	d.latencySparkle.Sparklines[0].Data = latencySeries(snap.Completed)
	if n := len(snap.Completed); n > 0 {
		last := snap.Completed[n-1]
		d.latencySparkle.Title = fmt.Sprintf(
			"Avg Latency by Level | Last: %.1fms | P99: %.1fms",
			last.Profile.MeanMs,
			last.Profile.P99Ms,
		)
	}

	throughput := throughputSeries(snap.Completed)
	d.throughputSparkle.Sparklines[0].Data = throughput
	if len(snap.Completed) > 0 {
		d.throughputSparkle.Title = fmt.Sprintf(
			"Achieved Throughput by Level | Last: %.0f/min",
			throughput[len(throughput)-1],
		)
	}

	d.statusList.Rows = statusRows(snap.Completed)
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

// phaseText renders the run's current phase for the header line.
func phaseText(snap ramp.Snapshot) string {
	switch snap.Phase {
	case ramp.PhaseWarmUp:
		return fmt.Sprintf("warm-up at %d/min (discarded)", snap.Rate)
	case ramp.PhaseLevel:
		return fmt.Sprintf("level %d/%d at %d/min", snap.LevelIndex+1, snap.LevelCount, snap.Rate)
	case ramp.PhaseSettling:
		return fmt.Sprintf("settling | %d/%d levels completed", len(snap.Completed), snap.LevelCount)
	case ramp.PhaseDone:
		return fmt.Sprintf("STOPPED: %s", snap.Reason)
	default:
		return "starting"
	}
}

// gaugeState maps the running level's batch progress to a percent and label.
func gaugeState(snap ramp.Snapshot) (int, string) {
	if snap.Total <= 0 {
		return 0, "waiting"
	}
	percent := snap.Issued * 100 / snap.Total
	if percent > 100 {
		percent = 100
	}
	return percent, fmt.Sprintf("%d/%d issued", snap.Issued, snap.Total)
}

// latencySeries is the mean latency of each completed level, in order.
func latencySeries(levels []schedule.Level) []float64 {
	if len(levels) == 0 {
		return []float64{0}
	}
	series := make([]float64, 0, len(levels))
	for _, level := range levels {
		series = append(series, level.Profile.MeanMs)
	}
	return series
}

// throughputSeries is the realized issue rate of each completed level.
func throughputSeries(levels []schedule.Level) []float64 {
	if len(levels) == 0 {
		return []float64{0}
	}
	series := make([]float64, 0, len(levels))
	for _, level := range levels {
		series = append(series, achievedRate(level))
	}
	return series
}

// achievedRate converts a level's issued count and elapsed time into
// requests per minute.
func achievedRate(level schedule.Level) float64 {
	if level.Elapsed <= 0 {
		return 0
	}
	return float64(level.Issued) / level.Elapsed.Minutes()
}

// statusRows formats the latest completed level's status buckets.
func statusRows(levels []schedule.Level) []string {
	if len(levels) == 0 {
		return []string{"[Awaiting first level](fg:green)"}
	}
	rows := levels[len(levels)-1].Aggregate.Rows()
	if len(rows) == 0 {
		return []string{"[No outcomes recorded](fg:yellow)"}
	}
	formatted := make([]string, 0, len(rows))
	for _, row := range rows {
		formatted = append(formatted, fmt.Sprintf("[%s](fg:%s) count=%d avg=%.1fms",
			row.Label,
			statusColor(row.Code),
			row.Stats.Count,
			row.Stats.AvgLatencyMs,
		))
	}
	return formatted
}

func statusColor(code int) string {
	switch {
	case code == outcome.StatusNone || code >= 500:
		return "red"
	case code >= 300:
		return "yellow"
	default:
		return "green"
	}
}

// bannerColor picks the summary border accent for a finished run.
func bannerColor(reason ramp.StopReason) ui.Color {
	switch reason {
	case ramp.StopExhausted:
		return ui.ColorGreen
	case ramp.StopLatencyDegraded:
		return ui.ColorYellow
	default:
		return ui.ColorRed
	}
}

// formatRunParams formats the run configuration parameters for display.
func formatRunParams(cfg RunConfig) string {
	var parts []string

	// Method (only show if non-default)
	if cfg.Method != "" && cfg.Method != "GET" {
		parts = append(parts, fmt.Sprintf("Method: %s", cfg.Method))
	}

	if len(cfg.Rates) > 0 {
		parts = append(parts, fmt.Sprintf("Rates: %s /min", joinRates(cfg.Rates)))
	}

	if cfg.Window > 0 {
		parts = append(parts, fmt.Sprintf("Window: %s", cfg.Window))
	}

	if cfg.BatchSize > 0 {
		parts = append(parts, fmt.Sprintf("Batch: %d", cfg.BatchSize))
	}

	// Config file (only show if used)
	if cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", cfg.ConfigFile))
	}

	if len(parts) == 0 {
		return ""
	}

	return strings.Join(parts, " | ")
}

func joinRates(rates []int) string {
	parts := make([]string, 0, len(rates))
	for _, rate := range rates {
		parts = append(parts, strconv.Itoa(rate))
	}
	return strings.Join(parts, ", ")
}
