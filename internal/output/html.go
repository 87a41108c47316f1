package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rampede/rampede/internal/outcome"
	"github.com/rampede/rampede/internal/ramp"
	"github.com/rampede/rampede/internal/threshold"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt      string
	Result           *ramp.RunResult
	StopLabel        string
	StopClass        string
	TotalIssued      int
	Levels           []LevelView
	ThresholdSummary *ThresholdSummary
	LevelsJSON       string
}

// LevelView is one rate level flattened for the template.
type LevelView struct {
	Index    int
	Rate     int
	Issued   int
	Statuses string
	Profile  outcome.LatencyProfile
	Elapsed  time.Duration
}

// ThresholdSummary aggregates threshold outcomes for the report.
type ThresholdSummary struct {
	Total   int
	Passed  int
	Failed  int
	Results []ThresholdResultJSON
}

// ThresholdResultJSON is a flattened threshold result for display.
type ThresholdResultJSON struct {
	Threshold string  `json:"threshold"`
	Metric    string  `json:"metric"`
	Qualifier string  `json:"qualifier,omitempty"`
	Operator  string  `json:"operator"`
	Expected  float64 `json:"expected"`
	Actual    float64 `json:"actual"`
	Pass      bool    `json:"pass"`
}

// levelChartPoint is the per-level shape embedded as JSON for the charts.
type levelChartPoint struct {
	Rate   int     `json:"rate"`
	Issued int     `json:"issued"`
	MeanMs float64 `json:"mean_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P90Ms  float64 `json:"p90_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// WriteHTMLReport renders the HTML report into a file at path.
func WriteHTMLReport(path string, res *ramp.RunResult, thresholdResults []threshold.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := GenerateHTMLReport(f, res, thresholdResults); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// GenerateHTMLReport generates a standalone HTML report with embedded charts.
func GenerateHTMLReport(w io.Writer, res *ramp.RunResult, thresholdResults []threshold.Result) error {
	// Prepare threshold summary
	var thresholdSummary *ThresholdSummary
	if len(thresholdResults) > 0 {
		thresholdSummary = &ThresholdSummary{
			Total:   len(thresholdResults),
			Results: make([]ThresholdResultJSON, len(thresholdResults)),
		}
		for i, tr := range thresholdResults {
			thresholdSummary.Results[i] = ThresholdResultJSON{
				Threshold: tr.Threshold.Raw,
				Metric:    tr.Threshold.Metric,
				Qualifier: tr.Threshold.Qualifier,
				Operator:  tr.Threshold.Operator,
				Expected:  tr.Threshold.Value,
				Actual:    tr.Actual,
				Pass:      tr.Pass,
			}
			if tr.Pass {
				thresholdSummary.Passed++
			} else {
				thresholdSummary.Failed++
			}
		}
	}

	// Flatten levels for the table and the embedded charts
	views := make([]LevelView, len(res.Levels))
	points := make([]levelChartPoint, len(res.Levels))
	totalIssued := 0
	for i, level := range res.Levels {
		views[i] = LevelView{
			Index:    i + 1,
			Rate:     level.Rate,
			Issued:   level.Issued,
			Statuses: statusSummary(level.Aggregate),
			Profile:  level.Profile,
			Elapsed:  level.Elapsed,
		}
		points[i] = levelChartPoint{
			Rate:   level.Rate,
			Issued: level.Issued,
			MeanMs: level.Profile.MeanMs,
			P50Ms:  level.Profile.P50Ms,
			P90Ms:  level.Profile.P90Ms,
			P99Ms:  level.Profile.P99Ms,
		}
		totalIssued += level.Issued
	}

	// Convert levels to JSON for embedding in HTML
	levelsJSON, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to marshal levels: %w", err)
	}

	data := HTMLReportData{
		GeneratedAt:      time.Now().Format(time.RFC3339),
		Result:           res,
		StopLabel:        stopLine(res),
		StopClass:        stopClass(res.StopReason),
		TotalIssued:      totalIssued,
		Levels:           views,
		ThresholdSummary: thresholdSummary,
		LevelsJSON:       string(levelsJSON),
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			return d.Round(time.Millisecond).String()
		},
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

// statusSummary flattens a level aggregate into one display string,
// e.g. "200: 98, ERR: 2".
func statusSummary(agg outcome.LevelAggregate) string {
	rows := agg.Rows()
	if len(rows) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(rows))
	for _, row := range rows {
		parts = append(parts, fmt.Sprintf("%s: %d", row.Label, row.Stats.Count))
	}
	return strings.Join(parts, ", ")
}

// stopClass picks the card accent for the stop reason. Degradation is the
// expected end of a ramp; abnormal endings get the error accent.
func stopClass(reason ramp.StopReason) string {
	switch reason {
	case ramp.StopExhausted:
		return "success"
	case ramp.StopLatencyDegraded:
		return "warning"
	default:
		return "error"
	}
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Rampede Ramp Report</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 {
            font-size: 2rem;
            margin-bottom: 10px;
        }
        header .meta {
            opacity: 0.9;
            font-size: 0.9rem;
        }
        .content {
            padding: 40px;
        }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #667eea;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value {
            font-size: 2rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .card .subvalue {
            font-size: 0.85rem;
            color: #6c757d;
            margin-top: 5px;
        }
        .card.success {
            border-left-color: #10b981;
        }
        .card.error {
            border-left-color: #ef4444;
        }
        .card.warning {
            border-left-color: #f59e0b;
        }
        .section {
            margin-bottom: 40px;
        }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        .chart-container {
            background: white;
            border-radius: 8px;
            padding: 20px;
            margin-bottom: 30px;
            border: 1px solid #e5e7eb;
        }
        .chart-container h3 {
            font-size: 1.1rem;
            margin-bottom: 15px;
            color: #4b5563;
        }
        .chart {
            width: 100%;
            height: 300px;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            background: white;
        }
        th, td {
            text-align: left;
            padding: 12px;
            border-bottom: 1px solid #e5e7eb;
        }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #4b5563;
            font-size: 0.9rem;
            text-transform: uppercase;
            letter-spacing: 0.5px;
        }
        tr:hover {
            background: #f8f9fa;
        }
        .badge {
            display: inline-block;
            padding: 4px 12px;
            border-radius: 12px;
            font-size: 0.85rem;
            font-weight: 600;
        }
        .badge-success {
            background: #d1fae5;
            color: #065f46;
        }
        .badge-error {
            background: #fee2e2;
            color: #991b1b;
        }
        .no-data {
            text-align: center;
            padding: 40px;
            color: #6c757d;
            font-style: italic;
        }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header>
            <h1>🐏 Rampede Ramp Report</h1>
            <div class="meta">Run ID: {{.Result.RunID}}</div>
            <div class="meta">Generated: {{.GeneratedAt}} | Duration: {{formatDuration .Result.Elapsed}}</div>
        </header>

        <div class="content">
            <!-- Summary Cards -->
            <div class="grid">
                <div class="card">
                    <h3>Top Rate</h3>
                    <div class="value">{{.Result.TopRate}}</div>
                    <div class="subvalue">req/min sustained</div>
                </div>
                <div class="card">
                    <h3>Levels Completed</h3>
                    <div class="value">{{len .Levels}}</div>
                </div>
                <div class="card">
                    <h3>Requests Issued</h3>
                    <div class="value">{{.TotalIssued}}</div>
                    <div class="subvalue">across measured levels</div>
                </div>
                <div class="card {{.StopClass}}">
                    <h3>Stop Reason</h3>
                    <div class="value">{{.Result.StopReason}}</div>
                    <div class="subvalue">{{.StopLabel}}</div>
                </div>
            </div>

            <!-- Charts Section -->
            {{if .Levels}}
            <div class="section">
                <h2>Latency Across Rate Levels</h2>

                <div class="chart-container">
                    <h3>Latency Percentiles (ms)</h3>
                    <div id="latency-chart" class="chart"></div>
                </div>

                <div class="chart-container">
                    <h3>Mean Latency (ms)</h3>
                    <div id="mean-chart" class="chart"></div>
                </div>
            </div>

            <!-- Level Breakdown -->
            <div class="section">
                <h2>Rate Levels</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Level</th>
                            <th>Rate (req/min)</th>
                            <th>Issued</th>
                            <th>Statuses</th>
                            <th>Mean</th>
                            <th>P50</th>
                            <th>P90</th>
                            <th>P99</th>
                            <th>Elapsed</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Levels}}
                        <tr>
                            <td><strong>{{.Index}}</strong></td>
                            <td>{{.Rate}}</td>
                            <td>{{.Issued}}</td>
                            <td>{{.Statuses}}</td>
                            <td>{{formatFloat .Profile.MeanMs}} ms</td>
                            <td>{{formatFloat .Profile.P50Ms}} ms</td>
                            <td>{{formatFloat .Profile.P90Ms}} ms</td>
                            <td>{{formatFloat .Profile.P99Ms}} ms</td>
                            <td>{{formatDuration .Elapsed}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{else}}
            <div class="section">
                <h2>Rate Levels</h2>
                <div class="no-data">No levels completed before the run stopped.</div>
            </div>
            {{end}}

            <!-- Thresholds -->
            {{if .ThresholdSummary}}
            <div class="section">
                <h2>Thresholds ({{.ThresholdSummary.Passed}}/{{.ThresholdSummary.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Threshold</th>
                            <th>Metric</th>
                            <th>Expected</th>
                            <th>Actual</th>
                            <th>Status</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .ThresholdSummary.Results}}
                        <tr>
                            <td>{{.Threshold}}</td>
                            <td>{{.Metric}}{{if .Qualifier}}:{{.Qualifier}}{{end}}</td>
                            <td>{{.Operator}} {{formatFloat .Expected}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>
                                {{if .Pass}}
                                <span class="badge badge-success">✓ PASS</span>
                                {{else}}
                                <span class="badge badge-error">✗ FAIL</span>
                                {{end}}
                            </td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>

    {{if .Levels}}
    <script>
        // Prepare data for charts
        const levelsJSON = {{.LevelsJSON}};
        const levels = JSON.parse(levelsJSON);

        if (levels && levels.length > 0) {
            const rates = levels.map(d => d.rate);

            // Percentile chart
            const percentileData = [
                rates,
                levels.map(d => d.p50_ms),
                levels.map(d => d.p90_ms),
                levels.map(d => d.p99_ms)
            ];

            new uPlot({
                title: "Latency Percentiles by Rate",
                width: document.getElementById('latency-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Rate (req/min)" },
                    {
                        label: "P50",
                        stroke: "#10b981",
                        width: 2
                    },
                    {
                        label: "P90",
                        stroke: "#f59e0b",
                        width: 2
                    },
                    {
                        label: "P99",
                        stroke: "#ef4444",
                        width: 2
                    }
                ],
                axes: [
                    { label: "Rate (req/min)" },
                    { label: "Latency (ms)" }
                ]
            }, percentileData, document.getElementById('latency-chart'));

            // Mean latency chart
            const meanData = [
                rates,
                levels.map(d => d.mean_ms)
            ];

            new uPlot({
                title: "Mean Latency by Rate",
                width: document.getElementById('mean-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Rate (req/min)" },
                    {
                        label: "Mean",
                        stroke: "#667eea",
                        fill: "rgba(102, 126, 234, 0.1)",
                        width: 2
                    }
                ],
                axes: [
                    { label: "Rate (req/min)" },
                    { label: "Latency (ms)" }
                ]
            }, meanData, document.getElementById('mean-chart'));
        }
    </script>
    {{end}}
</body>
</html>
`
