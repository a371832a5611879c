package training

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/SyqJzcX/Ykz-deeplearning-env/checkpoints"
)

// MetricsReporter renders the recorded metric history of a checkpoint
// directory, independently of any training run. An optional sidecar
// plotting service receives the same payload when attached.
type MetricsReporter struct {
	Service *PlottingService // optional; nil keeps reporting local
}

// NewMetricsReporter creates a reporter with local rendering only.
func NewMetricsReporter() *MetricsReporter {
	return &MetricsReporter{}
}

// PlotMetrics loads every checkpoint under modelPath, merges and sorts the
// metric history by epoch, writes a self-contained HTML chart next to the
// checkpoints, and returns the plot payload. Per-file read failures were
// already skipped during the scan; an empty merged history is an error.
func (r *MetricsReporter) PlotMetrics(modelPath string) (*PlotData, error) {
	history, err := checkpoints.ScanHistory(modelPath)
	if err != nil {
		return nil, err
	}
	if history.Len() == 0 {
		return nil, fmt.Errorf("no readable checkpoints under %s", modelPath)
	}
	history.SortByEpoch()

	plot := BuildTrainingCurvesPlot(history)

	artifactPath := filepath.Join(modelPath, "training_metrics.html")
	if err := WriteChartHTML(plot, artifactPath); err != nil {
		return nil, err
	}

	if r.Service != nil && r.Service.IsEnabled() {
		if _, err := r.Service.SendPlotData(plot); err != nil {
			// The local artifact is the deliverable; sidecar delivery is
			// best-effort.
			fmt.Printf("Warning: failed to send plot to sidecar: %v\n", err)
		}
	}

	return &plot, nil
}

// PlotMetrics is the package-level convenience form with local rendering.
func PlotMetrics(modelPath string) (*PlotData, error) {
	return NewMetricsReporter().PlotMetrics(modelPath)
}

// WriteChartHTML renders the plot and writes it to path.
func WriteChartHTML(plot PlotData, path string) error {
	if err := os.WriteFile(path, RenderChartHTML(plot), 0644); err != nil {
		return fmt.Errorf("failed to write chart artifact: %v", err)
	}
	return nil
}

// RenderChartHTML renders a dual-axis line chart as a self-contained HTML
// document: no external plotting library, no server, opens in any browser.
// It is a pure function of the plot payload.
func RenderChartHTML(plot PlotData) []byte {
	var series strings.Builder
	for i, s := range plot.Series {
		if i > 0 {
			series.WriteString(",\n        ")
		}
		fmt.Fprintf(&series, `{name:%q,axis:%q,color:%q,xs:%s,ys:%s}`,
			s.Name, s.Axis, cssColor(s.Color), jsXValues(s.Data), jsYValues(s.Data))
	}

	html := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>%s</title>
<style>
  body { font-family: -apple-system, 'Segoe UI', sans-serif; background: #fff; color: #222; padding: 20px; }
  h1 { font-size: 20px; margin-bottom: 16px; }
  canvas { border: 1px solid #ddd; }
  .legend { margin-top: 10px; font-size: 13px; }
  .legend span { margin-right: 18px; }
</style>
</head>
<body>
<h1>%s</h1>
<canvas id="chart" width="%d" height="%d"></canvas>
<div class="legend" id="legend"></div>
<script>
  const series = [%s];
  const y2Min = %g, y2Max = %g;
  const xLabel = %q, yLabel = %q, y2Label = %q;

  const canvas = document.getElementById('chart');
  const ctx = canvas.getContext('2d');
  const pad = 60;
  const W = canvas.width, H = canvas.height;
  const cw = W - 2 * pad, ch = H - 2 * pad;

  let xMin = Infinity, xMax = -Infinity, yMin = Infinity, yMax = -Infinity;
  for (const s of series) {
    for (const x of s.xs) { xMin = Math.min(xMin, x); xMax = Math.max(xMax, x); }
    if (s.axis === 'left') {
      for (const y of s.ys) { yMin = Math.min(yMin, y); yMax = Math.max(yMax, y); }
    }
  }
  if (xMax === xMin) xMax = xMin + 1;
  if (yMax === yMin) yMax = yMin + 1;

  const px = x => pad + cw * (x - xMin) / (xMax - xMin);
  const pyL = y => H - pad - ch * (y - yMin) / (yMax - yMin);
  const pyR = y => H - pad - ch * (y - y2Min) / (y2Max - y2Min);

  // axes and grid
  ctx.strokeStyle = '#999'; ctx.lineWidth = 1;
  ctx.strokeRect(pad, pad, cw, ch);
  ctx.fillStyle = '#555'; ctx.font = '11px monospace';
  for (let i = 0; i <= 5; i++) {
    const fy = pad + ch * i / 5;
    ctx.strokeStyle = '#eee';
    ctx.beginPath(); ctx.moveTo(pad, fy); ctx.lineTo(W - pad, fy); ctx.stroke();
    ctx.textAlign = 'right';
    ctx.fillText((yMax - (yMax - yMin) * i / 5).toFixed(3), pad - 6, fy + 4);
    ctx.textAlign = 'left';
    ctx.fillText((y2Max - (y2Max - y2Min) * i / 5).toFixed(1), W - pad + 6, fy + 4);
  }
  ctx.textAlign = 'center';
  for (let i = 0; i <= 5; i++) {
    const x = xMin + (xMax - xMin) * i / 5;
    ctx.fillText(Math.round(x).toString(), px(x), H - pad + 18);
  }
  ctx.font = '13px sans-serif'; ctx.fillStyle = '#222';
  ctx.fillText(xLabel, W / 2, H - 12);
  ctx.save(); ctx.translate(16, H / 2); ctx.rotate(-Math.PI / 2);
  ctx.fillText(yLabel, 0, 0); ctx.restore();
  ctx.save(); ctx.translate(W - 14, H / 2); ctx.rotate(Math.PI / 2);
  ctx.fillText(y2Label, 0, 0); ctx.restore();

  // series
  const legend = document.getElementById('legend');
  for (const s of series) {
    const py = s.axis === 'right' ? pyR : pyL;
    ctx.strokeStyle = s.color; ctx.fillStyle = s.color; ctx.lineWidth = 2;
    ctx.beginPath();
    for (let i = 0; i < s.xs.length; i++) {
      const x = px(s.xs[i]), y = py(s.ys[i]);
      if (i === 0) ctx.moveTo(x, y); else ctx.lineTo(x, y);
    }
    ctx.stroke();
    for (let i = 0; i < s.xs.length; i++) {
      ctx.beginPath(); ctx.arc(px(s.xs[i]), py(s.ys[i]), 3, 0, 2 * Math.PI); ctx.fill();
    }
    const tag = document.createElement('span');
    tag.textContent = '● ' + s.name;
    tag.style.color = s.color;
    legend.appendChild(tag);
  }
</script>
</body>
</html>
`,
		plot.Title, plot.Title, plot.Config.Width, plot.Config.Height,
		series.String(), plot.Config.Y2Min, plot.Config.Y2Max,
		plot.Config.XAxisLabel, plot.Config.YAxisLabel, plot.Config.Y2AxisLabel)

	return []byte(html)
}

// cssColor maps the matplotlib-style palette names carried in PlotData to
// browser colors.
func cssColor(name string) string {
	switch name {
	case "tab:blue":
		return "#1f77b4"
	case "tab:orange":
		return "#ff7f0e"
	case "tab:green":
		return "#2ca02c"
	case "":
		return "#1f77b4"
	default:
		return name
	}
}

func jsXValues(points []DataPoint) string {
	return jsArray(points, func(p DataPoint) float64 { return p.X })
}

func jsYValues(points []DataPoint) string {
	return jsArray(points, func(p DataPoint) float64 { return p.Y })
}

// jsArray formats values as a JavaScript array, mapping non-finite floats
// to null so a stray NaN cannot break the embedded script.
func jsArray(points []DataPoint, get func(DataPoint) float64) string {
	var b strings.Builder
	b.WriteString("[")
	for i, p := range points {
		if i > 0 {
			b.WriteString(",")
		}
		v := get(p)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			b.WriteString("null")
		} else {
			fmt.Fprintf(&b, "%.6g", v)
		}
	}
	b.WriteString("]")
	return b.String()
}
