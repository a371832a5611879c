package training

import (
	"time"

	"github.com/SyqJzcX/Ykz-deeplearning-env/checkpoints"
)

// PlotType identifies the kind of plot a PlotData payload describes.
type PlotType string

const (
	// TrainingCurves is the dual-axis loss/accuracy-over-epochs plot.
	TrainingCurves PlotType = "training_curves"
)

// PlotData is the universal JSON payload consumed by both the local chart
// renderer and the sidecar plotting service.
type PlotData struct {
	PlotType  PlotType  `json:"plot_type"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	ModelName string    `json:"model_name"`

	Series []SeriesData `json:"series"`
	Config PlotConfig   `json:"config"`
}

// SeriesData is a single data series in a plot.
type SeriesData struct {
	Name  string      `json:"name"`
	Type  string      `json:"type"` // "line", "scatter", "bar"
	Axis  string      `json:"axis"` // "left" or "right"
	Data  []DataPoint `json:"data"`
	Color string      `json:"color,omitempty"`
	Marker string     `json:"marker,omitempty"`
}

// DataPoint is a single point in a series.
type DataPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlotConfig carries axis labels and scales for a dual-axis plot.
type PlotConfig struct {
	XAxisLabel  string  `json:"x_axis_label"`
	YAxisLabel  string  `json:"y_axis_label"`
	Y2AxisLabel string  `json:"y2_axis_label,omitempty"`
	Y2Min       float64 `json:"y2_min,omitempty"`
	Y2Max       float64 `json:"y2_max,omitempty"`
	ShowLegend  bool    `json:"show_legend"`
	ShowGrid    bool    `json:"show_grid"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
}

// AccuracyAxisBounds computes the display range for the accuracy axis from
// accuracy percentages: a margin of 5 percentage points or 10% of the
// observed range, whichever is larger, clamped to [0,100].
func AccuracyAxisBounds(percentages []float64) (min, max float64) {
	if len(percentages) == 0 {
		return 0, 100
	}
	lo, hi := percentages[0], percentages[0]
	for _, p := range percentages[1:] {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	margin := (hi - lo) * 0.1
	if margin < 5 {
		margin = 5
	}
	min = lo - margin
	if min < 0 {
		min = 0
	}
	max = hi + margin
	if max > 100 {
		max = 100
	}
	return min, max
}

// BuildTrainingCurvesPlot converts a sorted, merged checkpoint history into
// the dual-axis training-curves payload: train/validation loss on the left
// axis, validation accuracy as a percentage on an auto-scaled right axis.
func BuildTrainingCurvesPlot(history *checkpoints.History) PlotData {
	trainLoss := make([]DataPoint, 0, history.Len())
	devLoss := make([]DataPoint, 0, history.Len())
	devAcc := make([]DataPoint, 0, history.Len())
	percentages := make([]float64, 0, history.Len())

	for i, epoch := range history.Epochs {
		x := float64(epoch)
		trainLoss = append(trainLoss, DataPoint{X: x, Y: history.TrainLoss[i]})
		devLoss = append(devLoss, DataPoint{X: x, Y: history.DevLoss[i]})
		pct := history.DevAcc[i] * 100
		devAcc = append(devAcc, DataPoint{X: x, Y: pct})
		percentages = append(percentages, pct)
	}

	y2Min, y2Max := AccuracyAxisBounds(percentages)

	return PlotData{
		PlotType:  TrainingCurves,
		Title:     "Model Training Metrics Over Epochs",
		Timestamp: time.Now(),
		ModelName: "sequence-tagger",
		Series: []SeriesData{
			{Name: "Train Loss", Type: "line", Axis: "left", Data: trainLoss, Color: "tab:blue", Marker: "o"},
			{Name: "Validation Loss", Type: "line", Axis: "left", Data: devLoss, Color: "tab:orange", Marker: "s"},
			{Name: "Validation Accuracy", Type: "line", Axis: "right", Data: devAcc, Color: "tab:green", Marker: "^"},
		},
		Config: PlotConfig{
			XAxisLabel:  "Epoch",
			YAxisLabel:  "Loss",
			Y2AxisLabel: "Accuracy (%)",
			Y2Min:       y2Min,
			Y2Max:       y2Max,
			ShowLegend:  true,
			ShowGrid:    true,
			Width:       1200,
			Height:      700,
		},
	}
}
