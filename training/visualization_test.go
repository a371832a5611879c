package training

import (
	"strings"
	"testing"

	"github.com/SyqJzcX/Ykz-deeplearning-env/checkpoints"
)

func TestAccuracyAxisBounds(t *testing.T) {
	tests := []struct {
		name        string
		percentages []float64
		wantMin     float64
		wantMax     float64
	}{
		{
			name:        "empty history",
			percentages: nil,
			wantMin:     0,
			wantMax:     100,
		},
		{
			name:        "narrow range uses minimum margin",
			percentages: []float64{80, 82},
			wantMin:     75,
			wantMax:     87,
		},
		{
			name:        "wide range uses proportional margin",
			percentages: []float64{10, 90},
			wantMin:     2,
			wantMax:     98,
		},
		{
			name:        "clamped at both ends",
			percentages: []float64{1, 99},
			wantMin:     0,
			wantMax:     100,
		},
		{
			name:        "single point",
			percentages: []float64{50},
			wantMin:     45,
			wantMax:     55,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			min, max := AccuracyAxisBounds(tt.percentages)
			if min != tt.wantMin || max != tt.wantMax {
				t.Errorf("AccuracyAxisBounds() = (%f, %f), want (%f, %f)",
					min, max, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestBuildTrainingCurvesPlot(t *testing.T) {
	history := &checkpoints.History{
		Epochs:    []int{1, 2, 3},
		TrainLoss: []float64{3.0, 2.0, 1.0},
		DevLoss:   []float64{3.5, 2.5, 1.5},
		DevAcc:    []float64{0.70, 0.80, 0.90},
	}

	plot := BuildTrainingCurvesPlot(history)

	if plot.PlotType != TrainingCurves {
		t.Errorf("unexpected plot type %q", plot.PlotType)
	}
	if len(plot.Series) != 3 {
		t.Fatalf("expected 3 series, got %d", len(plot.Series))
	}

	byName := map[string]SeriesData{}
	for _, s := range plot.Series {
		byName[s.Name] = s
	}

	trainLoss, ok := byName["Train Loss"]
	if !ok || trainLoss.Axis != "left" {
		t.Error("missing or misplaced Train Loss series")
	}
	devLoss, ok := byName["Validation Loss"]
	if !ok || devLoss.Axis != "left" {
		t.Error("missing or misplaced Validation Loss series")
	}
	devAcc, ok := byName["Validation Accuracy"]
	if !ok || devAcc.Axis != "right" {
		t.Fatal("missing or misplaced Validation Accuracy series")
	}

	// Accuracy is plotted as percentages against the epoch identities.
	if len(devAcc.Data) != 3 {
		t.Fatalf("expected 3 accuracy points, got %d", len(devAcc.Data))
	}
	if devAcc.Data[0].X != 1 || devAcc.Data[0].Y != 70 {
		t.Errorf("expected first accuracy point (1, 70), got (%f, %f)",
			devAcc.Data[0].X, devAcc.Data[0].Y)
	}
	if trainLoss.Data[2].X != 3 || trainLoss.Data[2].Y != 1.0 {
		t.Errorf("expected last train loss point (3, 1.0), got (%f, %f)",
			trainLoss.Data[2].X, trainLoss.Data[2].Y)
	}

	// Right axis bounds follow the margin rule: range 20, margin 5.
	if plot.Config.Y2Min != 65 || plot.Config.Y2Max != 95 {
		t.Errorf("expected accuracy axis [65, 95], got [%f, %f]",
			plot.Config.Y2Min, plot.Config.Y2Max)
	}
}

func TestRenderChartHTML(t *testing.T) {
	plot := BuildTrainingCurvesPlot(&checkpoints.History{
		Epochs:    []int{1, 2},
		TrainLoss: []float64{2.0, 1.0},
		DevLoss:   []float64{2.5, 1.5},
		DevAcc:    []float64{0.5, 0.75},
	})

	html := string(RenderChartHTML(plot))

	for _, want := range []string{
		"<!DOCTYPE html>",
		"Model Training Metrics Over Epochs",
		"Train Loss",
		"Validation Accuracy",
		"#1f77b4", // tab:blue resolved to a browser color
		"#2ca02c", // tab:green
		"<canvas",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered chart missing %q", want)
		}
	}
	if strings.Contains(html, "tab:blue") {
		t.Error("palette names leaked into the rendered chart")
	}
}
