package training

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PlottingService is an optional HTTP client for a sidecar dashboard that
// accepts PlotData payloads. It is disabled by default; the reporter's
// local HTML artifact never depends on it.
type PlottingService struct {
	baseURL    string
	httpClient *http.Client
	retry      PlottingServiceConfig
	enabled    bool
}

// PlottingServiceConfig configures the sidecar client.
type PlottingServiceConfig struct {
	BaseURL       string        `json:"base_url"`
	Timeout       time.Duration `json:"timeout"`
	RetryAttempts int           `json:"retry_attempts"`
	RetryDelay    time.Duration `json:"retry_delay"`
}

// DefaultPlottingServiceConfig returns the stock sidecar configuration.
func DefaultPlottingServiceConfig() PlottingServiceConfig {
	return PlottingServiceConfig{
		BaseURL:       "http://localhost:8080",
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    1 * time.Second,
	}
}

// PlottingResponse is the sidecar's reply to a plot submission.
type PlottingResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	PlotURL   string `json:"plot_url,omitempty"`
	ViewURL   string `json:"view_url,omitempty"`
	PlotID    string `json:"plot_id,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewPlottingService creates a sidecar client, disabled until Enable.
func NewPlottingService(config PlottingServiceConfig) *PlottingService {
	defaults := DefaultPlottingServiceConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = defaults.RetryAttempts
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	return &PlottingService{
		baseURL:    config.BaseURL,
		httpClient: &http.Client{Timeout: config.Timeout},
		retry:      config,
	}
}

// Enable enables plot submission.
func (ps *PlottingService) Enable() { ps.enabled = true }

// Disable disables plot submission.
func (ps *PlottingService) Disable() { ps.enabled = false }

// IsEnabled reports whether the client will submit plots.
func (ps *PlottingService) IsEnabled() bool { return ps.enabled }

// SendPlotData posts one plot payload to the sidecar.
func (ps *PlottingService) SendPlotData(plot PlotData) (*PlottingResponse, error) {
	if !ps.enabled {
		return &PlottingResponse{Success: false, Message: "plotting service is disabled"}, nil
	}

	payload, err := json.Marshal(plot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plot data: %w", err)
	}

	url := fmt.Sprintf("%s/api/plot", ps.baseURL)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ykz-training")

	resp, err := ps.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var plotResponse PlottingResponse
	if err := json.Unmarshal(body, &plotResponse); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &plotResponse, fmt.Errorf("HTTP request failed with status %d: %s", resp.StatusCode, plotResponse.Message)
	}
	return &plotResponse, nil
}

// SendPlotDataWithRetry posts a plot payload, retrying transient failures.
func (ps *PlottingService) SendPlotDataWithRetry(plot PlotData) (*PlottingResponse, error) {
	if !ps.enabled {
		return &PlottingResponse{Success: false, Message: "plotting service is disabled"}, nil
	}

	var lastErr error
	for attempt := 0; attempt < ps.retry.RetryAttempts; attempt++ {
		resp, err := ps.SendPlotData(plot)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt < ps.retry.RetryAttempts-1 {
			time.Sleep(ps.retry.RetryDelay)
		}
	}
	return nil, fmt.Errorf("failed to send plot data after %d attempts: %w", ps.retry.RetryAttempts, lastErr)
}

// CheckHealth verifies the sidecar is reachable.
func (ps *PlottingService) CheckHealth() error {
	if !ps.enabled {
		return fmt.Errorf("plotting service is disabled")
	}

	url := fmt.Sprintf("%s/health", ps.baseURL)
	resp, err := ps.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("failed to send health check request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status %d", resp.StatusCode)
	}
	return nil
}
