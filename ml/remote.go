package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteType model served by an external inference endpoint
const RemoteType = "remote"

// RemoteModel forwards single-row predictions to an HTTP inference service.
//
// The request body is {"data": [{"fixed acidity": 7.4, ...}]} and the service answers
// {"prediction_label": 5, "prediction_score": 0.61}; the score is optional.
type RemoteModel struct {
	URL      string
	Features []string

	httpClient *http.Client
}

type remoteRequest struct {
	Data []map[string]float64 `json:"data"`
}

type remoteResponse struct {
	Label *int     `json:"prediction_label"`
	Score *float64 `json:"prediction_score"`
	Error string   `json:"error"`
}

func NewRemoteModel(url string, features []string, timeout time.Duration) *RemoteModel {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteModel{
		URL:      url,
		Features: features,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (m *RemoteModel) Predict(ctx context.Context, features []float64) (Prediction, error) {
	if m.URL == "" {
		return Prediction{}, errors.New("remote model url is empty")
	}
	if len(features) != len(m.Features) {
		return Prediction{}, fmt.Errorf("expected %d features, got %d", len(m.Features), len(features))
	}

	row := make(map[string]float64, len(features))
	for i, name := range m.Features {
		row[name] = features[i]
	}
	requestBody, err := json.Marshal(remoteRequest{Data: []map[string]float64{row}})
	if err != nil {
		return Prediction{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.URL, bytes.NewReader(requestBody))
	if err != nil {
		return Prediction{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return Prediction{}, fmt.Errorf("call inference service: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Prediction{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Prediction{}, fmt.Errorf("inference service returned %d: %s", resp.StatusCode, bytes.TrimSpace(responseBody))
	}

	var decoded remoteResponse
	if err := json.Unmarshal(responseBody, &decoded); err != nil {
		return Prediction{}, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != "" {
		return Prediction{}, errors.New(decoded.Error)
	}
	if decoded.Label == nil {
		return Prediction{}, errors.New("response has no prediction_label")
	}

	prediction := Prediction{Label: *decoded.Label}
	if decoded.Score != nil {
		prediction.Score = *decoded.Score
		prediction.HasScore = true
	}
	return prediction, nil
}
