package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"winequality/db"
	"winequality/predict"
	"winequality/wine"
)

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !h.service.Ready() {
		status = "degraded"
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       status,
		"model_loaded": h.service.Ready(),
	})
}

func (h *Handlers) handleFields(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"fields": wine.Fields(),
		"label":  wine.LabelColumn,
		"scale":  wine.Scale(),
	})
}

// handlePredictAPI takes a JSON object keyed by dataset column name; omitted columns take their defaults.
func (h *Handlers) handlePredictAPI(w http.ResponseWriter, r *http.Request) {
	var values map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	sample, err := wine.FromMap(values)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Predict(r.Context(), sample)
	if err != nil {
		var verrs wine.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":  err.Error(),
				"fields": verrs,
			})
		case errors.Is(err, predict.ErrNoModel):
			writeError(w, http.StatusServiceUnavailable, modelLoadFailed)
		default:
			h.log.Warn("api prediction failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
			writeError(w, http.StatusBadGateway, "Prediction failed: "+err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handlers) handlePredictions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > 500 {
			n = 500
		}
		limit = n
	}

	records, err := db.RecentPredictions(limit)
	if err != nil {
		if errors.Is(err, db.ErrNotInitialized) {
			writeError(w, http.StatusServiceUnavailable, "prediction log is disabled")
			return
		}
		h.log.Error("query predictions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load predictions")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"predictions": records,
		"count":       len(records),
	})
}

func (h *Handlers) handleStats(w http.ResponseWriter, r *http.Request) {
	clients := 0
	if h.hub != nil {
		clients = h.hub.ClientCount()
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"service":           h.service.Stats(),
		"websocket_clients": clients,
	})
}
