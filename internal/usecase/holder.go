package usecase

import (
	"sync"

	"Volatile/internal/domain/models"
)

// EstimationHolder keeps the latest completed estimation for readers such
// as the HTTP API.
type EstimationHolder struct {
	mu  sync.RWMutex
	est *models.Estimation
}

func NewEstimationHolder() *EstimationHolder { return &EstimationHolder{} }

func (h *EstimationHolder) Set(est *models.Estimation) {
	h.mu.Lock()
	h.est = est
	h.mu.Unlock()
}

// Get returns the latest estimation, or false before the first run ends.
func (h *EstimationHolder) Get() (*models.Estimation, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.est, h.est != nil
}
