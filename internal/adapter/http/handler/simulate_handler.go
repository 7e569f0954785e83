package handler

import (
	"core-ledger/internal/adapter/http/dto"
	"core-ledger/internal/core/ports"
	"core-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

const defaultSimulationSize = 10

// SimulateHandler drives random activity through the engine.
type SimulateHandler struct {
	sim      ports.Simulator
	currency string
}

// NewSimulateHandler creates a new SimulateHandler.
func NewSimulateHandler(sim ports.Simulator, currency string) *SimulateHandler {
	return &SimulateHandler{sim: sim, currency: currency}
}

// Run handles POST /api/v1/simulate. An empty body runs the default size.
func (h *SimulateHandler) Run(c *gin.Context) {
	var req dto.SimulateRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	if req.Count == 0 {
		req.Count = defaultSimulationSize
	}

	result, err := h.sim.Run(c.Request.Context(), req.Count)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, dto.NewSimulationResponse(result, h.currency))
}
