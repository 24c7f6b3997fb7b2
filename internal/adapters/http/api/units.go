package api

import "net/http"

// UnitsProvider exposes the allowed unit symbols.
type UnitsProvider interface {
	Units() []string
}

// UnitsHandler serves the ontology's unit list.
type UnitsHandler struct {
	units UnitsProvider
}

// NewUnitsHandler creates a new units handler.
func NewUnitsHandler(units UnitsProvider) *UnitsHandler {
	return &UnitsHandler{units: units}
}

type unitsResponse struct {
	Units []string `json:"units"`
}

// HandleUnits handles GET /ontology/units requests.
func (h *UnitsHandler) HandleUnits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	units := h.units.Units()
	if units == nil {
		units = []string{}
	}
	writeJSON(w, http.StatusOK, unitsResponse{Units: units})
}
