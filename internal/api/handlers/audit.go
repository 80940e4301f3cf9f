package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/itellico/mono/internal/audit"
)

type AuditHandler struct {
	svc *audit.Service
}

func NewAuditHandler(svc *audit.Service) *AuditHandler {
	return &AuditHandler{svc: svc}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	query := audit.Query{
		Action:       q.Get("action"),
		ResourceType: q.Get("resource_type"),
		Limit:        limit,
		Offset:       offset,
	}
	if s := q.Get("start_date"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start_date")
			return
		}
		query.StartDate = &t
	}
	if s := q.Get("end_date"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end_date")
			return
		}
		query.EndDate = &t
	}

	logs, err := h.svc.List(r.Context(), query)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"logs": logs, "count": len(logs)})
}
