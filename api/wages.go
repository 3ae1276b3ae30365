package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/agro-ledger/wages"
)

// CreateWageRecord prices and stores one stage payroll submission.
// POST /api/wages/{stage}
func (h *Handler) CreateWageRecord(w http.ResponseWriter, r *http.Request) {
	stage := wages.Stage(chi.URLParam(r, "stage"))
	if !stage.Valid() {
		writeJSON(w, http.StatusNotFound, ResultDTO{Error: "Unknown stage"})
		return
	}

	var req WageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeResult(w, 0, "", err)
		return
	}

	ctx := r.Context()
	var id wages.RecordID
	switch stage {
	case wages.StageScraping:
		in := wages.ScrapingInput{Date: date, Notes: req.Notes, RateKa: string(req.RateKa), RateStik: string(req.RateStik), Actor: actor(r)}
		for _, it := range req.Items {
			in.Items = append(in.Items, wages.ScrapingItem{Name: it.Name, Ka: string(it.Ka), Stik: string(it.Stik)})
		}
		id, err = h.Wages.CreateScraping(ctx, in)
	case wages.StageCutting:
		in := wages.CuttingInput{Date: date, Notes: req.Notes, Actor: actor(r)}
		for _, it := range req.Items {
			in.Items = append(in.Items, wages.CuttingItem{Name: it.Name, Whole: string(it.Whole), Split: string(it.Split)})
		}
		id, err = h.Wages.CreateCutting(ctx, in)
	case wages.StageDrying:
		in := wages.DryingInput{Date: date, Notes: req.Notes, DailyRate: string(req.DailyRate), Actor: actor(r)}
		for _, it := range req.Items {
			in.Items = append(in.Items, wages.DryingItem{Name: it.Name, Days: string(it.Days)})
		}
		id, err = h.Wages.CreateDrying(ctx, in)
	case wages.StagePacking:
		in := wages.PackingInput{Date: date, Notes: req.Notes, Actor: actor(r)}
		for _, it := range req.Items {
			in.Items = append(in.Items, wages.PackingItem{Name: it.Name, Packs: string(it.Packs)})
		}
		id, err = h.Wages.CreatePacking(ctx, in)
	}

	if err == nil {
		h.Metrics.wageRecords.WithLabelValues(string(stage)).Inc()
	}
	writeResult(w, http.StatusCreated, string(id), err)
}

// ListWageRecords lists records of one stage.
// GET /api/wages/{stage}?from=2025-01-01&to=2025-01-31
func (h *Handler) ListWageRecords(w http.ResponseWriter, r *http.Request) {
	stage := wages.Stage(chi.URLParam(r, "stage"))
	if !stage.Valid() {
		writeError(w, http.StatusNotFound, "Unknown stage", nil)
		return
	}
	q := r.URL.Query()
	from, to, err := parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range (use YYYY-MM-DD)", err)
		return
	}

	recs, err := h.Wages.ListRecords(r.Context(), wages.RecordFilter{Stage: stage, From: from, To: to})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list wage records", err)
		return
	}
	dtos := make([]WageRecordDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toWageRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetWageRecord returns one record with its items.
// GET /api/wages/records/{id}
func (h *Handler) GetWageRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Wages.GetRecord(r.Context(), wages.RecordID(chi.URLParam(r, "id")))
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			writeError(w, http.StatusNotFound, "Wage record not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get wage record", err)
		return
	}
	writeJSON(w, http.StatusOK, toWageRecordDTO(*rec))
}
