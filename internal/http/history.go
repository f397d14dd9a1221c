package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/safetap/api/internal/history"
	httpmiddleware "github.com/safetap/api/internal/http/middleware"
)

// ListHistory devolve o histórico do usuário, mais recente primeiro.
// Filtros: type, search, day (YYYY-MM-DD), before (cursor) e limit.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	f, err := historyFilter(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	f.Owner = httpmiddleware.GetUsername(r.Context())

	events, err := history.Collect(h.deps.History.Query(r.Context(), f))
	if err != nil {
		writeDomainError(w, err, "não foi possível carregar histórico")
		return
	}
	if events == nil {
		events = []history.Event{}
	}

	resp := map[string]any{"events": events}
	if len(events) == history.NormalizeLimit(f.Limit) {
		resp["next_cursor"] = events[len(events)-1].Seq
	}
	WriteJSON(w, http.StatusOK, resp)
}

// ClearHistory apaga todo o histórico do usuário.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.History.Clear(r.Context(), httpmiddleware.GetUsername(r.Context())); err != nil {
		writeDomainError(w, err, "não foi possível limpar histórico")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type queryError string

func (e queryError) Error() string { return string(e) }

func historyFilter(r *http.Request) (history.Filter, error) {
	q := r.URL.Query()
	var f history.Filter

	t, err := history.ParseType(q.Get("type"))
	if err != nil {
		return f, err
	}
	f.Type = t
	f.Search = strings.TrimSpace(q.Get("search"))

	if v := q.Get("day"); v != "" {
		day, err := time.ParseInLocation("2006-01-02", v, time.UTC)
		if err != nil {
			return f, queryError("day deve usar o formato YYYY-MM-DD")
		}
		f.Day = day
	}
	if v := q.Get("before"); v != "" {
		before, err := strconv.ParseInt(v, 10, 64)
		if err != nil || before <= 0 {
			return f, queryError("cursor inválido")
		}
		f.Before = before
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		return f, queryError("limit inválido")
	}
	f.Limit = limit
	return f, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, queryError("número inválido")
	}
	return n, nil
}
