package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/onnwee/convbot/convert"
)

// maxQueryLength bounds /convert input; chat lines are capped at 500 characters.
const maxQueryLength = 500

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	rates     RateView
	converter Converter
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(rates RateView, converter Converter) *Handlers {
	return &Handlers{rates: rates, converter: converter}
}

type convertResponse struct {
	Reply  string `json:"reply"`
	Source string `json:"source"`
}

// HandleConvert runs ?q= through the conversion pipeline. A silent result is 204.
func (h *Handlers) HandleConvert(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		http.Error(w, "missing q", http.StatusBadRequest)
		return
	}
	if len(q) > maxQueryLength {
		http.Error(w, "q too long", http.StatusRequestEntityTooLarge)
		return
	}
	reply := h.converter.Handle(r.Context(), q)
	if reply.Silent() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, convertResponse{Reply: reply.Text, Source: reply.Source})
}

type ratesResponse struct {
	Base       string             `json:"base"`
	FetchedAt  *time.Time         `json:"fetched_at"`
	Currencies []string           `json:"currencies"`
	Rates      map[string]float64 `json:"rates"`
}

// HandleRates returns the cached exchange table without triggering a fetch.
func (h *Handlers) HandleRates(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	resp := ratesResponse{
		Base:       convert.PivotCurrency,
		Currencies: h.rates.Currencies(),
		Rates:      h.rates.Table(),
	}
	if resp.Currencies == nil {
		resp.Currencies = []string{}
	}
	if at := h.rates.FetchedAt(); !at.IsZero() {
		at = at.UTC()
		resp.FetchedAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}
