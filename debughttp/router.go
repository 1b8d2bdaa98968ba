// Package debughttp exposes read-only diagnostics for a carapace provider
// over HTTP.
//
//	GET /services                   registered descriptors
//	GET /services/{index}/callsite  call-site tree of one descriptor
//	GET /status                     provider status snapshot
package debughttp

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/carapace"
)

type handlers struct {
	provider *carapace.Provider
}

// NewRouter returns a handler serving diagnostics for p.
func NewRouter(p *carapace.Provider) http.Handler {
	h := &handlers{provider: p}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	r.Get("/services", h.services)
	r.Get("/services/{index}/callsite", h.callSite)
	r.Get("/status", h.status)

	return r
}

func (h *handlers) services(w http.ResponseWriter, _ *http.Request) {
	infos := carapace.Inspect(h.provider)
	if infos == nil {
		infos = []carapace.ServiceInfo{}
	}

	writeJSON(w, http.StatusOK, infos)
}

func (h *handlers) callSite(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}

	cs, err := h.provider.DescriptorCallSite(index)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if cs == nil {
		writeError(w, http.StatusNotFound, "no service at index "+strconv.Itoa(index))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(carapace.FormatCallSite(cs)))
}

func (h *handlers) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.provider.Status())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
