package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ProcedureParam is the chi URL parameter holding the RPC procedure name.
const ProcedureParam = "procedure"

// Procedures maps RPC procedure names (e.g. "auth.me") to their handlers.
type Procedures map[string]http.HandlerFunc

// Merge returns a single table holding every procedure of sets. Later sets win on duplicates.
func Merge(sets ...Procedures) Procedures {
	out := make(Procedures)
	for _, set := range sets {
		for name, h := range set {
			out[name] = h
		}
	}
	return out
}

// ServeHTTP dispatches to the procedure named by the {procedure} route parameter.
// Only POST is accepted.
func (p Procedures) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		WriteError(w, http.StatusMethodNotAllowed, CodeBadRequest, "use POST")
		return
	}
	h, ok := p[chi.URLParam(r, ProcedureParam)]
	if !ok {
		WriteError(w, http.StatusNotFound, CodeUnknownProcedure, "")
		return
	}
	h(w, r)
}
