// Package httpapi serves rngin's single routing decision endpoint using
// vanilla net/http, grounded on router/router.go's http.NewServeMux()
// method+path registration style and writeJSON/writeError helper pattern.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/dec112/prf/internal/rules"
)

// requestBody is the inbound shape of POST /api/v1/prf/req (spec.md §6).
type requestBody struct {
	RURI    string `json:"ruri"`
	Request string `json:"request"`
	Next    string `json:"next"`
}

// New builds rngin's HTTP handler. cache supplies the (possibly cached) rule
// set for each request; st is the read-only store backing queue predicates.
func New(cache *rules.Cache, st rules.Store, verbose bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/prf/req", handleRoute(cache, st, verbose))
	mux.HandleFunc("/", handleNotFound)
	return mux
}

func handleRoute(cache *rules.Cache, st rules.Store, verbose bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body requestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			if verbose {
				log.Printf("rngin: malformed request body: %v", err)
			}
			writeJSON(w, rules.ErrorResponse())
			return
		}

		headers, err := rules.DecodeRequestHeaders(body.Request)
		if err != nil {
			if verbose {
				log.Printf("rngin: %v", err)
			}
			writeJSON(w, rules.ErrorResponse())
			return
		}

		rs, err := cache.Get()
		if err != nil {
			log.Printf("rngin: rule file: %v", err)
			writeJSON(w, rules.ErrorResponse())
			return
		}

		req := rules.Request{RURI: body.RURI, Next: body.Next, Headers: headers}
		ec := rules.EvalContext{Store: st, Now: time.Now}

		resp := rules.Route(r.Context(), ec, rs, req)
		if verbose {
			log.Printf("rngin: %s -> %s (%d)", body.RURI, resp.Target, resp.StatusCode)
		}
		writeJSON(w, resp)
	}
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, rules.ErrorResponse())
}

// writeJSON sends resp with explicit chunked transfer encoding, matching
// spec.md §6's "Transfer-Encoding: chunked" requirement rather than letting
// net/http decide between chunked and a sniffed Content-Length.
func writeJSON(w http.ResponseWriter, resp rules.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Transfer-Encoding", "chunked")
	w.WriteHeader(resp.StatusCode)
	_ = json.NewEncoder(w).Encode(resp)
}
