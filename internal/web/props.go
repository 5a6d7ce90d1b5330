package web

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strings"
)

// PropsStore is the property registry exposed over /api/props.
type PropsStore interface {
	Snapshot() map[string]string
	SetString(key, v string)
	Save() error
}

type PropsResponse struct {
	Props map[string]string `json:"props"`
	Keys  []string          `json:"keys"`
}

type propsUpdate struct {
	Set map[string]string `json:"set"`
}

// propsHandler serves the property snapshot on GET and applies
// {"set": {"key": "value"}} on POST, saving once per request.
func propsHandler(store PropsStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
		case http.MethodPost:
			var req propsUpdate
			dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
				return
			}
			if len(req.Set) == 0 {
				http.Error(w, "set is empty", http.StatusBadRequest)
				return
			}
			for k := range req.Set {
				if strings.TrimSpace(k) == "" {
					http.Error(w, "empty key", http.StatusBadRequest)
					return
				}
			}
			for k, v := range req.Set {
				store.SetString(strings.TrimSpace(k), v)
			}
			if err := store.Save(); err != nil {
				http.Error(w, "save failed: "+err.Error(), http.StatusInternalServerError)
				return
			}
			log.Printf("props updated via api keys=%d", len(req.Set))
		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		vals := store.Snapshot()
		keys := make([]string, 0, len(vals))
		for k := range vals {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		writeJSON(w, http.StatusOK, PropsResponse{Props: vals, Keys: keys})
	})
}
