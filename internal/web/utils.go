// internal/web/utils.go
package web

import (
	"encoding/json"
	"net/http"
	"strings"
)

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits the structured error body: a human-readable message plus a
// stable machine code.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, map[string]string{"error": msg, "code": code}, status)
}

// shopParam reads the shop domain from a query or decoded body value, with
// tenant kept as a legacy alias.
func shopParam(q map[string][]string) string {
	for _, k := range []string{"shop", "tenant"} {
		if vs, ok := q[k]; ok && len(vs) > 0 && strings.TrimSpace(vs[0]) != "" {
			return strings.TrimSpace(vs[0])
		}
	}
	return ""
}
