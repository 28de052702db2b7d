package handler

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
)

// ExportTrips handles GET /trips/export?owner_id=.
// It returns one flat row per trip the owner published.
// Use ?format=csv to receive CSV; default is JSON.
func (s *Server) ExportTrips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	owner, err := uuid.Parse(q.Get("owner_id"))
	if err != nil {
		requestError(w, errors.New("owner_id must be a UUID"))
		return
	}
	format := q.Get("format")
	if format != "" && format != "csv" && format != "json" {
		requestError(w, errors.New("format must be csv or json"))
		return
	}

	rows, err := s.export.Export(r.Context(), owner)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	if format != "csv" {
		writeJSON(w, http.StatusOK, rows)
		return
	}

	// Header row is written even when there are no trips.
	var buf bytes.Buffer
	if err := gocsv.Marshal(rows, &buf); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="trips.csv"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
