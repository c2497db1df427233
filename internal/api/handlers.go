package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/star/passwatch/internal/passes"
	"github.com/star/passwatch/internal/snapshot"
)

const (
	maxRequestBytes = 64 << 10
	maxStations     = 256
)

// stationBody mirrors one station in the request. Pointers distinguish a
// missing field from a zero value.
type stationBody struct {
	Name *string  `json:"name"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
	HgtM *float64 `json:"hgt_m"`
}

type nextPassBody struct {
	TLE1     *string        `json:"tle1"`
	TLE2     *string        `json:"tle2"`
	Stations *[]stationBody `json:"stations"`
}

// toRequest checks that every field is present and converts the body.
func (b nextPassBody) toRequest() (passes.Request, error) {
	if b.TLE1 == nil || b.TLE2 == nil {
		return passes.Request{}, errors.New("tle1 and tle2 are required")
	}
	if b.Stations == nil {
		return passes.Request{}, errors.New("stations is required")
	}
	if len(*b.Stations) > maxStations {
		return passes.Request{}, fmt.Errorf("at most %d stations per request", maxStations)
	}

	req := passes.Request{
		Line1:    *b.TLE1,
		Line2:    *b.TLE2,
		Stations: make([]passes.Station, 0, len(*b.Stations)),
	}
	for i, st := range *b.Stations {
		switch {
		case st.Name == nil:
			return passes.Request{}, fmt.Errorf("stations[%d]: name is required", i)
		case st.Lat == nil:
			return passes.Request{}, fmt.Errorf("stations[%d]: lat is required", i)
		case st.Lng == nil:
			return passes.Request{}, fmt.Errorf("stations[%d]: lng is required", i)
		case st.HgtM == nil:
			return passes.Request{}, fmt.Errorf("stations[%d]: hgt_m is required", i)
		}
		req.Stations = append(req.Stations, passes.Station{
			Name:    *st.Name,
			Lat:     *st.Lat,
			Lng:     *st.Lng,
			HeightM: *st.HgtM,
		})
	}
	return req, nil
}

// nextPassAllHandler handles POST /next_pass_all.
func nextPassAllHandler(logger *slog.Logger, svc *passes.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

		var body nextPassBody
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&body); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", mbe.Limit))
				return
			}
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}

		req, err := body.toRequest()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		result, err := svc.Compute(r.Context(), req)
		switch {
		case err == nil:
		case errors.Is(err, passes.ErrInvalidRequest), errors.Is(err, passes.ErrInvalidElementSet):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		default:
			logger.Error("pass computation failed", "component", "api", "error", err)
			writeError(w, http.StatusInternalServerError, "pass computation failed")
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// snapshotHandler serves the current snapshot file byte for byte.
func snapshotHandler(store *snapshot.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cur *snapshot.Loaded
		if store != nil {
			cur = store.Get()
		}
		if cur == nil {
			writeError(w, http.StatusServiceUnavailable, "snapshot not available")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", strconv.Itoa(len(cur.Raw)))
		w.Header().Set("Last-Modified", cur.ModTime.UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		w.Write(cur.Raw)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
