package main

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/couchcryptid/rtdas-ingest-service/internal/domain"
)

// readingFields lists the measurement columns each station type reports,
// excluding stationID and inputDate.
var readingFields = map[string][]string{
	"aws": {
		"batteryLevel", "hourlyRainFall", "dailyRainfall", "averageTempreture", "windSpeed",
		"windDirection", "atmosphericPressure", "relativeHumidity", "sunRadiation",
	},
	"awlr": {"batteryLevel", "waterLevel"},
	"arg":  {"batteryLevel", "hourlyRainFall", "dailyRainfall"},
}

type generator struct {
	stations   int
	faultEvery int
}

// readings returns one reading per station for the given station type.
// Values derive from the station index and hour so repeated calls within the
// same hour return identical payloads.
func (g generator) readings(kind string) []map[string]any {
	fields := readingFields[kind]
	now := domain.Now().Truncate(time.Hour)
	out := make([]map[string]any, g.stations)
	for i := range out {
		rec := map[string]any{
			"stationID": stationID(kind, i),
			"inputDate": now.Format("2006-01-02 15:04:05"),
		}
		for j, f := range fields {
			rec[f] = float64((i+1)*10+j) + float64(now.Hour())/10
		}
		if g.faultEvery > 0 && (i+1)%g.faultEvery == 0 {
			rec[fields[i%len(fields)]] = domain.SentinelValue
		}
		out[i] = rec
	}
	return out
}

// master returns station metadata for the given station type.
func (g generator) master(kind string) []map[string]any {
	out := make([]map[string]any, g.stations)
	for i := range out {
		out[i] = map[string]any{
			"stationID": stationID(kind, i),
			"name":      fmt.Sprintf("%s Station %d", kind, i+1),
			"longitude": 106.8 + float64(i)/100,
			"latitude":  -6.2 - float64(i)/100,
			"location":  fmt.Sprintf("Site %d", i+1),
			"type":      kind,
			"zone":      nil,
		}
	}
	return out
}

func stationID(kind string, i int) string {
	return fmt.Sprintf("%s-%03d", kind, i+1)
}

func newMux(g generator) *http.ServeMux {
	mux := http.NewServeMux()
	for kind := range readingFields {
		mux.HandleFunc("GET /"+kind, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{domain.ReadingEnvelopeKey: g.readings(kind)})
		})
		mux.HandleFunc("GET /"+kind+"/master", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{domain.MasterEnvelopeKey: g.master(kind)})
		})
	}
	return mux
}

func withBasicAuth(user, password string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), []byte(password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="rtdas"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
