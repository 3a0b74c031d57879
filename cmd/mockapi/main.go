// Command mockapi serves deterministic RTDAS-shaped responses for local
// development. Every reading endpoint injects -99 fault values into a fixed
// share of records so validation paths can be exercised end to end.
//
// Usage:
//
//	go run ./cmd/mockapi -addr :9090 -user rtdas -password secret
//
// Then point the sources file at it, e.g. AWS_URL=http://localhost:9090/aws.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/rtdas-ingest-service/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	addr := flag.String("addr", ":9090", "listen address")
	user := flag.String("user", "rtdas", "basic auth username")
	password := flag.String("password", "secret", "basic auth password")
	stations := flag.Int("stations", 5, "stations per source")
	faultEvery := flag.Int("fault-every", 4, "inject a -99 value into every Nth reading (0 disables)")
	at := flag.String("at", "", "fixed RFC 3339 time for readings (default: now)")
	flag.Parse()

	if *stations <= 0 {
		flag.Usage()
		return fmt.Errorf("-stations must be positive")
	}

	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("parse -at: %w", err)
		}
		domain.SetClock(clockwork.NewFakeClockAt(t))
		defer domain.SetClock(nil)
	}

	gen := generator{stations: *stations, faultEvery: *faultEvery}
	handler := withBasicAuth(*user, *password, newMux(gen))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("mock RTDAS API listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
