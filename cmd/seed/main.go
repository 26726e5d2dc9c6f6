// Command seed writes synthetic measurements into a SQLite store so the
// exporter can run locally with STORE_DRIVER=sqlite.
//
// Usage:
//
//	go run ./cmd/seed \
//	  -db data/measurements.db \
//	  -from 2024-01-01 -to 2024-01-07 \
//	  -per-day 500
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/couchcryptid/aq-export-service/internal/adapter/sqlite"
	"github.com/couchcryptid/aq-export-service/internal/domain"
)

type station struct {
	location string
	city     string
	country  string
	offset   time.Duration
	coords   *domain.Coordinates
}

var stations = []station{
	{"US Diplomatic Post: Hanoi", "Hanoi", "VN", 7 * time.Hour, &domain.Coordinates{Latitude: 21.0218, Longitude: 105.819}},
	{"Anand Vihar", "Delhi", "IN", 330 * time.Minute, &domain.Coordinates{Latitude: 28.6469, Longitude: 77.3152}},
	{"London Marylebone Road", "London", "GB", 0, &domain.Coordinates{Latitude: 51.5225, Longitude: -0.1546}},
	{"Pasadena", "Los Angeles", "US", -8 * time.Hour, &domain.Coordinates{Latitude: 34.1326, Longitude: -118.1272}},
	{"Estación Centro", "Santiago", "CL", -3 * time.Hour, nil},
}

var parameters = []struct {
	name string
	unit string
	max  float64
}{
	{"pm25", "µg/m³", 250},
	{"pm10", "µg/m³", 400},
	{"o3", "ppm", 0.12},
	{"no2", "ppm", 0.2},
	{"co", "ppm", 9},
}

var attribution = []domain.Attribution{{Name: "EEA", URL: "https://www.eea.europa.eu"}}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dbPath := flag.String("db", "data/measurements.db", "path to the SQLite measurement store")
	from := flag.String("from", "", "first UTC day to seed (YYYY-MM-DD)")
	to := flag.String("to", "", "last UTC day to seed, inclusive (YYYY-MM-DD)")
	perDay := flag.Int("per-day", 500, "measurements per day")
	seed := flag.Uint64("seed", 1, "random seed for reproducible fixtures")
	flag.Parse()

	if *from == "" || *to == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -from, -to")
	}
	first, err := time.Parse(domain.DayLayout, *from)
	if err != nil {
		return fmt.Errorf("parse -from: %w", err)
	}
	last, err := time.Parse(domain.DayLayout, *to)
	if err != nil {
		return fmt.Errorf("parse -to: %w", err)
	}
	if last.Before(first) {
		return fmt.Errorf("-to %s is before -from %s", *to, *from)
	}
	if *perDay <= 0 {
		return fmt.Errorf("-per-day must be positive")
	}

	ctx := context.Background()
	db, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	total := 0
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		records := generateDay(rng, day, *perDay)
		if err := sqlite.Insert(ctx, db, records); err != nil {
			return fmt.Errorf("seed %s: %w", day.Format(domain.DayLayout), err)
		}
		total += len(records)
		log.Printf("%s: %d measurements", day.Format(domain.DayLayout), len(records))
	}

	log.Printf("total: %d measurements in %s", total, *dbPath)
	return nil
}

// generateDay spreads n measurements evenly across the day, ending at the
// window's last second so boundary handling is exercised.
func generateDay(rng *rand.Rand, day time.Time, n int) []domain.RawRecord {
	step := (24*time.Hour - time.Second) / time.Duration(max(n-1, 1))
	out := make([]domain.RawRecord, 0, n)
	for i := range n {
		st := stations[rng.IntN(len(stations))]
		p := parameters[rng.IntN(len(parameters))]
		utc := day.Add(time.Duration(i) * step).Truncate(time.Millisecond)
		if i == n-1 {
			utc = day.Add(24*time.Hour - time.Second)
		}

		rec := domain.RawRecord{
			Location:    st.location,
			City:        st.city,
			Country:     st.country,
			Date:        domain.RecordDate{UTC: utc, Local: localTime(utc, st.offset)},
			Parameter:   p.name,
			Value:       float64(int(rng.Float64()*p.max*1000)) / 1000,
			Unit:        p.unit,
			Coordinates: st.coords,
		}
		if st.country == "GB" {
			rec.Attribution = attribution
		}
		out = append(out, rec)
	}
	return out
}

func localTime(utc time.Time, offset time.Duration) string {
	zone := time.FixedZone("", int(offset.Seconds()))
	return utc.In(zone).Format("2006-01-02T15:04:05-07:00")
}
