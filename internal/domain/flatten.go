package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// UTCLayout renders record timestamps in UTC with millisecond precision.
const UTCLayout = "2006-01-02T15:04:05.000Z"

// Columns is the fixed export column order. It never changes between days.
var Columns = []string{
	"location", "city", "country", "utc", "local", "parameter",
	"value", "unit", "latitude", "longitude", "attribution",
}

// Flatten replaces the nested date and coordinates with scalar fields.
func (r RawRecord) Flatten() FlatRecord {
	flat := FlatRecord{
		Location:    r.Location,
		City:        r.City,
		Country:     r.Country,
		Local:       r.Date.Local,
		Parameter:   r.Parameter,
		Value:       r.Value,
		Unit:        r.Unit,
		Attribution: r.Attribution,
	}
	if !r.Date.UTC.IsZero() {
		flat.UTC = r.Date.UTC.UTC().Format(UTCLayout)
	}
	if r.Coordinates != nil {
		lat, lon := r.Coordinates.Latitude, r.Coordinates.Longitude
		flat.Latitude = &lat
		flat.Longitude = &lon
	}
	return flat
}

// Flatten on an already flat record is the identity.
func (f FlatRecord) Flatten() FlatRecord {
	return f
}

// Validate rejects records that cannot be serialized meaningfully.
func (f FlatRecord) Validate() error {
	if f.UTC == "" {
		return errors.New("record has no utc timestamp")
	}
	if math.IsNaN(f.Value) || math.IsInf(f.Value, 0) {
		return fmt.Errorf("record value %v is not finite", f.Value)
	}
	return nil
}

// Cells renders the record in Columns order. Missing scalars become empty cells.
func (f FlatRecord) Cells() ([]string, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	attribution := ""
	if len(f.Attribution) > 0 {
		data, err := json.Marshal(f.Attribution)
		if err != nil {
			return nil, fmt.Errorf("marshal attribution: %w", err)
		}
		attribution = string(data)
	}
	return []string{
		f.Location,
		f.City,
		f.Country,
		f.UTC,
		f.Local,
		f.Parameter,
		formatFloat(f.Value),
		f.Unit,
		formatOptionalFloat(f.Latitude),
		formatOptionalFloat(f.Longitude),
		attribution,
	}, nil
}

// formatFloat uses the shortest representation that parses back to v.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
