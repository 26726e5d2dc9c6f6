package domain

import "time"

// Attribution credits the upstream provider of a measurement.
type Attribution struct {
	Name string `bson:"name" json:"name"`
	URL  string `bson:"url,omitempty" json:"url,omitempty"`
}

// RecordDate holds the measurement timestamp in UTC and as reported locally.
type RecordDate struct {
	UTC   time.Time `bson:"utc" json:"utc"`
	Local string    `bson:"local" json:"local"`
}

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// RawRecord is a measurement as stored, with nested date and coordinate
// sub-documents. Coordinates is nil when the station reported no position.
type RawRecord struct {
	Location    string        `bson:"location" json:"location"`
	City        string        `bson:"city" json:"city"`
	Country     string        `bson:"country" json:"country"`
	Date        RecordDate    `bson:"date" json:"date"`
	Parameter   string        `bson:"parameter" json:"parameter"`
	Value       float64       `bson:"value" json:"value"`
	Unit        string        `bson:"unit" json:"unit"`
	Coordinates *Coordinates  `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
	Attribution []Attribution `bson:"attribution,omitempty" json:"attribution,omitempty"`
}

// FlatRecord is the tabular shape written to the export files.
// Latitude and Longitude are nil when the source record had no coordinates.
type FlatRecord struct {
	Location    string
	City        string
	Country     string
	UTC         string
	Local       string
	Parameter   string
	Value       float64
	Unit        string
	Latitude    *float64
	Longitude   *float64
	Attribution []Attribution
}
