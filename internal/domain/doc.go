// Package domain models air-quality measurement records and the daily export
// unit of work.
//
// # Records
//
// A stored measurement nests its timestamp and position:
//
//	{
//	  "location": "US Diplomatic Post: Hanoi", "city": "Hanoi", "country": "VN",
//	  "date": {"utc": ISODate("2024-01-02T05:00:00Z"), "local": "2024-01-02T12:00:00+07:00"},
//	  "parameter": "pm25", "value": 41.5, "unit": "µg/m³",
//	  "coordinates": {"latitude": 21.0218, "longitude": 105.8190},
//	  "attribution": [{"name": "EPA AirNow DOS", "url": "http://airnow.gov/"}]
//	}
//
// Coordinates are optional; some stations never report a position.
//
// # Flattening
//
// Exports are tabular, so [RawRecord.Flatten] lifts date.utc, date.local,
// coordinates.latitude and coordinates.longitude to top-level scalars. Absent
// coordinates become empty cells. Column order is fixed by [Columns].
//
// # Day windows
//
// A task is handed a reference date and exports the calendar day before it:
// reference 2024-01-03 queries 2024-01-02T00:00:00Z through
// 2024-01-02T23:59:59Z and writes 2024-01-02.csv. See [WindowFor].
//
// # Failures
//
// Each failing stage is recorded as a [StageError] with an [ErrorKind]. A day
// with no records is not a failure; its outcome is [OutcomeNoData].
package domain
