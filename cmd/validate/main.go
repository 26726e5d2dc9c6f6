// Command validate checks exported day files for integrity: the exact header,
// eleven columns per row, parseable numeric cells, and every utc timestamp
// inside the day named by the file.
//
// Usage:
//
//	go run ./cmd/validate 2024-01-02.csv 2024-01-03.csv
package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/couchcryptid/aq-export-service/internal/domain"
)

// maxErrors caps the detail printed per file.
const maxErrors = 20

// phase tracks pass/fail for one file.
type phase struct {
	name   string
	rows   int
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: validate FILE.csv [FILE.csv ...]")
		os.Exit(1)
	}
	os.Exit(run(flag.Args(), os.Stdout))
}

func run(paths []string, out io.Writer) int {
	fmt.Fprintln(out, "=== Export File Validation ===")
	fmt.Fprintln(out)

	phases := make([]*phase, 0, len(paths))
	for _, path := range paths {
		phases = append(phases, validateFile(path))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %8d rows  %s\n", p.name, p.rows, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxErrors {
				fmt.Fprintf(out, "  ... %d more\n", len(p.errors)-maxErrors)
				break
			}
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func validateFile(path string) *phase {
	p := &phase{name: path}

	window, err := domain.WindowForFile(path)
	if err != nil {
		p.errorf("%v", err)
		return p
	}

	f, err := os.Open(path)
	if err != nil {
		p.errorf("open: %v", err)
		return p
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		p.errorf("read header: %v", err)
		return p
	}
	if !slices.Equal(header, domain.Columns) {
		p.errorf("header mismatch: got %v, want %v", header, domain.Columns)
	}

	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.errorf("line %d: %v", line, err)
			break
		}
		p.rows++
		validateRow(p, line, row, window)
	}
	if p.rows == 0 {
		p.errorf("no data rows; empty days must not produce a file")
	}
	return p
}

func validateRow(p *phase, line int, row []string, window domain.DayWindow) {
	if len(row) != len(domain.Columns) {
		p.errorf("line %d: %d columns, want %d", line, len(row), len(domain.Columns))
		return
	}
	cell := func(name string) string { return row[slices.Index(domain.Columns, name)] }

	utc, err := time.Parse(domain.UTCLayout, cell("utc"))
	if err != nil {
		p.errorf("line %d: utc %q: %v", line, cell("utc"), err)
	} else if !window.Contains(utc) {
		p.errorf("line %d: utc %s outside %s", line, cell("utc"), window.Name())
	}

	if _, err := strconv.ParseFloat(cell("value"), 64); err != nil {
		p.errorf("line %d: value %q is not a number", line, cell("value"))
	}

	lat, lon := cell("latitude"), cell("longitude")
	if (lat == "") != (lon == "") {
		p.errorf("line %d: latitude and longitude must both be set or both be empty", line)
	}
	for _, c := range []string{lat, lon} {
		if c == "" {
			continue
		}
		if _, err := strconv.ParseFloat(c, 64); err != nil {
			p.errorf("line %d: coordinate %q is not a number", line, c)
		}
	}

	if a := cell("attribution"); a != "" {
		var attrs []domain.Attribution
		if err := json.Unmarshal([]byte(a), &attrs); err != nil {
			p.errorf("line %d: attribution is not a JSON array: %v", line, err)
		}
	}
}
