// Package pipeline deduplicates and classifies raw marketplace records and
// writes the report of a run.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aluiziolira/jbscrape/models"
)

// DualWriter writes the same report as CSV and JSON.
type DualWriter struct {
	csvWriter  *CSVWriter
	jsonWriter *JSONWriter
	mu         sync.Mutex
}

// NewDualWriter opens both output files. If the JSON file cannot be created
// the CSV file is closed again.
func NewDualWriter(csvFilename, jsonFilename string) (*DualWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("dual writer csv: %w", err)
	}

	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("dual writer json: %w", err)
	}

	return &DualWriter{
		csvWriter:  csvWriter,
		jsonWriter: jsonWriter,
	}, nil
}

// DualFilenames derives the CSV and JSON file names from a single output
// path, whatever its extension.
func DualFilenames(output string) (csvFile, jsonFile string) {
	base := output
	for _, ext := range []string{".csv", ".json"} {
		if strings.HasSuffix(strings.ToLower(base), ext) {
			base = base[:len(base)-len(ext)]
			break
		}
	}
	return base + ".csv", base + ".json"
}

// Write sends the report to both writers. A CSV failure skips the JSON
// write.
func (dw *DualWriter) Write(report *models.Report) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.csvWriter.Write(report); err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	if err := dw.jsonWriter.Write(report); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

// Close closes both writers and reports every failure.
func (dw *DualWriter) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	var errs []error
	if err := dw.csvWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("csv: %w", err))
	}
	if err := dw.jsonWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("json: %w", err))
	}
	return errors.Join(errs...)
}

// Validate checks both output files.
func (dw *DualWriter) Validate() error {
	var errs []error
	if err := dw.csvWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("csv: %w", err))
	}
	if err := dw.jsonWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("json: %w", err))
	}
	return errors.Join(errs...)
}

// NewReportWriter opens the writer for format: "json", "csv" or "dual".
func NewReportWriter(format, filename string) (ReportWriter, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONWriter(filename)
	case "csv":
		return NewCSVWriter(filename)
	case "dual":
		return NewDualWriter(DualFilenames(filename))
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}
