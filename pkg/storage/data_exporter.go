package storage

import (
	"context"
	"crypto/subtle"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"keyword-harvester/pkg/logger"
)

// utf8BOM makes spreadsheet tools read the CSV as UTF-8
const utf8BOM = "\xEF\xBB\xBF"

// ErrUnauthorized is returned when the export secret is missing or wrong
var ErrUnauthorized = errors.New("unauthorized")

var (
	logsHeader    = []string{"keyword", "country", "language", "date"}
	resultsHeader = []string{"category", "suggestion"}

	whitespace  = regexp.MustCompile(`\s+`)
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

// ResultRow is one line of a per-run results CSV
type ResultRow struct {
	Category   string
	Suggestion string
}

// CheckSecret compares the supplied secret with the server secret in
// constant time. An empty server secret rejects everything.
func CheckSecret(expected, given string) error {
	if expected == "" || given == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(given)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// DataExporter renders stored search logs as CSV
type DataExporter struct {
	sink   LogSink
	prefix string
	secret string
	log    *logger.Logger
}

// NewDataExporter creates an exporter reading keys under prefix from sink
func NewDataExporter(sink LogSink, prefix, secret string) *DataExporter {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &DataExporter{
		sink:   sink,
		prefix: prefix,
		secret: secret,
		log:    logger.GetLogger().WithField("component", "data_exporter"),
	}
}

// Authorize checks a caller-supplied secret without touching the sink
func (de *DataExporter) Authorize(given string) error {
	if err := CheckSecret(de.secret, given); err != nil {
		de.log.Warn("Rejected export request")
		return err
	}
	return nil
}

// ExportLogs writes every stored record to w and returns how many were
// written. Nothing is written when there are no records.
func (de *DataExporter) ExportLogs(ctx context.Context, w io.Writer) (int, error) {
	keys, err := de.sink.ListKeys(ctx, de.prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list log keys: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	sort.Strings(keys)

	stored, err := de.sink.GetMany(ctx, keys)
	if err != nil {
		return 0, fmt.Errorf("failed to load log records: %w", err)
	}

	records := make([]*LogRecord, 0, len(stored))
	for _, record := range stored {
		if record != nil {
			records = append(records, record)
		}
	}
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.Keyword, r.Country, r.Language, r.Date})
	}
	if err := writeCSV(w, logsHeader, rows); err != nil {
		return 0, err
	}

	de.log.WithField("records", len(records)).Info("Exported search logs")
	return len(records), nil
}

// WriteResultsCSV writes the results of one aggregation run
func WriteResultsCSV(w io.Writer, results []ResultRow) error {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{r.Category, r.Suggestion})
	}
	return writeCSV(w, resultsHeader, rows)
}

// ResultsFilename names the results CSV for keyword
func ResultsFilename(keyword string, now time.Time) string {
	safe := whitespace.ReplaceAllString(strings.TrimSpace(keyword), "_")
	safe = unsafeChars.ReplaceAllString(safe, "")
	return "suggestions_" + safe + "_" + strconv.FormatInt(now.Unix(), 10) + ".csv"
}

// LogsFilename names the search log export
func LogsFilename(now time.Time) string {
	return "search_logs_export_" + strconv.FormatInt(now.UnixMilli(), 10) + ".csv"
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv rows: %w", err)
	}
	return nil
}
