// Package holdings parses the fund's holdings ledger into validated positions.
//
// The ledger is either a JSON list of records or a header-driven table
// (delimited text or an xlsx workbook). Malformed rows are skipped and reported
// in Result.Errors; only an unreadable source or a table without the mandatory
// ticker and shares columns fails the whole load.
package holdings

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/bobmcallan/classfund/internal/models"
	"github.com/bobmcallan/classfund/internal/ticker"
)

// Format selects the ledger parser.
type Format string

const (
	FormatJSON      Format = "json"
	FormatCSV       Format = "csv"
	FormatTSV       Format = "tsv"
	FormatDelimited Format = "delimited" // delimiter sniffed from the header line
	FormatXLSX      Format = "xlsx"
)

// ErrMissingColumn is returned when a table lacks a mandatory column.
var ErrMissingColumn = errors.New("missing mandatory column")

// Result is the outcome of a ledger load.
type Result struct {
	Holdings []models.Holding
	Errors   []models.RowError
}

// Tickers returns the distinct normalized tickers in ledger order.
func (r *Result) Tickers() []string {
	raw := make([]string, len(r.Holdings))
	for i, h := range r.Holdings {
		raw[i] = h.Ticker
	}
	return ticker.Unique(raw)
}

// FormatFromPath infers the ledger format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".csv":
		return FormatCSV
	case ".tsv", ".tab":
		return FormatTSV
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatDelimited
	}
}

// LoadFile reads and parses the ledger at path. An empty format means infer
// from the extension. A missing file yields an error wrapping fs.ErrNotExist
// whose message names the path.
func LoadFile(path string, format Format) (*Result, error) {
	if format == "" {
		format = FormatFromPath(path)
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("holdings ledger not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to open holdings ledger %s: %w", path, err)
	}
	defer f.Close()

	res, err := Load(f, format)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings ledger %s: %w", path, err)
	}
	return res, nil
}

// Load parses a ledger from r.
func Load(r io.Reader, format Format) (*Result, error) {
	switch format {
	case FormatJSON:
		return loadJSON(r)
	case FormatCSV:
		return loadDelimited(r, ',')
	case FormatTSV:
		return loadDelimited(r, '\t')
	case FormatDelimited:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger: %w", err)
		}
		return loadDelimited(bytes.NewReader(data), sniffDelimiter(data))
	case FormatXLSX:
		return loadXLSX(r)
	default:
		return nil, fmt.Errorf("unsupported ledger format %q", format)
	}
}

// --- JSON ---

type jsonRecord struct {
	Ticker       string          `json:"ticker"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Company      string          `json:"company"`
	Shares       json.RawMessage `json:"shares"`
	Quantity     json.RawMessage `json:"quantity"`
	CostBasis    json.RawMessage `json:"cost_basis"`
	CostBasisAlt json.RawMessage `json:"costBasis"`
}

func loadJSON(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	rows, err := jsonRows(data)
	if err != nil {
		return nil, err
	}

	res := &Result{Holdings: make([]models.Holding, 0, len(rows))}
	for i, raw := range rows {
		rowNum := i + 1
		var rec jsonRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			res.Errors = append(res.Errors, models.RowError{Row: rowNum, Reason: "malformed record: " + err.Error()})
			continue
		}

		name := firstNonEmpty(rec.Name, rec.Company)
		shares := firstRaw(rec.Shares, rec.Quantity)
		cost := firstRaw(rec.CostBasis, rec.CostBasisAlt)

		h, rowErr := buildHolding(rowNum, firstNonEmpty(rec.Ticker, rec.Symbol), name, rawNumber(shares), rawNumber(cost))
		if rowErr != nil {
			res.Errors = append(res.Errors, *rowErr)
			continue
		}
		res.Holdings = append(res.Holdings, h)
	}
	return res, nil
}

// jsonRows accepts a bare array or an object wrapping it under "holdings".
func jsonRows(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var rows []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("invalid ledger JSON: %w", err)
		}
		return rows, nil
	}

	var wrapper struct {
		Holdings []json.RawMessage `json:"holdings"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, fmt.Errorf("invalid ledger JSON: %w", err)
	}
	return wrapper.Holdings, nil
}

// rawNumber turns a JSON number or numeric string into text for decimal parsing.
func rawNumber(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return s
}

// --- Tables ---

var columnAliases = map[string][]string{
	"ticker":     {"ticker", "symbol", "ticker symbol", "code"},
	"name":       {"name", "company", "security", "description"},
	"shares":     {"shares", "quantity", "qty", "units"},
	"cost_basis": {"cost_basis", "costbasis", "cost basis", "cost"},
}

type columns struct {
	ticker, name, shares, costBasis int
}

func resolveColumns(header []string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	find := func(field string) int {
		for _, alias := range columnAliases[field] {
			if i, ok := index[alias]; ok {
				return i
			}
		}
		return -1
	}

	cols := columns{
		ticker:    find("ticker"),
		name:      find("name"),
		shares:    find("shares"),
		costBasis: find("cost_basis"),
	}

	var missing []string
	if cols.ticker < 0 {
		missing = append(missing, "ticker")
	}
	if cols.shares < 0 {
		missing = append(missing, "shares")
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return cols, nil
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func loadTable(records [][]string) (*Result, error) {
	res := &Result{Holdings: []models.Holding{}}
	if len(records) == 0 {
		return res, nil
	}

	cols, err := resolveColumns(records[0])
	if err != nil {
		return nil, err
	}

	for i, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		h, rowErr := buildHolding(i+1, cell(rec, cols.ticker), cell(rec, cols.name), cell(rec, cols.shares), cell(rec, cols.costBasis))
		if rowErr != nil {
			res.Errors = append(res.Errors, *rowErr)
			continue
		}
		res.Holdings = append(res.Holdings, h)
	}
	return res, nil
}

func loadDelimited(r io.Reader, delim rune) (*Result, error) {
	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid delimited ledger: %w", err)
	}
	return loadTable(records)
}

func loadXLSX(r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid xlsx ledger: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Result{Holdings: []models.Holding{}}, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return loadTable(rows)
}

// sniffDelimiter picks the candidate that appears most often in the header line.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// --- Row validation ---

func buildHolding(row int, rawTicker, name, rawShares, rawCost string) (models.Holding, *models.RowError) {
	t := ticker.Normalize(rawTicker)
	if t == "" {
		return models.Holding{}, &models.RowError{Row: row, Reason: "empty ticker"}
	}

	shares, err := parseDecimal(rawShares)
	if err != nil {
		return models.Holding{}, &models.RowError{Row: row, Ticker: t, Reason: fmt.Sprintf("unparseable shares %q", rawShares)}
	}
	if !shares.IsPositive() {
		return models.Holding{}, &models.RowError{Row: row, Ticker: t, Reason: fmt.Sprintf("shares must be positive, got %s", shares)}
	}
	if !finite(shares) {
		return models.Holding{}, &models.RowError{Row: row, Ticker: t, Reason: fmt.Sprintf("shares out of range %q", rawShares)}
	}

	h := models.Holding{
		Ticker: t,
		Name:   strings.TrimSpace(name),
		Shares: shares,
		Row:    row,
	}

	// Cost basis is optional; an unparseable value is dropped rather than failing the row.
	if rawCost != "" {
		if cost, err := parseDecimal(rawCost); err == nil {
			if !finite(cost) {
				return models.Holding{}, &models.RowError{Row: row, Ticker: t, Reason: fmt.Sprintf("cost basis out of range %q", rawCost)}
			}
			h.CostBasis = &cost
		}
	}
	return h, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "_", "")
	if s == "" {
		return decimal.Zero, errors.New("empty")
	}
	return decimal.NewFromString(s)
}

// finite reports whether d survives conversion to float64 for the JSON surface.
func finite(d decimal.Decimal) bool {
	f := d.InexactFloat64()
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstRaw(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		if len(v) > 0 && string(v) != "null" {
			return v
		}
	}
	return nil
}
