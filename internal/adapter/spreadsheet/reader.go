// Package spreadsheet reads survey workbooks (.xlsx) and CSV exports into raw
// records keyed by normalised header.
package spreadsheet

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/farm-survey-etl/internal/domain"
)

// ErrUnsupportedFormat is returned for files that are neither .xlsx nor .csv.
var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader extracts raw rows from a spreadsheet file.
// It implements pipeline.Extractor.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a spreadsheet reader.
func NewReader(logger *slog.Logger) *Reader {
	return &Reader{logger: logger}
}

// Extract reads every sheet of an .xlsx workbook (sheet order, then row
// order) or a single .csv file. Blank cells become nil and rows with no
// values are skipped.
func (r *Reader) Extract(ctx context.Context, path string) ([]domain.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return r.readWorkbook(path)
	case ".csv":
		return r.readCSV(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func (r *Reader) readWorkbook(path string) ([]domain.RawRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var out []domain.RawRecord
	for _, sheet := range f.GetSheetList() {
		formatted, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(formatted) == 0 {
			continue
		}

		header := headerIndex(formatted[0])
		n := 0
		for i := 1; i < len(formatted); i++ {
			rec := make(domain.RawRecord, len(header))
			for _, h := range header {
				rec[h.name] = workbookCell(cellAt(formatted[i], h.col), cellAt(rowAt(raw, i), h.col))
			}
			if allBlank(rec) {
				continue
			}
			out = append(out, rec)
			n++
		}
		r.logger.Debug("sheet read", "sheet", sheet, "rows", n)
	}
	return out, nil
}

func (r *Reader) readCSV(path string) ([]domain.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data, err = decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	first, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse csv header: %w", err)
	}
	header := headerIndex(first)

	var out []domain.RawRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		rec := make(domain.RawRecord, len(header))
		for _, h := range header {
			rec[h.name] = textCell(cellAt(row, h.col))
		}
		if allBlank(rec) {
			continue
		}
		out = append(out, rec)
	}
	r.logger.Debug("csv read", "rows", len(out), "delimiter", string(cr.Comma))
	return out, nil
}

type column struct {
	name string
	col  int
}

// headerIndex normalises header cells. Empty headers are ignored and the
// first occurrence of a repeated header wins.
func headerIndex(cells []string) []column {
	seen := make(map[string]bool, len(cells))
	cols := make([]column, 0, len(cells))
	for i, c := range cells {
		name := domain.NormalizeHeader(strings.TrimPrefix(c, string(utf8BOM)))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		cols = append(cols, column{name: name, col: i})
	}
	return cols
}

func rowAt(rows [][]string, i int) []string {
	if i < len(rows) {
		return rows[i]
	}
	return nil
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func textCell(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// workbookCell chooses between the displayed and stored value of a cell.
// Numbers keep their stored value so display formats such as thousands
// separators do not leak into parsing. Date-formatted serials become
// time.Time.
func workbookCell(formatted, raw string) any {
	if strings.TrimSpace(formatted) == "" && strings.TrimSpace(raw) == "" {
		return nil
	}
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil || formatted == raw {
		return textCell(formatted)
	}
	if _, err := strconv.ParseFloat(formatted, 64); err == nil {
		return raw
	}
	if looksLikeDate(formatted) {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t
		}
	}
	return raw
}

func looksLikeDate(s string) bool {
	return strings.ContainsAny(s, "/:") || strings.Count(s, "-") == 2
}

func allBlank(rec domain.RawRecord) bool {
	for _, v := range rec {
		if v != nil {
			return false
		}
	}
	return true
}

// decodeText strips a UTF-8 BOM and falls back to Windows-1252 when the
// bytes are not valid UTF-8.
func decodeText(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	return charmap.Windows1252.NewDecoder().Bytes(data)
}

// sniffDelimiter picks ';' when the header line has more semicolons than
// commas, as in exports from Spanish-locale spreadsheets.
func sniffDelimiter(data []byte) rune {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}
