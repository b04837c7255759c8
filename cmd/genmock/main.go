// Command genmock converts a survey CSV export into an .xlsx workbook so the
// workbook path of the etl command can be exercised with the same fixture.
// Numeric cells are written as numbers and ISO dates as date cells, the way
// field staff enter them in the spreadsheet.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -csv internal/pipeline/testdata/fincas_sample.csv \
//	  -xlsx data/mock/fincas_sample.xlsx
package main

import (
	"bytes"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Fincas"

func main() {
	csvPath := flag.String("csv", "", "survey CSV export to convert")
	xlsxPath := flag.String("xlsx", "", "workbook to write")
	flag.Parse()

	if *csvPath == "" || *xlsxPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	rows, err := readCSV(*csvPath)
	if err != nil {
		log.Fatalf("read %s: %v", *csvPath, err)
	}
	if err := writeWorkbook(*xlsxPath, rows); err != nil {
		log.Fatalf("write %s: %v", *xlsxPath, err)
	}
	fmt.Printf("Wrote %d rows to %s\n", len(rows)-1, *xlsxPath)
}

func readCSV(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(bytes.NewReader(data))
	line, _, _ := bytes.Cut(data, []byte("\n"))
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		r.Comma = ';'
	}
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no header in %s", path)
	}
	return rows, nil
}

func writeWorkbook(path string, rows [][]string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return err
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return err
	}

	for i, row := range rows {
		for j, raw := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			v := cellValue(raw, i == 0)
			if v == nil {
				continue
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
			if _, ok := v.(time.Time); ok {
				if err := f.SetCellStyle(sheetName, cell, cell, dateStyle); err != nil {
					return err
				}
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return f.SaveAs(path)
}

// cellValue types a CSV field for the workbook. Header cells stay text.
// Comma decimals become numbers; blanks are left empty.
func cellValue(raw string, header bool) any {
	if header {
		return raw
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64); err == nil {
		return f
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t
	}
	return raw
}
