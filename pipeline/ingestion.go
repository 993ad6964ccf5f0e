package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// LoadOptions 数据加载选项
type LoadOptions struct {
	// Sheet selects the worksheet of an .xlsx file. Empty means the first sheet.
	Sheet        string
	ProfitColumn string
	RateColumn   string
	// Encoding names the character set of a .csv file ("gbk", "gb18030", ...). Empty means UTF-8.
	Encoding string
}

func (o LoadOptions) withDefaults() LoadOptions {
	if o.ProfitColumn == "" {
		o.ProfitColumn = "profit"
	}
	if o.RateColumn == "" {
		o.RateColumn = "rate"
	}
	return o
}

// Load reads a dataset from an .xlsx or .csv file, picking the reader by extension.
func Load(path string, opts LoadOptions) (Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return LoadXLSX(path, opts)
	case ".csv":
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return LoadCSV(file, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// LoadXLSX reads the configured sheet of a workbook. Cell values are read raw so
// percentage or currency formatting does not leak into the numbers.
func LoadXLSX(path string, opts LoadOptions) (Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return fromRows(rows, opts.withDefaults())
}

// LoadCSV reads a CSV stream with a header row.
func LoadCSV(r io.Reader, opts LoadOptions) (Dataset, error) {
	if opts.Encoding != "" && !strings.EqualFold(opts.Encoding, "utf-8") {
		enc, err := htmlindex.Get(opts.Encoding)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q: %w", opts.Encoding, err)
		}
		r = transform.NewReader(r, enc.NewDecoder())
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return fromRows(rows, opts.withDefaults())
}

func fromRows(rows [][]string, opts LoadOptions) (Dataset, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrMissingColumn)
	}

	header := rows[0]
	profitIdx := columnIndex(header, opts.ProfitColumn)
	if profitIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, opts.ProfitColumn)
	}
	rateIdx := columnIndex(header, opts.RateColumn)
	if rateIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, opts.RateColumn)
	}

	data := make(Dataset, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		line := i + 2
		profit, err := parseCell(row, profitIdx)
		if err != nil {
			return nil, fmt.Errorf("row %d column %q: %w", line, opts.ProfitColumn, err)
		}
		rate, err := parseCell(row, rateIdx)
		if err != nil {
			return nil, fmt.Errorf("row %d column %q: %w", line, opts.RateColumn, err)
		}
		data = append(data, Record{Profit: profit, Rate: rate})
	}
	return data, nil
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == name {
			return i
		}
	}
	return -1
}

func parseCell(row []string, idx int) (float64, error) {
	if idx >= len(row) {
		return 0, fmt.Errorf("%w: empty", ErrInvalidCell)
	}
	raw := strings.TrimSpace(row[idx])
	if raw == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidCell)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCell, raw)
	}
	if !isFinite(v) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCell, raw)
	}
	return v, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
