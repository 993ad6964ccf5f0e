package pipeline

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestLoadCSV(t *testing.T) {
	input := "id,profit,rate\n1,10,0.21\n2, 20 ,0.41\n\n3,30,0.61\n"
	data, err := LoadCSV(strings.NewReader(input), LoadOptions{})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if data.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", data.Len())
	}
	if data[1] != (Record{Profit: 20, Rate: 0.41}) {
		t.Fatalf("unexpected record: %+v", data[1])
	}

	profits, rates := data.Columns()
	if !reflect.DeepEqual(profits, []float64{10, 20, 30}) {
		t.Fatalf("unexpected profits: %v", profits)
	}
	if !reflect.DeepEqual(rates, []float64{0.21, 0.41, 0.61}) {
		t.Fatalf("unexpected rates: %v", rates)
	}
}

func TestLoadCSVGBK(t *testing.T) {
	encoded, err := simplifiedchinese.GBK.NewEncoder().String("模块利润,利润占比\n1,2\n3,4\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	data, err := LoadCSV(strings.NewReader(encoded), LoadOptions{
		ProfitColumn: "模块利润",
		RateColumn:   "利润占比",
		Encoding:     "gbk",
	})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	want := Dataset{{Profit: 1, Rate: 2}, {Profit: 3, Rate: 4}}
	if !reflect.DeepEqual(data, want) {
		t.Fatalf("expected %v, got %v", want, data)
	}
}

func TestLoadCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{name: "missing rate column", input: "profit,margin\n1,2\n", want: ErrMissingColumn},
		{name: "missing profit column", input: "rate\n1\n", want: ErrMissingColumn},
		{name: "empty input", input: "", want: ErrMissingColumn},
		{name: "non numeric cell", input: "profit,rate\nabc,1\n", want: ErrInvalidCell},
		{name: "empty cell", input: "profit,rate\n1,\n", want: ErrInvalidCell},
		{name: "short row", input: "profit,rate\n1\n", want: ErrInvalidCell},
		{name: "infinite value", input: "profit,rate\nInf,1\n", want: ErrInvalidCell},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadCSV(strings.NewReader(tt.input), LoadOptions{}); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cs1.xlsx")
	f := excelize.NewFile()
	set := func(cell string, v interface{}) {
		if err := f.SetCellValue("Sheet1", cell, v); err != nil {
			t.Fatalf("set %s: %v", cell, err)
		}
	}
	set("A1", "profit")
	set("B1", "rate")
	for i := 0; i < 5; i++ {
		row := i + 2
		set(fmt.Sprintf("A%d", row), float64(i*100))
		set(fmt.Sprintf("B%d", row), 0.5+float64(i)/10)
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	f.Close()

	data, err := Load(path, LoadOptions{})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if data.Len() != 5 {
		t.Fatalf("expected 5 records, got %d", data.Len())
	}
	if data[4].Profit != 400 || math.Abs(data[4].Rate-0.9) > 1e-12 {
		t.Fatalf("unexpected last record: %+v", data[4])
	}
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "records.csv")
	if err := os.WriteFile(csvPath, []byte("profit,rate\n1,2\n2,4\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := Load(csvPath, LoadOptions{})
	if err != nil || data.Len() != 2 {
		t.Fatalf("expected 2 records, got %d err=%v", data.Len(), err)
	}
	if _, err := Load(filepath.Join(dir, "records.parquet"), LoadOptions{}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := Load(filepath.Join(dir, "missing.csv"), LoadOptions{}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDatasetValidate(t *testing.T) {
	if err := (Dataset{{Profit: 1, Rate: 1}}).Validate(); !errors.Is(err, ErrTooFewRows) {
		t.Fatalf("one row: expected ErrTooFewRows, got %v", err)
	}
	if err := (Dataset{}).Validate(); !errors.Is(err, ErrTooFewRows) {
		t.Fatalf("no rows: expected ErrTooFewRows, got %v", err)
	}
	if err := (Dataset{{Profit: 1, Rate: 1}, {Profit: 2, Rate: 2}}).Validate(); err != nil {
		t.Fatalf("two rows: %v", err)
	}
}
