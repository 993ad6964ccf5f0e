// Package pipeline 负责加载和划分 profit/rate 数据集
package pipeline

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrMissingColumn     = errors.New("required column missing")
	ErrTooFewRows        = errors.New("dataset needs at least 2 rows")
	ErrInvalidCell       = errors.New("cell is not a number")
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	ErrInvalidRatio      = errors.New("train ratio must be in (0,1)")
	ErrEmptyTrainingSet  = errors.New("split produced an empty training set")
)

// MinRows is the smallest dataset a line can be fitted to.
const MinRows = 2

// Record is one source row. Its identity is its position in the Dataset.
type Record struct {
	Profit float64 `json:"profit"`
	Rate   float64 `json:"rate"`
}

// Dataset 数据集，按源文件行序排列
type Dataset []Record

func (d Dataset) Len() int {
	return len(d)
}

// Columns returns the profit and rate values as parallel slices.
func (d Dataset) Columns() (profits, rates []float64) {
	profits = make([]float64, len(d))
	rates = make([]float64, len(d))
	for i, r := range d {
		profits[i] = r.Profit
		rates[i] = r.Rate
	}
	return profits, rates
}

// Validate checks the dataset is large enough to fit and holds only finite values.
func (d Dataset) Validate() error {
	if len(d) < MinRows {
		return fmt.Errorf("%w: got %d", ErrTooFewRows, len(d))
	}
	for i, r := range d {
		if !isFinite(r.Profit) || !isFinite(r.Rate) {
			return fmt.Errorf("row %d: %w: non-finite value", i+1, ErrInvalidCell)
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
