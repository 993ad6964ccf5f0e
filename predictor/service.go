// Package predictor 预测服务：启动时加载一次模型，之后只读地响应每个请求
package predictor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"profitrate/ml"
)

// State 服务状态
type State int

const (
	Uninitialized State = iota
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrNotReady       = errors.New("predictor is not ready")
	ErrAlreadyStarted = errors.New("predictor already started")
	// ErrOutOfRange means the profit parsed but the predicted rate is not a finite number.
	ErrOutOfRange = errors.New("prediction out of range")
)

// ParseError is returned for input that is not a finite number. It only concerns the
// request that carried the input.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid profit %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var (
	errNotFinite = errors.New("value is not finite")
	errHexFloat  = errors.New("hexadecimal notation is not accepted")
)

// ParseProfit parses user text as a float64.
func ParseProfit(input string) (float64, error) {
	trimmed := strings.TrimSpace(input)
	if digits := strings.TrimLeft(trimmed, "+-"); len(digits) > 1 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		return 0, &ParseError{Input: input, Err: errHexFloat}
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			err = numErr.Err
		}
		return 0, &ParseError{Input: input, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ParseError{Input: input, Err: errNotFinite}
	}
	return v, nil
}

// Prediction is the result for one request.
type Prediction struct {
	Profit float64 `json:"profit"`
	Rate   float64 `json:"prediction"`
	// Display is Rate with exactly two decimals.
	Display string `json:"display"`
}

// Service owns the loaded model. Start must complete before the service is shared;
// after that every method is safe for concurrent use.
type Service struct {
	mu     sync.RWMutex
	state  State
	err    error
	model  *ml.LinearModel
	cache  *lru.Cache[float64, float64]
	logger *zap.Logger
}

// New returns an Uninitialized service. cacheSize <= 0 disables the prediction cache.
func New(cacheSize int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{logger: logger}
	if cacheSize > 0 {
		cache, err := lru.New[float64, float64](cacheSize)
		if err == nil {
			s.cache = cache
		}
	}
	return s
}

// Start loads the artifact at path. On success the service is Ready; on failure it is
// Failed for good and the error explains why.
func (s *Service) Start(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Uninitialized {
		return ErrAlreadyStarted
	}

	model, err := ml.LoadModel(path)
	if err != nil {
		s.state = Failed
		s.err = fmt.Errorf("load model %s: %w", path, err)
		s.logger.Error("model load failed", zap.String("path", path), zap.Error(err))
		return s.err
	}
	s.model = model
	s.state = Ready
	s.logger.Info("model loaded",
		zap.String("path", path),
		zap.Float64("slope", model.Slope),
		zap.Float64("intercept", model.Intercept),
		zap.Time("trained_at", model.TrainedAt),
	)
	return nil
}

// StartWith makes the service Ready with an already loaded model.
func (s *Service) StartWith(model *ml.LinearModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Uninitialized {
		return ErrAlreadyStarted
	}
	if model == nil {
		s.state = Failed
		s.err = errors.New("nil model")
		return s.err
	}
	s.model = model
	s.state = Ready
	return nil
}

func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the load failure of a Failed service.
func (s *Service) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Model returns the loaded model, or nil before the service is Ready.
func (s *Service) Model() *ml.LinearModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Predict parses input and applies the model. A *ParseError leaves the service Ready.
func (s *Service) Predict(input string) (Prediction, error) {
	model := s.Model()
	if model == nil {
		return Prediction{}, ErrNotReady
	}

	profit, err := ParseProfit(input)
	if err != nil {
		return Prediction{}, err
	}

	rate, ok := s.lookup(profit)
	if !ok {
		rate = ml.Round2(model.Predict(profit))
		if math.IsNaN(rate) || math.IsInf(rate, 0) {
			return Prediction{}, fmt.Errorf("%w: profit %q", ErrOutOfRange, input)
		}
		if rate == 0 {
			// drop negative zero so it never renders as "-0.00"
			rate = 0
		}
		if s.cache != nil {
			s.cache.Add(profit, rate)
		}
	}
	return Prediction{
		Profit:  profit,
		Rate:    rate,
		Display: strconv.FormatFloat(rate, 'f', 2, 64),
	}, nil
}

func (s *Service) lookup(profit float64) (float64, bool) {
	if s.cache == nil {
		return 0, false
	}
	return s.cache.Get(profit)
}
