package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"profitrate/locale"
	"profitrate/monitoring"
	"profitrate/predictor"
)

const (
	transportForm      = "form"
	transportAPI       = "api"
	transportWebsocket = "websocket"
)

type handlers struct {
	predictor *predictor.Service
	catalog   *locale.Catalog
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	page      *template.Template
	upgrader  websocket.Upgrader
}

func newHandlers(deps Dependencies) *handlers {
	return &handlers{
		predictor: deps.Predictor,
		catalog:   deps.Catalog,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		page:      template.Must(template.New("form").Parse(formTemplate)),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleForm)
	mux.HandleFunc("POST /{$}", h.handleSubmit)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/model", h.handleModel)
	mux.HandleFunc("GET /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/ws/predict", h.handleWebsocket)
}

func (h *handlers) language(r *http.Request) language.Tag {
	return h.catalog.Match(r.FormValue("lang"), r.Header.Get("Accept-Language"))
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := h.predictor.State()
	status := http.StatusOK
	body := map[string]string{"status": "ok", "state": state.String()}
	if state != predictor.Ready {
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
	}
	h.writeJSON(w, status, body)
}

func (h *handlers) handleModel(w http.ResponseWriter, r *http.Request) {
	model := h.predictor.Model()
	if model == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": predictor.ErrNotReady.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"type":       "linear_regression",
		"slope":      model.Slope,
		"intercept":  model.Intercept,
		"trained_at": model.TrainedAt.Format(time.RFC3339),
	})
}

func (h *handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	printer := h.catalog.Printer(h.language(r))
	input := r.URL.Query().Get("profit")

	prediction, err := h.predictor.Predict(input)
	if err != nil {
		status, msg := h.reject(transportAPI, printer, input, err)
		h.writeJSON(w, status, map[string]string{"error": msg})
		return
	}
	h.metrics.ObservePrediction(transportAPI)
	h.writeJSON(w, http.StatusOK, prediction)
}

// reject maps a prediction error to a status code and a localized message.
func (h *handlers) reject(transport string, printer *message.Printer, input string, err error) (int, string) {
	var parseErr *predictor.ParseError
	switch {
	case errors.As(err, &parseErr):
		h.metrics.ObserveError(transport, "parse")
		return http.StatusBadRequest, printer.Sprintf(locale.InvalidProfit, input)
	case errors.Is(err, predictor.ErrOutOfRange):
		h.metrics.ObserveError(transport, "range")
		return http.StatusBadRequest, printer.Sprintf(locale.OutOfRange, input)
	case errors.Is(err, predictor.ErrNotReady):
		h.metrics.ObserveError(transport, "not_ready")
		return http.StatusServiceUnavailable, printer.Sprintf(locale.NotReady)
	default:
		h.metrics.ObserveError(transport, "internal")
		h.logger.Error("prediction failed", zap.String("transport", transport), zap.Error(err))
		return http.StatusInternalServerError, err.Error()
	}
}

// writeJSON encodes before writing the header so an encoding failure becomes a 500.
func (h *handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encode response failed", zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal server error"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(payload, '\n')); err != nil {
		h.logger.Debug("write response failed", zap.Error(err))
	}
}
