package http

import (
	"net/http"

	"go.uber.org/zap"

	"profitrate/locale"
)

const formTemplate = `<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}}</h1>
<form method="post" action="/">
<input type="hidden" name="lang" value="{{.Lang}}">
<label for="profit">{{.Label}}</label>
<input type="text" id="profit" name="profit" value="{{.Input}}" placeholder="{{.Placeholder}}">
<button type="submit">{{.Button}}</button>
</form>
{{if .Success}}<p class="success" role="status">{{.Success}}</p>{{end}}
{{if .Error}}<p class="error" role="alert">{{.Error}}</p>{{end}}
</body>
</html>
`

type pageData struct {
	Lang        string
	Title       string
	Label       string
	Placeholder string
	Button      string
	Input       string
	Success     string
	Error       string
}

func (h *handlers) handleForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageData{})
}

func (h *handlers) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	printer := h.catalog.Printer(h.language(r))
	input := r.PostFormValue("profit")

	prediction, err := h.predictor.Predict(input)
	if err != nil {
		status, msg := h.reject(transportForm, printer, input, err)
		h.render(w, r, status, pageData{Input: input, Error: msg})
		return
	}
	h.metrics.ObservePrediction(transportForm)
	h.render(w, r, http.StatusOK, pageData{
		Input:   input,
		Success: printer.Sprintf(locale.Success, prediction.Display),
	})
}

func (h *handlers) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	tag := h.language(r)
	printer := h.catalog.Printer(tag)
	data.Lang = tag.String()
	data.Title = printer.Sprintf(locale.Title)
	data.Label = printer.Sprintf(locale.ProfitLabel)
	data.Placeholder = printer.Sprintf(locale.Placeholder)
	data.Button = printer.Sprintf(locale.PredictButton)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.page.Execute(w, data); err != nil {
		h.logger.Warn("render form failed", zap.Error(err))
	}
}
