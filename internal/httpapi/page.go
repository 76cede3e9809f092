package httpapi

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/hankgalt/triage"
	"github.com/hankgalt/triage/pkg/domain"
)

//go:embed templates/page.html
var pageFS embed.FS

var pageTmpl = template.Must(template.New("page.html").Funcs(template.FuncMap{
	"percent": func(v float64) string { return fmt.Sprintf("%.1f%%", v*100) },
}).ParseFS(pageFS, "templates/page.html"))

type pageData struct {
	Text       string
	Warning    string
	LoadError  string
	Error      string
	Prediction *pagePrediction
}

type pagePrediction struct {
	TopLabel     string
	Confidence   float64
	Band         domain.ConfidenceBand
	Distribution []domain.Score
}

func (h *handlers) render(w http.ResponseWriter, status int, data pageData) {
	if err := h.svc.Ready(); err != nil && data.LoadError == "" && !errors.Is(err, triage.ErrNotLoaded) {
		data.LoadError = err.Error()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTmpl.Execute(w, data); err != nil {
		h.log.Error("render page", "error", err.Error())
	}
}

func (h *handlers) page(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, pageData{})
}

func (h *handlers) pageClassify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, pageData{Warning: "Could not read the form."})
		return
	}

	text := r.PostFormValue("complaint")
	if strings.TrimSpace(text) == "" {
		h.render(w, http.StatusOK, pageData{Warning: "Please enter some text."})
		return
	}

	pred, err := h.svc.Classify(r.Context(), text)
	if err != nil {
		h.log.Error("page classification failed", "error", err.Error())
		h.render(w, classifyStatus(err), pageData{Text: text, Error: "Classification failed: " + err.Error()})
		return
	}

	h.render(w, http.StatusOK, pageData{
		Text: text,
		Prediction: &pagePrediction{
			TopLabel:     pred.TopLabel,
			Confidence:   pred.Confidence,
			Band:         pred.Band,
			Distribution: pred.Distribution,
		},
	})
}
