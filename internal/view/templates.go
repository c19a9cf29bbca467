package view

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/referral-desk/referral-desk/internal/commission"
	"github.com/referral-desk/referral-desk/internal/labels"
	"github.com/referral-desk/referral-desk/internal/pipeline"
	"github.com/referral-desk/referral-desk/internal/shared"
	"github.com/referral-desk/referral-desk/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Role        string
	Data        any
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"formatDate": labels.Date,
		"dateTime":   labels.DateTime,
		"optDate": func(t *time.Time) string {
			if t == nil {
				return labels.Date(time.Time{})
			}
			return labels.Date(*t)
		},
		"currency":         labels.Currency,
		"number":           labels.Number,
		"percent":          labels.Percent,
		"korean":           commission.FormatKorean,
		"businessType":     labels.BusinessType,
		"region":           labels.Region,
		"product":          labels.Product,
		"revenue":          labels.Revenue,
		"triage":           labels.TriageStatus,
		"pipelineLabel":    labels.PipelineStatus,
		"partnerStatus":    labels.PartnerStatus,
		"settlementStatus": labels.SettlementStatus,
		"source":           labels.Source,
		"pipeline":         pipeline.Render,
		"businessOptions":  labels.BusinessTypeOptions,
		"regionOptions":    labels.RegionOptions,
		"productOptions":   labels.ProductOptions,
		"revenueOptions":   labels.RevenueOptions,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	tpl, err := template.New("root").Funcs(funcMap()).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}
