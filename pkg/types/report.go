// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// LanguageReport is the outcome of aggregating one language.
type LanguageReport struct {
	Language     string `json:"language" yaml:"language"`
	Status       Status `json:"status" yaml:"status"`
	Message      string `json:"message,omitempty" yaml:"message,omitempty"`
	ExcelPath    string `json:"excel_path,omitempty" yaml:"excel_path,omitempty"`
	MarkdownPath string `json:"markdown_path,omitempty" yaml:"markdown_path,omitempty"`
	Rows         int    `json:"rows" yaml:"rows"`
}

// AggregatedSummary collects the per-language reports of one aggregation and
// the language chosen by preference order.
type AggregatedSummary struct {
	Preferred  string           `json:"preferred,omitempty" yaml:"preferred,omitempty"`
	ReportPath string           `json:"report_path,omitempty" yaml:"report_path,omitempty"`
	Languages  []LanguageReport `json:"languages" yaml:"languages"`
}

// Report returns the report for lang, if present.
func (a *AggregatedSummary) Report(lang string) (LanguageReport, bool) {
	if a == nil {
		return LanguageReport{}, false
	}
	for _, r := range a.Languages {
		if r.Language == lang {
			return r, true
		}
	}
	return LanguageReport{}, false
}
