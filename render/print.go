package render

import (
	_ "embed"
	"html/template"
	"io"
	"time"

	"hermannm.dev/pivot/datatypes"
	"hermannm.dev/pivot/pivot"
	"hermannm.dev/wrap"
)

type PrintOptions struct {
	Title       string
	Orientation Orientation
	GeneratedAt time.Time
	Table       TableOptions
}

//go:embed print.html.tmpl
var printTemplateSource string

var printTemplate = template.Must(
	template.New("print").Funcs(template.FuncMap{
		"indent": func(level int) int { return 8 + level*16 },
	}).Parse(printTemplateSource),
)

type printPage struct {
	Title       string
	GeneratedAt string
	PageSize    string
	PageMargin  string
	Table       TableData
	Headers     []string
}

// Writes the visible rows of the result as a standalone HTML document that opens the print dialog
// when loaded. The orientation only affects the page size and margins.
func PrintHTML(
	writer io.Writer,
	result pivot.Result,
	config pivot.Config,
	fields []datatypes.Field,
	options PrintOptions,
) error {
	table := Table(result, config, fields, options.Table)

	page := printPage{
		Title:      options.Title,
		Table:      table,
		Headers:    table.Headers(),
		PageSize:   "A4 portrait",
		PageMargin: "15mm",
	}
	if options.Orientation == OrientationLandscape {
		page.PageSize = "A4 landscape"
		page.PageMargin = "10mm"
	}
	if page.Title == "" {
		page.Title = "Report"
	}
	if !options.GeneratedAt.IsZero() {
		page.GeneratedAt = options.GeneratedAt.Format("2006-01-02 15:04")
	}

	if err := printTemplate.Execute(writer, page); err != nil {
		return wrap.Error(err, "failed to render print document")
	}
	return nil
}
