package render

import (
	"fmt"
	"html"
	"io"
	"strings"

	"hermannm.dev/pivot/pivot"
)

type ChartOptions struct {
	Kind    ChartKind `json:"kind"`
	Width   float64   `json:"width"`
	Height  float64   `json:"height"`
	Padding float64   `json:"padding"`
}

const (
	defaultChartWidth   = 800
	defaultChartHeight  = 400
	defaultChartPadding = 40

	// Share of each bar's slot left empty on either side.
	barGapRatio = 0.1
)

type ChartData struct {
	Kind   ChartKind    `json:"kind"`
	Width  float64      `json:"width"`
	Height float64      `json:"height"`
	Max    float64      `json:"max"`
	Points []ChartPoint `json:"points"`
}

// ChartPoint is a bar or line vertex for one top-level row. For lines, X and Y give the vertex and
// Width is 0. Height is the scaled value in both cases.
type ChartPoint struct {
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Plots the row total of every level-0 node, scaled linearly against the largest total. If no total
// is above 0, all points have zero height.
func Chart(result pivot.Result, options ChartOptions) ChartData {
	options = options.withDefaults()

	chart := ChartData{
		Kind:   options.Kind,
		Width:  options.Width,
		Height: options.Height,
		Points: make([]ChartPoint, 0, len(result.Tree)),
	}

	for _, node := range result.Tree {
		total := pivot.RowTotal(node, result.Columns)
		if total > chart.Max {
			chart.Max = total
		}
		chart.Points = append(
			chart.Points,
			ChartPoint{Key: node.Key, Label: node.DisplayKey, Value: total},
		)
	}

	plotWidth := max(options.Width-2*options.Padding, 0)
	plotHeight := max(options.Height-2*options.Padding, 0)
	count := float64(len(chart.Points))

	for i := range chart.Points {
		point := &chart.Points[i]

		if chart.Max > 0 && point.Value > 0 {
			point.Height = point.Value / chart.Max * plotHeight
		}
		point.Y = options.Padding + plotHeight - point.Height

		switch options.Kind {
		case ChartKindLine:
			if count == 1 {
				point.X = options.Padding + plotWidth/2
			} else {
				point.X = options.Padding + float64(i)*plotWidth/(count-1)
			}
		default:
			slot := plotWidth / count
			point.X = options.Padding + float64(i)*slot + slot*barGapRatio
			point.Width = slot * (1 - 2*barGapRatio)
		}
	}

	return chart
}

func (options ChartOptions) withDefaults() ChartOptions {
	if !options.Kind.IsValid() {
		options.Kind = ChartKindBar
	}
	if options.Width <= 0 {
		options.Width = defaultChartWidth
	}
	if options.Height <= 0 {
		options.Height = defaultChartHeight
	}
	if options.Padding <= 0 {
		options.Padding = defaultChartPadding
	}
	return options
}

// Writes the chart as a standalone SVG image.
func WriteSVG(writer io.Writer, chart ChartData) error {
	var svg strings.Builder

	fmt.Fprintf(
		&svg,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%g" height="%g" viewBox="0 0 %g %g">`+"\n",
		chart.Width, chart.Height, chart.Width, chart.Height,
	)

	switch chart.Kind {
	case ChartKindLine:
		vertices := make([]string, 0, len(chart.Points))
		for _, point := range chart.Points {
			vertices = append(vertices, fmt.Sprintf("%.2f,%.2f", point.X, point.Y))
		}
		fmt.Fprintf(
			&svg,
			`  <polyline fill="none" stroke="#4F46E5" stroke-width="2" points="%s"/>`+"\n",
			strings.Join(vertices, " "),
		)
		for _, point := range chart.Points {
			fmt.Fprintf(
				&svg,
				`  <circle cx="%.2f" cy="%.2f" r="3" fill="#4F46E5"><title>%s: %s</title></circle>`+"\n",
				point.X, point.Y, html.EscapeString(point.Label), FormatValue(point.Value),
			)
		}
	default:
		for _, point := range chart.Points {
			fmt.Fprintf(
				&svg,
				`  <rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="#4F46E5"><title>%s: %s</title></rect>`+"\n",
				point.X, point.Y, point.Width, point.Height,
				html.EscapeString(point.Label), FormatValue(point.Value),
			)
		}
	}

	for _, point := range chart.Points {
		labelX := point.X + point.Width/2
		fmt.Fprintf(
			&svg,
			`  <text x="%.2f" y="%.2f" font-size="11" text-anchor="middle">%s</text>`+"\n",
			labelX, chart.Height-4, html.EscapeString(point.Label),
		)
	}

	svg.WriteString("</svg>\n")

	_, err := io.WriteString(writer, svg.String())
	return err
}
