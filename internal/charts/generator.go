package charts

import (
	"bytes"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/testkube/simqueue/internal/database"
	"github.com/testkube/simqueue/internal/status"
)

const (
	colorPassed  = "#3c9a4a"
	colorFailed  = "#c23b3b"
	colorHistory = "#d9a532"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// OutcomeChart stacks passed, failed and in-flight counts for each stage.
func (g *Generator) OutcomeChart(s status.Summary) string {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Outcomes", Subtitle: "targets per stage"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithInitializationOpts(opts.Initialization{
			Height: "220px",
			Width:  "100%",
		}),
	)

	stack := charts.WithBarChartOpts(opts.BarChart{Stack: "stage"})
	bar.SetXAxis([]string{"Dev", "Grunt", "Build"}).
		AddSeries("Passed", []opts.BarData{
			{Value: s.DevPassed}, {Value: s.BuildsPassed}, {Value: s.BuiltPassed},
		}, stack, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorPassed})).
		AddSeries("Failed", []opts.BarData{
			{Value: s.DevFailed}, {Value: s.BuildsFailed}, {Value: s.BuiltFailed},
		}, stack, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorFailed}))

	return g.renderToString(bar)
}

// RunHistoryChart plots failures across previous runs, oldest first.
func (g *Generator) RunHistoryChart(runs []database.Run) string {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Failures per run"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithInitializationOpts(opts.Initialization{
			Height: "200px",
			Width:  "100%",
		}),
	)

	xAxis := make([]string, 0, len(runs))
	failed := make([]opts.LineData, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		xAxis = append(xAxis, runs[i].StartedAt.Format("Jan 02 15:04"))
		failed = append(failed, opts.LineData{Value: runs[i].Failed})
	}

	line.SetXAxis(xAxis).
		AddSeries("Failures", failed, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorHistory})).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	return g.renderToString(line)
}

// Interface for anything that can render itself to an io.Writer
type Renderer interface {
	Render(w io.Writer) error
}

func (g *Generator) renderToString(c Renderer) string {
	var buf bytes.Buffer
	if err := c.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}
