package filegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/tagus/enterprise-agents/pkg/logging"
)

// Chart types accepted by ChartTool
const (
	ChartBar  = "bar"
	ChartLine = "line"
	ChartPie  = "pie"
)

var (
	ErrEmptyResult      = errors.New("the provided SQL result is empty")
	ErrInsufficientData = errors.New("insufficient data for pie chart")
)

// Table is a query result with its column order preserved
type Table struct {
	Columns []string
	Rows    [][]interface{}
}

// ParseTable decodes a JSON array of row objects keeping the key order of the
// first row as the column order
func ParseTable(raw string) (*Table, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if tok, err := dec.Token(); err != nil || tok != json.Delim('[') {
		return nil, fmt.Errorf("sql result must be a JSON array")
	}

	t := &Table{}
	index := map[string]int{}
	for dec.More() {
		if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
			return nil, fmt.Errorf("sql result rows must be JSON objects")
		}
		row := make([]interface{}, len(t.Columns))
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("failed to read column: %w", err)
			}
			key, _ := keyTok.(string)
			var value interface{}
			if err := dec.Decode(&value); err != nil {
				return nil, fmt.Errorf("failed to read value of %s: %w", key, err)
			}
			i, ok := index[key]
			if !ok {
				i = len(t.Columns)
				index[key] = i
				t.Columns = append(t.Columns, key)
				for r := range t.Rows {
					t.Rows[r] = append(t.Rows[r], nil)
				}
				row = append(row, nil)
			}
			row[i] = value
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("malformed row: %w", err)
		}
		t.Rows = append(t.Rows, row)
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("malformed sql result: %w", err)
	}
	return t, nil
}

// ChartData is the plot-ready form of a table
type ChartData struct {
	// XLabel names the category axis
	XLabel string
	// Categories are the x-axis labels in first-seen order
	Categories []string
	// Series maps a series label to one value per category; missing points are zero
	Series      map[string][]float64
	SeriesOrder []string
}

// Prepare shapes a table for chartType. Pie charts need at least two rows
// and two columns: the label joins every column but the last and the value
// is the last column. Bar and line charts use the first column as the
// x-axis, the last column as the value and the columns in between as the
// series label.
func Prepare(t *Table, chartType string) (*ChartData, error) {
	if t == nil || len(t.Rows) == 0 || len(t.Columns) == 0 {
		return nil, ErrEmptyResult
	}

	data := &ChartData{Series: map[string][]float64{}}
	categoryIndex := map[string]int{}
	addPoint := func(series, category string, v float64) {
		ci, ok := categoryIndex[category]
		if !ok {
			ci = len(data.Categories)
			categoryIndex[category] = ci
			data.Categories = append(data.Categories, category)
			for _, name := range data.SeriesOrder {
				data.Series[name] = append(data.Series[name], 0)
			}
		}
		values, ok := data.Series[series]
		if !ok {
			data.SeriesOrder = append(data.SeriesOrder, series)
			values = make([]float64, len(data.Categories))
		}
		values[ci] += v
		data.Series[series] = values
	}

	last := len(t.Columns) - 1
	if chartType == ChartPie {
		if len(t.Rows) < 2 || len(t.Columns) < 2 {
			return nil, ErrInsufficientData
		}
		data.XLabel = "Category"
		for _, row := range t.Rows {
			v, err := toFloat(row[last])
			if err != nil {
				return nil, err
			}
			addPoint(t.Columns[last], joinValues(row[:last]), v)
		}
		return data, nil
	}

	data.XLabel = t.Columns[0]
	for _, row := range t.Rows {
		category := toString(row[0])
		if len(t.Columns) == 1 {
			v, err := toFloat(row[0])
			if err != nil {
				return nil, err
			}
			addPoint(t.Columns[0], category, v)
			continue
		}
		v, err := toFloat(row[last])
		if err != nil {
			return nil, err
		}
		series := t.Columns[last]
		if last > 1 {
			series = joinValues(row[1:last])
		}
		addPoint(series, category, v)
	}
	return data, nil
}

// RenderChart draws the prepared data as a PNG
func RenderChart(data *ChartData, chartType string) ([]byte, error) {
	var buf bytes.Buffer
	switch chartType {
	case ChartPie:
		values := make([]chart.Value, 0, len(data.Categories))
		series := data.Series[data.SeriesOrder[0]]
		for i, c := range data.Categories {
			values = append(values, chart.Value{Label: c, Value: series[i]})
		}
		pie := chart.PieChart{Width: 1024, Height: 1024, Values: values}
		if err := pie.Render(chart.PNG, &buf); err != nil {
			return nil, fmt.Errorf("failed to render pie chart: %w", err)
		}
	case ChartLine:
		ticks := make([]chart.Tick, len(data.Categories))
		xs := make([]float64, len(data.Categories))
		for i, c := range data.Categories {
			xs[i] = float64(i)
			ticks[i] = chart.Tick{Value: float64(i), Label: c}
		}
		graph := chart.Chart{
			Width:  1200,
			Height: 800,
			XAxis:  chart.XAxis{Name: data.XLabel, Ticks: ticks},
		}
		for _, name := range data.SeriesOrder {
			graph.Series = append(graph.Series, chart.ContinuousSeries{Name: name, XValues: xs, YValues: data.Series[name]})
		}
		if len(data.SeriesOrder) > 1 {
			graph.Elements = []chart.Renderable{chart.Legend(&graph)}
		}
		if err := graph.Render(chart.PNG, &buf); err != nil {
			return nil, fmt.Errorf("failed to render line chart: %w", err)
		}
	default:
		bars := make([]chart.Value, 0, len(data.Categories)*len(data.SeriesOrder))
		for _, name := range data.SeriesOrder {
			for i, c := range data.Categories {
				label := c
				if len(data.SeriesOrder) > 1 {
					label = c + " / " + name
				}
				bars = append(bars, chart.Value{Label: label, Value: data.Series[name][i]})
			}
		}
		bar := chart.BarChart{
			Title:        data.XLabel,
			Width:        1200,
			Height:       800,
			BarWidth:     40,
			UseBaseValue: true,
			Bars:         bars,
		}
		if err := bar.Render(chart.PNG, &buf); err != nil {
			return nil, fmt.Errorf("failed to render bar chart: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// ChartTool renders SQL results as charts and stores the image
type ChartTool struct {
	uploader Uploader
	logger   logging.Logger
}

// NewChartTool creates a ChartTool
func NewChartTool(uploader Uploader, logger logging.Logger) *ChartTool {
	if logger == nil {
		logger = logging.New()
	}
	return &ChartTool{uploader: uploader, logger: logger}
}

// Generate charts sqlResult (a JSON array of rows) and uploads the PNG
func (t *ChartTool) Generate(ctx context.Context, sqlResult, chartType, userID, sessionID string) Result {
	png, err := t.render(sqlResult, chartType)
	if err != nil {
		t.logger.Error(ctx, "Unable to generate chart", map[string]interface{}{"error": err.Error(), "chart_type": chartType})
		return failure(ChartFailedMessage)
	}
	blobURL, err := t.uploader.UploadUserImage(ctx, userID, sessionID, base64.StdEncoding.EncodeToString(png))
	if err != nil {
		t.logger.Error(ctx, "Unable to upload chart", map[string]interface{}{"error": err.Error()})
		return failure(ChartFailedMessage)
	}
	t.logger.Info(ctx, "Chart generated successfully", map[string]interface{}{"blob_url": blobURL})
	return success(blobURL)
}

func (t *ChartTool) render(sqlResult, chartType string) ([]byte, error) {
	switch chartType {
	case ChartBar, ChartLine, ChartPie:
	default:
		return nil, fmt.Errorf("unsupported chart type %q", chartType)
	}
	table, err := ParseTable(sqlResult)
	if err != nil {
		return nil, err
	}
	data, err := Prepare(table, chartType)
	if err != nil {
		return nil, err
	}
	return RenderChart(data, chartType)
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(n, ",", ""), 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not numeric", n)
		}
		return f, nil
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("value %v is not numeric", v)
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	}
	return fmt.Sprint(v)
}

func joinValues(values []interface{}) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = toString(v)
	}
	return strings.Join(parts, " / ")
}
