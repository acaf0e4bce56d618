package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"futurescli/internal/config"
	"futurescli/internal/exporter"
	"futurescli/internal/marketdata"
	"futurescli/internal/services"
	"futurescli/pkg/contracts/domain"
)

// Output formats accepted by ?format=.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var formats = []string{FormatJSON, FormatCSV, FormatXLSX}

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// rowResponse is an observation whose missing values are null.
type rowResponse struct {
	InstrumentID uint32              `json:"instrument_id"`
	Time         time.Time           `json:"time"`
	Values       map[string]*float64 `json:"values"`
}

type frameResponse struct {
	Columns []string      `json:"columns"`
	Rows    []rowResponse `json:"rows"`
}

func newFrameResponse(f domain.Frame) frameResponse {
	out := frameResponse{Columns: f.Columns, Rows: make([]rowResponse, 0, len(f.Rows))}
	for _, row := range f.Rows {
		values := make(map[string]*float64, len(row.Values))
		for k, v := range row.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				values[k] = nil
				continue
			}
			v := v
			values[k] = &v
		}
		out.Rows = append(out.Rows, rowResponse{InstrumentID: row.InstrumentID, Time: row.Time, Values: values})
	}
	return out
}

type continuousResponse struct {
	Symbol   string               `json:"symbol"`
	Method   string               `json:"method"`
	Segments []domain.RollSegment `json:"segments"`
	Frame    frameResponse        `json:"frame"`
}

func newContinuousResponse(res *services.ContinuousResult) continuousResponse {
	return continuousResponse{
		Symbol:   res.Symbol,
		Method:   res.Method,
		Segments: res.Segments,
		Frame:    newFrameResponse(res.Frame),
	}
}

// export describes the tabular forms of a result.
type export struct {
	kind   string
	symbol string
	sheets []exporter.Sheet
}

func rollSpecExport(res *services.RollSpecResult) export {
	return export{kind: "rollspec", symbol: res.Symbol, sheets: []exporter.Sheet{
		{Name: "windows", Table: exporter.RollWindowTable(res.Windows)},
	}}
}

func continuousExport(res *services.ContinuousResult) export {
	return export{kind: "continuous", symbol: res.Symbol, sheets: []exporter.Sheet{
		{Name: res.Method, Table: exporter.FrameTable(res.Frame)},
		{Name: "segments", Table: exporter.RollSegmentTable(res.Segments)},
	}}
}

func constantMaturityExport(res *services.ConstantMaturityResult) export {
	return export{kind: "constmaturity", symbol: res.Symbol, sheets: []exporter.Sheet{
		{Name: res.Symbol, Table: exporter.ConstantMaturityTable(res.Points)},
		{Name: "windows", Table: exporter.RollWindowTable(res.Windows)},
	}}
}

func barsExport(res *services.BarsResult) export {
	return export{kind: "ohlcv", symbol: res.Interval, sheets: []exporter.Sheet{
		{Name: "bars", Table: exporter.BarTable(res.Bars)},
	}}
}

func legsExport(parent string, legs *marketdata.Legs) export {
	return export{kind: "legs", symbol: parent, sheets: []exporter.Sheet{
		{Name: "stats", Table: exporter.OfficialStatTable(legs.Stats)},
	}}
}

// respond renders body as JSON, or the export as CSV or XLSX.
func (h *AnalyticsHandler) respond(w http.ResponseWriter, r *http.Request, format string, body interface{}, exp export) {
	if format == FormatJSON || format == "" {
		render.JSON(w, r, body)
		return
	}

	var (
		buf         bytes.Buffer
		err         error
		contentType string
	)
	switch format {
	case FormatCSV:
		contentType = contentTypeCSV
		err = exporter.WriteTableTo(&buf, exp.sheets[0].Table, true)
	case FormatXLSX:
		contentType = contentTypeXLSX
		err = exporter.WriteXLSXTo(&buf, exp.sheets...)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	filename := config.ExportFilename(exp.kind, exp.symbol, h.now(), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write export",
			slog.String("format", format),
			slog.String("error", err.Error()))
	}
}
