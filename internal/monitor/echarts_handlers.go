package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// echartsAssetsPrefix points rendered chart pages at the public
// go-echarts asset bundle so they work without local static serving.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleSessionCharts renders the tick history of a session as an HTML
// chart page: the lock path across the capture plus step, coefficient,
// and speed time series. Defaults to the session currently recording.
// Query params:
//
//	session_id (optional)
//	limit (optional; default all ticks)
func (ws *WebServer) handleSessionCharts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.store == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no session store configured")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = ws.pipe.SessionID()
	}
	if sessionID == "" {
		ws.writeJSONError(w, http.StatusNotFound, "no active session; pass 'session_id'")
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}

	ticks, err := ws.store.Ticks(sessionID, limit)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("load ticks: %v", err))
		return
	}
	if len(ticks) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no ticks recorded for session")
		return
	}

	size := ws.pipe.Settings().CaptureSize

	subtitle := fmt.Sprintf("session=%s ticks=%d", sessionID, len(ticks))
	if sess, err := ws.store.Session(sessionID); err == nil {
		subtitle = fmt.Sprintf("session=%s source=%s controller=%s ticks=%d",
			sessionID, sess.Source, sess.Controller, len(ticks))
	}

	pathData := make([]opts.ScatterData, 0, len(ticks))
	xs := make([]string, 0, len(ticks))
	stepData := make([]opts.LineData, 0, len(ticks))
	coeffData := make([]opts.LineData, 0, len(ticks))
	speedData := make([]opts.LineData, 0, len(ticks))
	maxSeq := float64(0)
	for _, t := range ticks {
		if t.LockID != "" {
			// Capture y grows downward; flip it so the chart matches
			// the scene orientation.
			pathData = append(pathData, opts.ScatterData{Value: []interface{}{t.PosX, float64(size) - t.PosY, t.Seq}})
			if float64(t.Seq) > maxSeq {
				maxSeq = float64(t.Seq)
			}
		}
		xs = append(xs, strconv.FormatInt(t.Seq, 10))
		stepData = append(stepData, opts.LineData{Value: math.Hypot(float64(t.DX), float64(t.DY))})
		coeffData = append(coeffData, opts.LineData{Value: t.Coefficient})
		speedData = append(speedData, opts.LineData{Value: math.Hypot(t.VelX, t.VelY)})
	}

	path := charts.NewScatter()
	path.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "700px", Height: "700px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Lock Path", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: size, Name: "X (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: size, Name: "Y (px)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxSeq),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)
	path.AddSeries("lock", pathData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))

	step := charts.NewLine()
	step.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "1200px", Height: "400px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Corrective Step", Subtitle: "per tick, device units"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	step.SetXAxis(xs).AddSeries("step", stepData)

	coeff := charts.NewLine()
	coeff.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "1200px", Height: "400px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Smoothing Coefficient", Subtitle: "zero on ticks without a target"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	coeff.SetXAxis(xs).AddSeries("coefficient", coeffData)

	speed := charts.NewLine()
	speed.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "1200px", Height: "400px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Target Speed", Subtitle: "px/s"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	speed.SetXAxis(xs).AddSeries("speed", speedData)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(path, step, coeff, speed)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render charts: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
