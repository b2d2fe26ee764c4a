package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// showJointChart renders joint angle traces for a stored session as an HTML
// line chart. This is a debugging-only endpoint (no auth) to eyeball a
// capture without the 3D viewer.
// Query params:
//   - session_id (required)
//   - after (optional; sequence number to start from)
//   - max_points (optional; default 2000) to reduce payload size
func (s *Server) showJointChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Storage not configured")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'session_id' parameter")
		return
	}

	var afterSeq uint64
	if a := r.URL.Query().Get("after"); a != "" {
		if parsed, err := strconv.ParseUint(a, 10, 64); err == nil {
			afterSeq = parsed
		}
	}

	maxPoints := 2000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 50000 {
			maxPoints = v
		}
	}

	samples, err := s.db.Samples(sessionID, afterSeq, maxPoints)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve samples: %v", err))
		return
	}
	if len(samples) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "No samples for session")
		return
	}

	xAxis := make([]string, len(samples))
	series := make([][]opts.LineData, len(samples[0].Joints))
	for i := range series {
		series[i] = make([]opts.LineData, len(samples))
	}
	for i, sample := range samples {
		xAxis[i] = strconv.FormatUint(sample.Seq, 10)
		for j, angle := range sample.Joints {
			series[j][i] = opts.LineData{Value: angle}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Joint Angles", Theme: "dark", Width: "1200px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Joint Angles", Subtitle: fmt.Sprintf("session=%s samples=%d", sessionID, len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "seq"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "degrees"}),
	)

	line.SetXAxis(xAxis)
	for j, data := range series {
		line.AddSeries(fmt.Sprintf("J%d", j+1), data)
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
