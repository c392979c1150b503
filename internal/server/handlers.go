package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kpiforge/kpiforge/internal/domain/dataset"
	"github.com/kpiforge/kpiforge/internal/domain/measure"
	"github.com/kpiforge/kpiforge/internal/domain/roster"
	"github.com/kpiforge/kpiforge/internal/scenario"
	"github.com/kpiforge/kpiforge/internal/sink"
	"github.com/kpiforge/kpiforge/internal/synth"
	"github.com/kpiforge/kpiforge/pkg/pagination"
)

// generateRequest overrides parts of the active scenario for one generation
// run. Omitted fields keep the scenario's values; supplied lists replace the
// scenario's lists wholesale.
type generateRequest struct {
	Seed          int64             `json:"seed"`
	Weeks         int               `json:"weeks"`
	ReferenceDate string            `json:"reference_date"`
	Clinics       []roster.Clinic   `json:"clinics"`
	Measures      []measure.Measure `json:"measures"`
}

func (s *Server) handleGenerate(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	run := *s.Scenario()
	if req.Seed != 0 {
		run.Seed = req.Seed
	}
	if req.Weeks != 0 {
		run.Weeks = req.Weeks
	}
	if req.ReferenceDate != "" {
		run.ReferenceDate = req.ReferenceDate
	}
	if req.Clinics != nil {
		run.Clinics = req.Clinics
	}
	if req.Measures != nil {
		run.Measures = req.Measures
	}

	ds, err := synth.New(&run).Generate()
	if err != nil {
		var cfgErr *scenario.ConfigError
		if errors.As(err, &cfgErr) {
			return echo.NewHTTPError(http.StatusBadRequest, cfgErr.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	s.registry.Add(ds)
	s.metrics.DatasetGenerated(ds.Summary.Rows, ds.Summary.Duration)
	s.metrics.SetRegistryDatasets(s.registry.Len())

	s.log.Info().
		Str("dataset_id", ds.ID).
		Int64("seed", ds.Seed).
		Int("rows", ds.Summary.Rows).
		Dur("duration", ds.Summary.Duration).
		Msg("dataset generated")

	return c.JSON(http.StatusCreated, ds)
}

func (s *Server) handleList(c echo.Context) error {
	return c.JSON(http.StatusOK, s.registry.List())
}

func (s *Server) handleGet(c echo.Context) error {
	ds, ok := s.registry.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "dataset not found")
	}
	return c.JSON(http.StatusOK, ds)
}

func (s *Server) handleRows(c echo.Context) error {
	ds, ok := s.registry.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "dataset not found")
	}

	clinic := c.QueryParam("clinic")
	provider := c.QueryParam("provider")
	measureName := c.QueryParam("measure")

	matched := make([]dataset.WeeklyRecord, 0, len(ds.Rows))
	for i := range ds.Rows {
		r := &ds.Rows[i]
		if clinic != "" && r.Clinic != clinic {
			continue
		}
		if provider != "" && r.Provider != provider {
			continue
		}
		if measureName != "" && r.MeasureName != measureName {
			continue
		}
		matched = append(matched, *r)
	}

	pg := pagination.FromContext(c)
	total := len(matched)
	start := pg.Offset
	if start > total {
		start = total
	}
	end := start + pg.Limit
	if end > total {
		end = total
	}

	return c.JSON(http.StatusOK, pagination.NewResponse(matched[start:end], total, pg.Limit, pg.Offset))
}

func (s *Server) handleExport(c echo.Context) error {
	ds, ok := s.registry.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "dataset not found")
	}

	format := c.QueryParam("format")
	if format == "" {
		format = "csv"
	}
	compress := c.QueryParam("compress")
	if compress != "" && compress != "snappy" {
		return echo.NewHTTPError(http.StatusBadRequest, "compress must be \"snappy\"")
	}
	if compress == "snappy" && format != "ndjson" {
		return echo.NewHTTPError(http.StatusBadRequest, "snappy compression applies only to ndjson")
	}

	short := ds.ID
	if len(short) > 8 {
		short = short[:8]
	}

	resp := c.Response()
	switch format {
	case "csv":
		resp.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
		resp.Header().Set(echo.HeaderContentDisposition,
			fmt.Sprintf("attachment; filename=provider_kpi_%s.csv", short))
		resp.WriteHeader(http.StatusOK)
		return sink.WriteCSV(resp.Writer, ds)

	case "ndjson":
		if compress == "snappy" {
			resp.Header().Set(echo.HeaderContentType, "application/octet-stream")
			resp.Header().Set(echo.HeaderContentDisposition,
				fmt.Sprintf("attachment; filename=provider_kpi_%s.ndjson.sz", short))
			resp.WriteHeader(http.StatusOK)
			return sink.WriteNDJSONSnappy(resp.Writer, ds)
		}
		resp.Header().Set(echo.HeaderContentType, "application/x-ndjson")
		resp.Header().Set(echo.HeaderContentDisposition,
			fmt.Sprintf("attachment; filename=provider_kpi_%s.ndjson", short))
		resp.WriteHeader(http.StatusOK)
		return sink.WriteNDJSON(resp.Writer, ds)

	default:
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("unsupported export format %q", format))
	}
}

func (s *Server) handleDelete(c echo.Context) error {
	if !s.registry.Delete(c.Param("id")) {
		return echo.NewHTTPError(http.StatusNotFound, "dataset not found")
	}
	s.metrics.SetRegistryDatasets(s.registry.Len())
	return c.NoContent(http.StatusNoContent)
}
