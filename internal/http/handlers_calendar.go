package http

import (
	"net/http"
	"strconv"

	"undertow/internal/core"
	"undertow/internal/log"
)

// handleCalendarMonth serves one month's projection. Results are cached per
// user and period; any record write invalidates the user's entries.
func (s *Server) handleCalendarMonth(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	year, month, err := yearMonthParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	override, err := balanceOverrideParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid startingBalance parameter")
		return
	}

	// What-if overrides bypass the cache; only the stored-record view is kept.
	key := monthCacheKey(userID, year, month)
	if override == nil {
		if proj, hit := s.monthCache.Get(key); hit {
			writeJSON(w, http.StatusOK, proj)
			return
		}
	}

	proj, err := s.builder.BuildMonth(r.Context(), userID, year, month, override)
	if err != nil {
		if core.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "Month build failed",
			log.FieldUserID, userID, log.FieldYear, year, log.FieldMonth, month,
			log.FieldError, err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if override == nil {
		s.monthCache.Set(key, proj)
	}
	writeJSON(w, http.StatusOK, proj)
}

// handleCalendarYear serves the twelve-month chained forecast.
func (s *Server) handleCalendarYear(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year parameter")
		return
	}
	override, err := balanceOverrideParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid startingBalance parameter")
		return
	}

	key := yearCacheKey(userID, year)
	if override == nil {
		if forecast, hit := s.yearCache.Get(key); hit {
			writeJSON(w, http.StatusOK, forecast)
			return
		}
	}

	forecast, err := s.builder.BuildYear(r.Context(), userID, year, override)
	if err != nil {
		if core.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "Year build failed",
			log.FieldUserID, userID, log.FieldYear, year, log.FieldError, err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if override == nil {
		s.yearCache.Set(key, forecast)
	}
	writeJSON(w, http.StatusOK, forecast)
}

// handleCalendarExport builds the requested month fresh and appends it to
// the configured spreadsheet.
func (s *Server) handleCalendarExport(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "spreadsheet export is not configured")
		return
	}
	year, month, err := yearMonthParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	proj, err := s.builder.BuildMonth(r.Context(), userID, year, month, nil)
	if err != nil {
		if core.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.exporter.ExportMonth(r.Context(), proj); err != nil {
		s.logger.ErrorContext(r.Context(), "Spreadsheet export failed",
			log.FieldUserID, userID, log.FieldYear, year, log.FieldMonth, month,
			log.FieldError, err.Error())
		writeError(w, http.StatusBadGateway, "export failed")
		return
	}

	s.logger.InfoContext(r.Context(), "Month projection exported",
		log.FieldUserID, userID, log.FieldYear, year, log.FieldMonth, month)
	writeJSON(w, http.StatusOK, map[string]any{
		"exported": true,
		"year":     year,
		"month":    month,
		"days":     len(proj.Days),
	})
}
