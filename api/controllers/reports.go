package controllers

import (
	"net/http"

	"github.com/microcopias/copirent-backend/api/responses"
	"github.com/microcopias/copirent-backend/internal/reports"
	pkgerrors "github.com/microcopias/copirent-backend/pkg/errors"
	"github.com/microcopias/copirent-backend/pkg/logger"
)

func rangeFromQuery(r *http.Request) (reports.Range, error) {
	var rng reports.Range
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		return rng, err
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		return rng, err
	}
	if from != nil {
		rng.From = *from
	}
	if to != nil {
		rng.To = *to
	}
	return rng, nil
}

// AdminReportsOverview aggregates order sales, rental payments and rental
// settlements for the requested window.
func AdminReportsOverview(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reports service unavailable"))
			return
		}

		rng, err := rangeFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		overview, err := svc.Overview(r.Context(), rng)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, overview)
	}
}

// AdminReportsDashboard extends the overview with operational counters for
// the back-office landing page.
func AdminReportsDashboard(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reports service unavailable"))
			return
		}

		rng, err := rangeFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dashboard, err := svc.Dashboard(r.Context(), rng)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dashboard)
	}
}
