package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/microcopias/copirent-backend/api/responses"
	"github.com/microcopias/copirent-backend/api/validators"
	"github.com/microcopias/copirent-backend/internal/audit"
	pkgerrors "github.com/microcopias/copirent-backend/pkg/errors"
	"github.com/microcopias/copirent-backend/pkg/logger"
	"github.com/microcopias/copirent-backend/pkg/pagination"
)

// AdminAccessLogs pages through the append-only access trail, optionally
// narrowed to one order or rental.
func AdminAccessLogs(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := audit.ListInput{
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("entity_id")); raw != "" {
			entityID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid entity id"))
				return
			}
			input.EntityID = &entityID
		}

		list, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
