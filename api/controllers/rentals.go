package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/microcopias/copirent-backend/api/middleware"
	"github.com/microcopias/copirent-backend/api/responses"
	"github.com/microcopias/copirent-backend/api/validators"
	"github.com/microcopias/copirent-backend/internal/rentals"
	"github.com/microcopias/copirent-backend/pkg/enums"
	pkgerrors "github.com/microcopias/copirent-backend/pkg/errors"
	"github.com/microcopias/copirent-backend/pkg/logger"
	"github.com/microcopias/copirent-backend/pkg/pagination"
)

// AdminCreateRental opens a rental by hand, outside the order-driven spawn
// path. The order may hold at most one rental either way.
func AdminCreateRental(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}

		var body rentals.CreateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rental, err := svc.Create(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, rental)
	}
}

// AdminListRentals pages through rentals with an optional status filter.
func AdminListRentals(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := rentals.ListInput{
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status := enums.RentalStatus(raw)
			if !status.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown rental status").
					WithDetails(map[string]any{"status": raw}))
				return
			}
			input.Filters.Status = &status
		}

		list, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminRentalDetail returns one rental with its items.
func AdminRentalDetail(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}

		rentalID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "rentalId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rental id"))
			return
		}

		rental, err := svc.Get(r.Context(), rentalID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rental)
	}
}

// AdminUpdateRental applies a partial rental update. Lifecycle moves go
// through the explicit end and reopen endpoints instead.
func AdminUpdateRental(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}

		rentalID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "rentalId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rental id"))
			return
		}

		var body rentals.UpdateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.RentalID = rentalID

		updated, err := svc.Update(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

// AdminEndRental closes the rental. Repeating the call is a no-op.
func AdminEndRental(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}

		rentalID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "rentalId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rental id"))
			return
		}

		body := rentals.EndInput{}
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		body.RentalID = rentalID

		ended, err := svc.End(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ended)
	}
}

// AdminReopenRental reverts an accidental end.
func AdminReopenRental(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}

		rentalID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "rentalId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rental id"))
			return
		}

		reopened, err := svc.Reopen(r.Context(), rentalID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reopened)
	}
}

// AdminRevealRentalIdentity decrypts the rental's customer identity number
// for the authenticated admin. The access is audited first.
func AdminRevealRentalIdentity(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}

		rentalID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "rentalId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rental id"))
			return
		}

		actor, err := actorID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RevealIdentity(r.Context(), rentals.RevealInput{
			RentalID:   rentalID,
			ActorID:    actor,
			ActorEmail: middleware.EmailFromContext(r.Context()),
			IP:         clientIP(r),
			UserAgent:  r.UserAgent(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
