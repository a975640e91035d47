package controllers

import (
	"net/http"

	"github.com/microcopias/copirent-backend/api/responses"
	"github.com/microcopias/copirent-backend/api/validators"
	"github.com/microcopias/copirent-backend/internal/auth"
	pkgerrors "github.com/microcopias/copirent-backend/pkg/errors"
	"github.com/microcopias/copirent-backend/pkg/logger"
)

// AdminLogin wires the back-office login endpoint into the HTTP layer.
func AdminLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body auth.LoginInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("X-Copirent-Token", result.Token)
		responses.WriteSuccess(w, result)
	}
}
