package controllers

import (
	"net/http"

	"github.com/microcopias/copirent-backend/api/middleware"
	"github.com/microcopias/copirent-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func AdminPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "admin", "status": "ok"}
		if email := middleware.EmailFromContext(r.Context()); email != "" {
			payload["email"] = email
		}
		responses.WriteSuccess(w, payload)
	}
}
