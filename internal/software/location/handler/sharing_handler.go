package handler

import (
	"errors"
	"net/http"

	"marketplace/internal/general/jwt"
	"marketplace/internal/software/location/channel"
	"marketplace/internal/software/location/service"

	"github.com/go-chi/chi/v5"
)

type messageResponse struct {
	Message string `json:"message"`
}

// ----- Handler: POST /location/activate -----

func (handler *LocationHTTPHandler) handleActivate(w http.ResponseWriter, r *http.Request) {
	handler.toggle(w, r, true)
}

// ----- Handler: POST /location/deactivate -----

func (handler *LocationHTTPHandler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	handler.toggle(w, r, false)
}

func (handler *LocationHTTPHandler) toggle(w http.ResponseWriter, r *http.Request, enabled bool) {
	ctx := handler.withReqID(r.Context(), r)

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing claims", nil)
		return
	}

	toggle := handler.svc.Deactivate
	if enabled {
		toggle = handler.svc.Activate
	}

	res, err := toggle(ctx, claims.Subject)
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		handler.httpError(ctx, w, http.StatusForbidden, channel.MsgUnauthorized, err)
		return
	case err != nil:
		handler.httpError(ctx, w, http.StatusInternalServerError, channel.MsgServerError, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, messageResponse{Message: res.Message})
}

// ----- Handler: GET /location/sellers/{user_id} -----

func (handler *LocationHTTPHandler) handleSellerLocation(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	view, err := handler.svc.SellerLocation(ctx, chi.URLParam(r, "user_id"))
	switch {
	case errors.Is(err, service.ErrSellerNotFound):
		handler.httpError(ctx, w, http.StatusNotFound, "Seller not found", err)
		return
	case err != nil:
		handler.httpError(ctx, w, http.StatusInternalServerError, channel.MsgServerError, err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, view)
}
