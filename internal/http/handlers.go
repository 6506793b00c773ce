package http

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/hellopassport/internal/observability/logger"
	"github.com/dropDatabas3/hellopassport/internal/passport"
)

type issuerRoutes struct {
	issuer Issuer
}

type visaResponse struct {
	Visa *string `json:"visa"`
}

// getVisa devuelve {"visa": null} si el emisor no tiene nada para sub.
func (h *issuerRoutes) getVisa(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	v, found, err := h.issuer.CreateVisaFor(r.Context(), sub)
	if err != nil {
		serverError(w, r, err)
		return
	}
	resp := visaResponse{}
	if found {
		resp.Visa = &v
	}
	WriteJSON(w, http.StatusOK, resp)
}

type brokerRoutes struct {
	broker *passport.Broker
}

func (h *brokerRoutes) getPassport(w http.ResponseWriter, r *http.Request) {
	sub, ok := subject(w, r)
	if !ok {
		return
	}
	tok, err := h.broker.PassportFor(r.Context(), sub)
	if err != nil {
		serverError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"passport": tok})
}

func subject(w http.ResponseWriter, r *http.Request) (string, bool) {
	sub := strings.TrimSpace(r.URL.Query().Get("sub"))
	if sub == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "sub es requerido")
		return "", false
	}
	return sub, true
}

func serverError(w http.ResponseWriter, r *http.Request, err error) {
	logger.From(r.Context()).Error("request failed", logger.Err(err))
	WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo firmar")
}
