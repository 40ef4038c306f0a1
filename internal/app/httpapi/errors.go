package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/angohost/portal/internal/app/domain/billing"
	"github.com/angohost/portal/internal/app/domain/cart"
	"github.com/angohost/portal/internal/app/domain/catalog"
	"github.com/angohost/portal/internal/app/pricing"
	"github.com/angohost/portal/internal/app/services/accounts"
	billingsvc "github.com/angohost/portal/internal/app/services/billing"
	catalogsvc "github.com/angohost/portal/internal/app/services/catalog"
	checkoutsvc "github.com/angohost/portal/internal/app/services/checkout"
	"github.com/angohost/portal/internal/app/services/provisioning"
	"github.com/angohost/portal/internal/app/storage"
	apperrors "github.com/angohost/portal/internal/errors"
	"github.com/angohost/portal/internal/httputil"
)

var badRequestErrors = []error{
	cart.ErrEmptyCart,
	cart.ErrInvalidQuantity,
	cart.ErrInvalidYears,
	cart.ErrInvalidKey,
	catalog.ErrInvalidDomain,
	catalog.ErrUnsupportedTLD,
	catalogsvc.ErrInvalidItem,
	pricing.ErrUnknownType,
	checkoutsvc.ErrContactRequired,
	checkoutsvc.ErrPaymentRequired,
	billingsvc.ErrInactiveMethod,
	billingsvc.ErrInvalidPayload,
	provisioning.ErrInvalidStatus,
	accounts.ErrInvalidRole,
}

var conflictErrors = []error{
	storage.ErrConflict,
	billing.ErrInvalidTransition,
	catalogsvc.ErrDomainTaken,
}

// mapError translates service errors into client-facing ServiceErrors.
func mapError(err error) *apperrors.ServiceError {
	if se := apperrors.GetServiceError(err); se != nil {
		return se
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		se := apperrors.Validation(err)
		for _, fe := range verrs {
			se.WithDetails(fe.Field(), fe.Tag())
		}
		return se
	}

	switch {
	case errors.Is(err, checkoutsvc.ErrUnauthorized):
		return apperrors.Unauthorized("")
	case errors.Is(err, billingsvc.ErrInvalidSignature):
		return apperrors.Wrap(apperrors.CodeUnauthorized, http.StatusUnauthorized, "invalid signature", err)
	case errors.Is(err, billingsvc.ErrWebhookDisabled):
		return apperrors.Forbidden(err.Error())
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound):
		return apperrors.Wrap(apperrors.CodeNotFound, http.StatusNotFound, "resource not found", err)
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return apperrors.Wrap(apperrors.CodeConflict, http.StatusConflict, err.Error(), err)
		}
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return apperrors.Wrap(apperrors.CodeBadRequest, http.StatusBadRequest, err.Error(), err)
		}
	}
	return apperrors.Internal("internal server error", err)
}

// writeError maps err and writes it. Server-side failures are logged with
// their cause; client errors are not.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	se := mapError(err)
	if se.HTTPStatus >= http.StatusInternalServerError {
		h.log.WithContext(r.Context()).WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	httputil.WriteErrorResponse(w, r, se.HTTPStatus, string(se.Code), se.Message, se.Details)
}
