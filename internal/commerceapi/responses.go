package commerceapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/packfinderz-cartsync/pkg/errors"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/logger"
)

// Every response carries "success"; failures add "error".
type failureEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type cartEnvelope struct {
	Success bool `json:"success"`
	Cart    struct {
		Items []line `json:"items"`
	} `json:"cart"`
}

type wishlistEnvelope struct {
	Success  bool `json:"success"`
	Wishlist any  `json:"wishlist"`
}

type messageEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func writeCart(w http.ResponseWriter, items []line) {
	payload := cartEnvelope{Success: true}
	payload.Cart.Items = items
	if payload.Cart.Items == nil {
		payload.Cart.Items = []line{}
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageEnvelope{Success: true, Message: message})
}

// statusFor maps an error code onto the status the storefront API uses. A
// duplicate wishlist add is a 400 with a domain message, not a 409.
func statusFor(code pkgerrors.Code) int {
	switch code {
	case pkgerrors.CodeValidation, pkgerrors.CodeAlreadyExists:
		return http.StatusBadRequest
	case pkgerrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case pkgerrors.CodeNotFound:
		return http.StatusNotFound
	case pkgerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case pkgerrors.CodeDependency:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	msg := typed.Message()
	if typed.Code() == pkgerrors.CodeInternal {
		msg = pkgerrors.MetadataFor(pkgerrors.CodeInternal).PublicMessage
	}

	if logg != nil {
		ctx = logg.WithField(ctx, "error_code", string(typed.Code()))
		if typed.Code() == pkgerrors.CodeInternal {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected: "+typed.Error())
		}
	}
	writeJSON(w, statusFor(typed.Code()), failureEnvelope{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
