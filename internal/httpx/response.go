package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-retail-orders/internal/orders"
)

const msgInternal = "Internal Server Error."

type errorBody struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type placedBody struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Order   orders.View `json:"order"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string, details ...string) {
	writeJSON(w, code, errorBody{Success: false, Error: msg, Details: details})
}

// statusFor maps coordinator errors to a status and client-safe body.
// Anything it does not recognize is a server fault and is not echoed.
func statusFor(err error) (int, errorBody) {
	var verr *orders.ValidationError
	switch {
	case errors.Is(err, orders.ErrUserNotFound):
		return http.StatusBadRequest, errorBody{Error: "User not found."}
	case errors.As(err, &verr):
		msgs := verr.Messages()
		return http.StatusBadRequest, errorBody{Error: verr.Error(), Details: msgs}
	case errors.Is(err, orders.ErrOrderNotFound):
		return http.StatusNotFound, errorBody{Error: "Order not found."}
	default:
		return http.StatusInternalServerError, errorBody{Error: msgInternal}
	}
}
