package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// Стабильные машинные коды ошибок внешнего API. Клиенты матчатся по коду,
// текст сообщения может меняться.
const (
	codeValidation           = "VALIDATION"
	codeIdentityRequired     = "IDENTITY_REQUIRED"
	codeIdentityConflict     = "IDENTITY_CONFLICT"
	codeForbidden            = "FORBIDDEN"
	codeNotFound             = "NOT_FOUND"
	codeInvalidQuantity      = "INVALID_QUANTITY"
	codeProductUnavailable   = "PRODUCT_UNAVAILABLE"
	codePromotionInvalid     = "PROMOTION_INVALID"
	codePromotionBelowMin    = "PROMOTION_BELOW_MINIMUM"
	codeCheckoutValidation   = "CHECKOUT_VALIDATION"
	codeInvalidTransition    = "INVALID_TRANSITION"
	codeGatewayRequestFailed = "GATEWAY_REQUEST_FAILED"
	codeAmountMismatch       = "AMOUNT_MISMATCH"
	codeConflict             = "CONFLICT"
	codeIdempotencyInFlight  = "IDEMPOTENCY_IN_FLIGHT"
	codeIdempotencyMismatch  = "IDEMPOTENCY_MISMATCH"
	codeInternal             = "INTERNAL"
)

// errorBody — единый формат ошибки API.
type errorBody struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []lineFailure `json:"details,omitempty"`
}

// lineFailure — одна отклонённая позиция в ответе на неуспешный checkout.
type lineFailure struct {
	ProductID string `json:"product_id"`
	Reason    string `json:"reason"`
}

// writeError переводит доменную ошибку в HTTP-ответ со стабильным кодом.
// Неопознанные ошибки логируются целиком и наружу уходят как generic 500,
// чтобы не протекали внутренности.
func (s *Server) writeError(c *gin.Context, err error) {
	var checkoutErr *domain.CheckoutValidationError
	if errors.As(err, &checkoutErr) {
		body := errorBody{Code: codeCheckoutValidation, Message: checkoutErr.Error()}
		for _, f := range checkoutErr.Failures {
			body.Details = append(body.Details, lineFailure{
				ProductID: f.ProductID,
				Reason:    failureReason(f.Reason),
			})
		}
		c.JSON(http.StatusBadRequest, body)
		return
	}

	var transitionErr *domain.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		c.JSON(http.StatusConflict, errorBody{
			Code:    codeInvalidTransition,
			Message: transitionErr.Error(),
		})
		return
	}

	status, code := http.StatusInternalServerError, codeInternal
	switch {
	case errors.Is(err, domain.ErrIdentityRequired):
		status, code = http.StatusUnauthorized, codeIdentityRequired
	case errors.Is(err, domain.ErrCartNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrInvoiceNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		// Чужие объекты наружу выглядят как отсутствующие.
		errors.Is(err, domain.ErrNotOwner):
		status, code = http.StatusNotFound, codeNotFound
	case errors.Is(err, domain.ErrInvalidQuantity):
		status, code = http.StatusBadRequest, codeInvalidQuantity
	case errors.Is(err, domain.ErrProductUnavailable):
		status, code = http.StatusUnprocessableEntity, codeProductUnavailable
	case errors.Is(err, domain.ErrPromotionInvalid):
		status, code = http.StatusUnprocessableEntity, codePromotionInvalid
	case errors.Is(err, domain.ErrPromotionBelowMinimum):
		status, code = http.StatusUnprocessableEntity, codePromotionBelowMin
	case errors.Is(err, domain.ErrInvalidTransition):
		status, code = http.StatusConflict, codeInvalidTransition
	case errors.Is(err, domain.ErrGatewayRequestFailed):
		status, code = http.StatusBadRequest, codeGatewayRequestFailed
	case errors.Is(err, domain.ErrAmountMismatch):
		status, code = http.StatusConflict, codeAmountMismatch
	case errors.Is(err, domain.ErrVersionConflict):
		status, code = http.StatusConflict, codeConflict
	case errors.Is(err, domain.ErrValidation):
		status, code = http.StatusBadRequest, codeValidation
	}

	if status == http.StatusInternalServerError {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("необработанная ошибка запроса")
		c.JSON(status, errorBody{Code: code, Message: "internal error"})
		return
	}
	c.JSON(status, errorBody{Code: code, Message: err.Error()})
}

// failureReason сводит причину отказа позиции к машинному коду.
func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return codeNotFound
	case errors.Is(err, domain.ErrProductUnavailable):
		return codeProductUnavailable
	case errors.Is(err, domain.ErrInvalidQuantity):
		return codeInvalidQuantity
	default:
		return codeInternal
	}
}
