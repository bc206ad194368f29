package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const defaultOrderListLimit = 50

// handleOrderList — GET /orders: заказы текущего покупателя.
func (s *Server) handleOrderList(c *gin.Context) {
	limit := defaultOrderListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, errorBody{Code: codeValidation, Message: "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	orders, err := s.checkout.Orders(c.Request.Context(), identityFrom(c), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	resp := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		resp = append(resp, toOrderResponse(order, nil))
	}
	c.JSON(http.StatusOK, gin.H{"orders": resp})
}

// handleOrderGet — GET /orders/:id: заказ с историей статусов, только владельцу.
func (s *Server) handleOrderGet(c *gin.Context) {
	order, history, ok := s.ownedOrder(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order, history))
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// handleOrderCancel — POST /orders/:id/cancel: отмена покупателем, если
// таблица переходов её ещё допускает. Сток вернётся обработчиком CANCELLED.
func (s *Server) handleOrderCancel(c *gin.Context) {
	order, _, ok := s.ownedOrder(c)
	if !ok {
		return
	}
	var req cancelOrderRequest
	// Тело опционально: отмена без причины допустима.
	_ = c.ShouldBindJSON(&req)

	actor := actorOf(identityFrom(c))
	updated, err := s.checkout.Cancel(c.Request.Context(), order.ID, actor, req.Reason)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(updated, nil))
}

// handleInvoiceGet — GET /orders/:id/invoice.
func (s *Server) handleInvoiceGet(c *gin.Context) {
	order, _, ok := s.ownedOrder(c)
	if !ok {
		return
	}
	invoice, err := s.checkout.Invoice(c.Request.Context(), order.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(invoice))
}

type shipOrderRequest struct {
	TrackingCode string `json:"tracking_code" binding:"required"`
}

// handleOrderShip — POST /orders/:id/ship (админ): CONFIRMED → SHIPPED.
func (s *Server) handleOrderShip(c *gin.Context) {
	var req shipOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: codeValidation, Message: err.Error()})
		return
	}
	order, err := s.checkout.Ship(c.Request.Context(), c.Param("id"), adminActor(c), req.TrackingCode)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order, nil))
}

// handleOrderDeliver — POST /orders/:id/deliver (админ).
func (s *Server) handleOrderDeliver(c *gin.Context) {
	order, err := s.checkout.Deliver(c.Request.Context(), c.Param("id"), adminActor(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order, nil))
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// handleOrderReturn — POST /orders/:id/return (админ): DELIVERED → RETURNED.
func (s *Server) handleOrderReturn(c *gin.Context) {
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)
	order, err := s.checkout.Return(c.Request.Context(), c.Param("id"), adminActor(c), req.Reason)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order, nil))
}

// handleOrderRefund — POST /orders/:id/refund (админ).
func (s *Server) handleOrderRefund(c *gin.Context) {
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)
	order, err := s.checkout.Refund(c.Request.Context(), c.Param("id"), adminActor(c), req.Reason)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order, nil))
}

// ownedOrder загружает заказ и проверяет, что он принадлежит текущей identity.
// Чужой заказ наружу неотличим от несуществующего.
func (s *Server) ownedOrder(c *gin.Context) (domain.Order, []domain.StatusChange, bool) {
	order, history, err := s.checkout.Order(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return domain.Order{}, nil, false
	}
	if !order.Owner.Equal(identityFrom(c)) {
		s.writeError(c, domain.ErrNotOwner)
		return domain.Order{}, nil, false
	}
	return order, history, true
}

// actorOf — имя актора для истории статусов.
func actorOf(owner domain.Identity) string {
	if owner.Authenticated() {
		return "customer:" + owner.Value()
	}
	return "anonymous"
}
