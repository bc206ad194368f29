package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/service/checkout"
)

// handleCartDetail — GET /cart: позиции по живым ценам, промокод, суммы.
func (s *Server) handleCartDetail(c *gin.Context) {
	view, err := s.carts.Detail(c.Request.Context(), identityFrom(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(view))
}

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Qty       int32  `json:"qty" binding:"required"`
}

// handleCartAddItem — POST /cart/items: добавляет qty к позиции.
func (s *Server) handleCartAddItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: codeValidation, Message: err.Error()})
		return
	}
	s.respondWithCart(c, func(owner domain.Identity) error {
		_, err := s.carts.AddItem(c.Request.Context(), owner, req.ProductID, req.Qty)
		return err
	})
}

type setQuantityRequest struct {
	Qty *int32 `json:"qty" binding:"required"`
}

// handleCartSetQuantity — PATCH /cart/items/:productID: точное количество,
// ноль удаляет позицию.
func (s *Server) handleCartSetQuantity(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: codeValidation, Message: err.Error()})
		return
	}
	s.respondWithCart(c, func(owner domain.Identity) error {
		_, err := s.carts.SetQuantity(c.Request.Context(), owner, c.Param("productID"), *req.Qty)
		return err
	})
}

// handleCartRemoveItem — DELETE /cart/items/:productID.
func (s *Server) handleCartRemoveItem(c *gin.Context) {
	s.respondWithCart(c, func(owner domain.Identity) error {
		_, err := s.carts.SetQuantity(c.Request.Context(), owner, c.Param("productID"), 0)
		return err
	})
}

// handleCartClear — POST /cart/clear: снимает все позиции и промокод.
func (s *Server) handleCartClear(c *gin.Context) {
	s.respondWithCart(c, func(owner domain.Identity) error {
		_, err := s.carts.Clear(c.Request.Context(), owner)
		return err
	})
}

type applyPromotionRequest struct {
	Code string `json:"code" binding:"required"`
}

// handleCartApplyPromotion — POST /cart/promotion.
func (s *Server) handleCartApplyPromotion(c *gin.Context) {
	var req applyPromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: codeValidation, Message: err.Error()})
		return
	}
	s.respondWithCart(c, func(owner domain.Identity) error {
		_, err := s.carts.ApplyPromotion(c.Request.Context(), owner, req.Code)
		return err
	})
}

// handleCartRemovePromotion — DELETE /cart/promotion.
func (s *Server) handleCartRemovePromotion(c *gin.Context) {
	s.respondWithCart(c, func(owner domain.Identity) error {
		_, err := s.carts.RemovePromotion(c.Request.Context(), owner)
		return err
	})
}

type mergeCartRequest struct {
	AnonymousToken string `json:"anonymous_token" binding:"required"`
}

// handleCartMerge — POST /cart/merge: вливает анонимную корзину в корзину
// аутентифицированного покупателя после логина. Анонимная корзина после
// слияния перестаёт существовать.
func (s *Server) handleCartMerge(c *gin.Context) {
	owner := identityFrom(c)
	if !owner.Authenticated() {
		c.JSON(http.StatusForbidden, errorBody{
			Code:    codeForbidden,
			Message: "cart merge requires an authenticated customer",
		})
		return
	}

	var req mergeCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: codeValidation, Message: err.Error()})
		return
	}
	anon, err := domain.NewAnonymousIdentity(req.AnonymousToken)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.respondWithCart(c, func(owner domain.Identity) error {
		_, err := s.carts.Merge(c.Request.Context(), anon, owner)
		return err
	})
}

type checkoutRequest struct {
	ShippingAddress string `json:"shipping_address" binding:"required"`
	PhoneNumber     string `json:"phone_number" binding:"required"`
}

// handleCheckout — POST /cart/checkout: атомарное оформление заказа.
// Успех — 201 с заказом в PENDING; любой отказ оставляет корзину и сток
// нетронутыми.
func (s *Server) handleCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: codeValidation, Message: err.Error()})
		return
	}

	order, err := s.checkout.Checkout(c.Request.Context(), identityFrom(c), checkout.Request{
		ShippingAddress: req.ShippingAddress,
		PhoneNumber:     req.PhoneNumber,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderResponse(order, nil))
}

// respondWithCart выполняет мутацию и отвечает актуальной расценённой корзиной.
func (s *Server) respondWithCart(c *gin.Context, mutate func(domain.Identity) error) {
	owner := identityFrom(c)
	if err := mutate(owner); err != nil {
		s.writeError(c, err)
		return
	}
	view, err := s.carts.Detail(c.Request.Context(), owner)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(view))
}
