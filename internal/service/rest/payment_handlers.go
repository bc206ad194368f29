package rest

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type initiatePaymentRequest struct {
	Gateway string `json:"gateway" binding:"required"`
}

// handlePaymentInitiate — POST /orders/:id/payments: создаёт платёжную
// попытку через выбранный шлюз и возвращает redirect URL.
func (s *Server) handlePaymentInitiate(c *gin.Context) {
	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: codeValidation, Message: err.Error()})
		return
	}
	kind := domain.GatewayKind(req.Gateway)
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, errorBody{Code: codeValidation, Message: "unknown gateway: " + req.Gateway})
		return
	}

	order, _, ok := s.ownedOrder(c)
	if !ok {
		return
	}
	result, err := s.payments.Initiate(c.Request.Context(), order.ID, kind)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment":      toPaymentResponse(result.Payment),
		"redirect_url": result.RedirectURL,
	})
}

// handlePaymentCallback — POST /payments/callback/:gateway/:authority.
// Внешнему шлюзу всегда отвечаем 200, иначе он зацикливает повторные
// доставки; фактический исход остаётся во внутреннем состоянии и логах.
func (s *Server) handlePaymentCallback(c *gin.Context) {
	kind := domain.GatewayKind(c.Param("gateway"))
	authority := c.Param("authority")
	logger := s.logger.WithFields(map[string]interface{}{
		"gateway":   string(kind),
		"authority": authority,
	})

	if !kind.Valid() {
		logger.Warn("callback от неизвестного шлюза")
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	payment, err := s.payments.HandleCallback(c.Request.Context(), kind, authority)
	if err != nil {
		logger.WithError(err).Warn("обработка callback завершилась ошибкой")
	} else {
		logger.WithFields(map[string]interface{}{
			"payment_id": payment.ID,
			"status":     string(payment.Status),
		}).Info("callback обработан")
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// Расширения файлов, допустимые для артефакта чека.
var allowedReceiptExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".pdf":  true,
}

// handleManualReceipt — POST /orders/:id/payments/manual: сохраняет
// загруженный чек и открывает ручную платёжную попытку; заказ уходит в
// AWAITING_VERIFICATION до решения оператора.
func (s *Server) handleManualReceipt(c *gin.Context) {
	order, _, ok := s.ownedOrder(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxReceiptBytes)
	file, err := c.FormFile("receipt")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: codeValidation, Message: "receipt file is required"})
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedReceiptExt[ext] {
		c.JSON(http.StatusBadRequest, errorBody{Code: codeValidation, Message: "unsupported receipt format: " + ext})
		return
	}

	if err := os.MkdirAll(s.cfg.UploadsDir, 0o755); err != nil {
		s.writeError(c, err)
		return
	}
	path := filepath.Join(s.cfg.UploadsDir, uuid.NewString()+ext)
	if err := c.SaveUploadedFile(file, path); err != nil {
		s.writeError(c, err)
		return
	}

	payment, err := s.payments.SubmitReceipt(c.Request.Context(), order.ID, path)
	if err != nil {
		// Заказ не перешёл в AWAITING_VERIFICATION, артефакт не нужен.
		_ = os.Remove(path)
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPaymentResponse(payment))
}

// handlePaymentGet — GET /payments/:id, только владельцу заказа.
func (s *Server) handlePaymentGet(c *gin.Context) {
	payment, err := s.payments.Payment(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	order, _, err := s.checkout.Order(c.Request.Context(), payment.OrderID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !order.Owner.Equal(identityFrom(c)) {
		s.writeError(c, domain.ErrNotOwner)
		return
	}
	c.JSON(http.StatusOK, toPaymentResponse(payment))
}

type reviewPaymentRequest struct {
	Approved *bool  `json:"approved" binding:"required"`
	Note     string `json:"note"`
}

// handlePaymentReview — POST /payments/:id/review (админ): решение по
// ручному платежу. Approve подтверждает заказ, reject отменяет его.
func (s *Server) handlePaymentReview(c *gin.Context) {
	var req reviewPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Code: codeValidation, Message: err.Error()})
		return
	}

	payment, err := s.payments.Review(c.Request.Context(), c.Param("id"), *req.Approved, adminActor(c), req.Note)
	if err != nil {
		s.writeError(c, err)
		return
	}
	order, _, err := s.checkout.Order(c.Request.Context(), payment.OrderID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment":      toPaymentResponse(payment),
		"order_status": string(order.Status),
	})
}
