package rest

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/service/cart"
	"github.com/vladislavdragonenkov/checkout/internal/service/checkout"
	"github.com/vladislavdragonenkov/checkout/internal/service/payment"
)

// Config — настройки HTTP-слоя.
type Config struct {
	// UploadsDir — каталог для артефактов чеков ручных платежей.
	UploadsDir string
	// AdminToken включает админ-эндпоинты (ship/deliver/return/refund/review).
	// Пустое значение оставляет их закрытыми.
	AdminToken string
	// AllowedOrigins для CORS; пустой список разрешает все origin.
	AllowedOrigins []string
	// IdempotencyTTL — срок хранения записей idempotency-key.
	IdempotencyTTL time.Duration
	// MaxReceiptBytes ограничивает размер загружаемого чека.
	MaxReceiptBytes int64
}

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultMaxReceiptBytes = 5 << 20
)

// Server — REST-фасад над сервисами корзины, оформления и платежей.
// Сам бизнес-логики не содержит: разбирает запрос, достаёт identity,
// вызывает сервис и переводит доменную ошибку в HTTP-ответ.
type Server struct {
	engine   *gin.Engine
	carts    *cart.Service
	checkout *checkout.Service
	payments *payment.Coordinator
	idem     domain.IdempotencyRepository
	logger   *log.Entry
	cfg      Config
}

// NewServer собирает роутер со всеми маршрутами и middleware.
func NewServer(
	cfg Config,
	carts *cart.Service,
	checkoutSvc *checkout.Service,
	payments *payment.Coordinator,
	idem domain.IdempotencyRepository,
	logger *log.Entry,
) *Server {
	if logger == nil {
		logger = log.WithField("component", "rest")
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = defaultIdempotencyTTL
	}
	if cfg.MaxReceiptBytes <= 0 {
		cfg.MaxReceiptBytes = defaultMaxReceiptBytes
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:   engine,
		carts:    carts,
		checkout: checkoutSvc,
		payments: payments,
		idem:     idem,
		logger:   logger,
		cfg:      cfg,
	}
	s.routes()
	return s
}

// Handler возвращает http.Handler для net/http сервера.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	corsCfg := cors.DefaultConfig()
	if len(s.cfg.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.cfg.AllowedOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders,
		headerCustomerID, headerAnonymousToken, headerIdempotencyKey, headerAdminToken)
	s.engine.Use(cors.New(corsCfg))

	api := s.engine.Group("/api/v1")

	// Callback шлюза: без аутентификации, всегда 200.
	api.POST("/payments/callback/:gateway/:authority", s.handlePaymentCallback)

	authed := api.Group("", s.identityMiddleware())
	{
		authed.GET("/cart", s.handleCartDetail)
		authed.POST("/cart/items", s.handleCartAddItem)
		authed.PATCH("/cart/items/:productID", s.handleCartSetQuantity)
		authed.DELETE("/cart/items/:productID", s.handleCartRemoveItem)
		authed.POST("/cart/clear", s.handleCartClear)
		authed.POST("/cart/promotion", s.handleCartApplyPromotion)
		authed.DELETE("/cart/promotion", s.handleCartRemovePromotion)
		authed.POST("/cart/merge", s.handleCartMerge)
		authed.POST("/cart/checkout", s.idempotencyMiddleware(), s.handleCheckout)

		authed.GET("/orders", s.handleOrderList)
		authed.GET("/orders/:id", s.handleOrderGet)
		authed.POST("/orders/:id/cancel", s.handleOrderCancel)
		authed.GET("/orders/:id/invoice", s.handleInvoiceGet)

		authed.POST("/orders/:id/payments", s.idempotencyMiddleware(), s.handlePaymentInitiate)
		authed.POST("/orders/:id/payments/manual", s.handleManualReceipt)
		authed.GET("/payments/:id", s.handlePaymentGet)
	}

	// Привилегированные операции живут под /admin: путь /payments/:id/review
	// не уживается в одном дереве роутов с /payments/callback/<...>.
	admin := api.Group("/admin", s.adminMiddleware())
	{
		admin.POST("/orders/:id/ship", s.handleOrderShip)
		admin.POST("/orders/:id/deliver", s.handleOrderDeliver)
		admin.POST("/orders/:id/return", s.handleOrderReturn)
		admin.POST("/orders/:id/refund", s.handleOrderRefund)
		admin.POST("/payments/:id/review", s.handlePaymentReview)
	}
}
