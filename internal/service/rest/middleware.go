package rest

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const (
	headerCustomerID     = "X-Customer-ID"
	headerAnonymousToken = "X-Anonymous-Token"
	headerAdminToken     = "X-Admin-Token"
	headerAdminActor     = "X-Admin-Actor"

	identityKey = "identity"
)

// identityMiddleware извлекает identity покупателя из заголовков.
// Передавать оба заголовка разом нельзя: identity — строго либо
// аутентифицированный покупатель, либо анонимный токен.
func (s *Server) identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID := strings.TrimSpace(c.GetHeader(headerCustomerID))
		anonToken := strings.TrimSpace(c.GetHeader(headerAnonymousToken))

		switch {
		case customerID != "" && anonToken != "":
			c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
				Code:    codeIdentityConflict,
				Message: "pass either " + headerCustomerID + " or " + headerAnonymousToken + ", not both",
			})
			return
		case customerID != "":
			id, err := domain.NewAuthenticatedIdentity(customerID)
			if err != nil {
				s.writeError(c, err)
				c.Abort()
				return
			}
			c.Set(identityKey, id)
		case anonToken != "":
			id, err := domain.NewAnonymousIdentity(anonToken)
			if err != nil {
				s.writeError(c, err)
				c.Abort()
				return
			}
			c.Set(identityKey, id)
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
				Code:    codeIdentityRequired,
				Message: domain.ErrIdentityRequired.Error(),
			})
			return
		}
		c.Next()
	}
}

// identityFrom достаёт identity, положенную identityMiddleware.
func identityFrom(c *gin.Context) domain.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}
	}
	id, _ := v.(domain.Identity)
	return id
}

// adminMiddleware пропускает только запросы с валидным админ-токеном.
func (s *Server) adminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminToken == "" || c.GetHeader(headerAdminToken) != s.cfg.AdminToken {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody{
				Code:    codeForbidden,
				Message: "admin token required",
			})
			return
		}
		c.Next()
	}
}

// adminActor возвращает имя оператора для записи в историю статусов.
func adminActor(c *gin.Context) string {
	if actor := strings.TrimSpace(c.GetHeader(headerAdminActor)); actor != "" {
		return "admin:" + actor
	}
	return "admin"
}
