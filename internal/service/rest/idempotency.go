package rest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerIdemReplayed   = "Idempotency-Replayed"
)

// idempotencyMiddleware защищает мутирующие эндпоинты от повторной отправки.
// Ключ опционален: без заголовка запрос обрабатывается как обычно. Повтор
// с тем же ключом и тем же телом воспроизводит сохранённый ответ; тот же
// ключ с другим телом — ошибка клиента.
func (s *Server) idempotencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(headerIdempotencyKey))
		if key == "" || s.idem == nil {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Code: codeValidation, Message: "cannot read request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := requestHash(c, body)
		ctx := c.Request.Context()

		record, err := s.idem.Get(ctx, key)
		switch {
		case err == nil:
			s.replay(c, record, hash)
			return
		case !errors.Is(err, domain.ErrIdempotencyKeyNotFound):
			s.writeError(c, err)
			c.Abort()
			return
		}

		ttlAt := time.Now().UTC().Add(s.cfg.IdempotencyTTL)
		if _, err := s.idem.CreateProcessing(ctx, key, hash, ttlAt); err != nil {
			// Гонка двух одинаковых запросов: второй видит запись первого.
			if errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
				if record, getErr := s.idem.Get(ctx, key); getErr == nil {
					s.replay(c, record, hash)
					return
				}
			}
			s.writeError(c, err)
			c.Abort()
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Next()

		status := recorder.Status()
		if status >= 200 && status < 300 {
			err = s.idem.MarkDone(ctx, key, recorder.body.Bytes(), status)
		} else {
			err = s.idem.MarkFailed(ctx, key, recorder.body.Bytes(), status)
		}
		if err != nil {
			s.logger.WithError(err).WithField("idempotency_key", key).
				Warn("не удалось зафиксировать результат idempotency-key")
		}
	}
}

// replay отвечает на повтор запроса по состоянию сохранённой записи.
func (s *Server) replay(c *gin.Context, record domain.IdempotencyRecord, hash string) {
	defer c.Abort()

	if record.RequestHash != hash {
		c.JSON(http.StatusConflict, errorBody{
			Code:    codeIdempotencyMismatch,
			Message: domain.ErrIdempotencyHashMismatch.Error(),
		})
		return
	}
	if record.Status == domain.IdempotencyStatusProcessing {
		c.JSON(http.StatusConflict, errorBody{
			Code:    codeIdempotencyInFlight,
			Message: "request with this idempotency key is still being processed",
		})
		return
	}

	c.Header(headerIdemReplayed, "true")
	c.Data(record.HTTPStatus, "application/json; charset=utf-8", record.ResponseBody)
}

// requestHash связывает ключ с конкретным запросом: метод, путь, identity
// и тело. Другой запрос под тем же ключом — ошибка клиента, а не повтор.
func requestHash(c *gin.Context, body []byte) string {
	h := sha256.New()
	_, _ = io.WriteString(h, c.Request.Method)
	_, _ = io.WriteString(h, "\n")
	_, _ = io.WriteString(h, c.FullPath())
	_, _ = io.WriteString(h, "\n")
	_, _ = io.WriteString(h, c.GetHeader(headerCustomerID))
	_, _ = io.WriteString(h, "\n")
	_, _ = io.WriteString(h, c.GetHeader(headerAnonymousToken))
	_, _ = io.WriteString(h, "\n")
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// bodyRecorder дублирует тело ответа в буфер для сохранения в записи
// idempotency-key.
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (r *bodyRecorder) Write(p []byte) (int, error) {
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}

func (r *bodyRecorder) WriteString(s string) (int, error) {
	r.body.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}
