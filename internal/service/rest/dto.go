package rest

import (
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/service/cart"
)

// cartResponse — корзина с живыми ценами и рассчитанными суммами.
type cartResponse struct {
	ID            string             `json:"id"`
	Lines         []cartLineResponse `json:"lines"`
	PromotionCode string             `json:"promotion_code,omitempty"`
	SubtotalMinor int64              `json:"subtotal_minor"`
	DiscountMinor int64              `json:"discount_minor"`
	TotalMinor    int64              `json:"total_minor"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

type cartLineResponse struct {
	ProductID      string `json:"product_id"`
	Title          string `json:"title"`
	SKU            string `json:"sku"`
	Qty            int32  `json:"qty"`
	PriceMinor     int64  `json:"price_minor"`
	LineTotalMinor int64  `json:"line_total_minor"`
}

func toCartResponse(v cart.View) cartResponse {
	resp := cartResponse{
		ID:            v.Cart.ID,
		Lines:         make([]cartLineResponse, 0, len(v.Lines)),
		SubtotalMinor: v.Totals.SubtotalMinor,
		DiscountMinor: v.Totals.DiscountMinor,
		TotalMinor:    v.Totals.TotalMinor,
		UpdatedAt:     v.Cart.UpdatedAt,
	}
	if v.Cart.Promotion != nil {
		resp.PromotionCode = v.Cart.Promotion.Code
	}
	for _, line := range v.Lines {
		resp.Lines = append(resp.Lines, cartLineResponse{
			ProductID:      line.ProductID,
			Title:          line.Title,
			SKU:            line.SKU,
			Qty:            line.Qty,
			PriceMinor:     line.PriceMinor,
			LineTotalMinor: line.LineTotalMinor,
		})
	}
	return resp
}

// orderResponse — заказ с замороженными позициями; история добавляется
// только в детальной выдаче.
type orderResponse struct {
	ID              string                 `json:"id"`
	Status          string                 `json:"status"`
	Currency        string                 `json:"currency"`
	SubtotalMinor   int64                  `json:"subtotal_minor"`
	DiscountMinor   int64                  `json:"discount_minor"`
	ShippingMinor   int64                  `json:"shipping_minor"`
	TotalMinor      int64                  `json:"total_minor"`
	PromotionCode   string                 `json:"promotion_code,omitempty"`
	ShippingAddress string                 `json:"shipping_address"`
	PhoneNumber     string                 `json:"phone_number"`
	TrackingCode    string                 `json:"tracking_code,omitempty"`
	Lines           []orderLineResponse    `json:"lines"`
	History         []statusChangeResponse `json:"history,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

type orderLineResponse struct {
	ProductID  string `json:"product_id"`
	Title      string `json:"title"`
	SKU        string `json:"sku"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

type statusChangeResponse struct {
	From     string    `json:"from"`
	To       string    `json:"to"`
	Actor    string    `json:"actor"`
	Note     string    `json:"note,omitempty"`
	Occurred time.Time `json:"occurred_at"`
}

func toOrderResponse(order domain.Order, history []domain.StatusChange) orderResponse {
	resp := orderResponse{
		ID:              order.ID,
		Status:          string(order.Status),
		Currency:        order.Currency,
		SubtotalMinor:   order.SubtotalMinor,
		DiscountMinor:   order.DiscountMinor,
		ShippingMinor:   order.ShippingMinor,
		TotalMinor:      order.TotalMinor,
		PromotionCode:   order.PromotionCode,
		ShippingAddress: order.ShippingAddress,
		PhoneNumber:     order.PhoneNumber,
		TrackingCode:    order.TrackingCode,
		Lines:           make([]orderLineResponse, 0, len(order.Lines)),
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	for _, line := range order.Lines {
		resp.Lines = append(resp.Lines, orderLineResponse{
			ProductID:  line.ProductID,
			Title:      line.Title,
			SKU:        line.SKU,
			Qty:        line.Qty,
			PriceMinor: line.PriceMinor,
		})
	}
	for _, change := range history {
		resp.History = append(resp.History, statusChangeResponse{
			From:     string(change.From),
			To:       string(change.To),
			Actor:    change.Actor,
			Note:     change.Note,
			Occurred: change.Occurred,
		})
	}
	return resp
}

type paymentResponse struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	Gateway     string    `json:"gateway"`
	Status      string    `json:"status"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	ReferenceID string    `json:"reference_id,omitempty"`
	FailureCode string    `json:"failure_code,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toPaymentResponse(p domain.Payment) paymentResponse {
	return paymentResponse{
		ID:          p.ID,
		OrderID:     p.OrderID,
		Gateway:     string(p.Gateway),
		Status:      string(p.Status),
		AmountMinor: p.AmountMinor,
		Currency:    p.Currency,
		ReferenceID: p.ReferenceID,
		FailureCode: p.FailureCode,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type invoiceResponse struct {
	ID              string                `json:"id"`
	OrderID         string                `json:"order_id"`
	Number          string                `json:"number"`
	TotalMinor      int64                 `json:"total_minor"`
	Currency        string                `json:"currency"`
	ShippingAddress string                `json:"shipping_address"`
	Lines           []invoiceLineResponse `json:"lines"`
	CreatedAt       time.Time             `json:"created_at"`
}

type invoiceLineResponse struct {
	ProductTitle string `json:"product_title"`
	ProductSKU   string `json:"product_sku"`
	Qty          int32  `json:"qty"`
	PriceMinor   int64  `json:"price_minor"`
}

func toInvoiceResponse(inv domain.Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:              inv.ID,
		OrderID:         inv.OrderID,
		Number:          inv.Number,
		TotalMinor:      inv.TotalMinor,
		Currency:        inv.Currency,
		ShippingAddress: inv.ShippingAddress,
		Lines:           make([]invoiceLineResponse, 0, len(inv.Lines)),
		CreatedAt:       inv.CreatedAt,
	}
	for _, line := range inv.Lines {
		resp.Lines = append(resp.Lines, invoiceLineResponse{
			ProductTitle: line.ProductTitle,
			ProductSKU:   line.ProductSKU,
			Qty:          line.Qty,
			PriceMinor:   line.PriceMinor,
		})
	}
	return resp
}
