package domain

import "time"

// InvoiceLine — снимок позиции заказа в счёте (название и SKU на момент выпуска).
type InvoiceLine struct {
	ProductTitle string
	ProductSKU   string
	Qty          int32
	PriceMinor   int64
}

// Invoice — счёт по заказу. Выпускается ровно один раз: в момент первого
// перехода заказа в CONFIRMED по завершённому платежу, внутри той же
// транзакции, что и сам переход. После создания не изменяется.
type Invoice struct {
	ID              string
	OrderID         string
	Number          string // последовательный номер вида INV000001
	TotalMinor      int64
	Currency        string
	ShippingAddress string
	Lines           []InvoiceLine
	CreatedAt       time.Time
}
