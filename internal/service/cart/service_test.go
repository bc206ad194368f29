package cart_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/service/cart"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
)

func newStore() *memory.Store {
	store := memory.NewStore()
	store.SeedProducts([]domain.Product{
		{ID: "product-a", Title: "Widget A", SKU: "sku-a", PriceMinor: 10000, Stock: 10, Available: true, Visible: true, Active: true},
		{ID: "product-b", Title: "Widget B", SKU: "sku-b", PriceMinor: 5000, Stock: 5, Available: true, Visible: true, Active: true},
		{ID: "product-hidden", Title: "Hidden", SKU: "sku-h", PriceMinor: 100, Stock: 5, Available: true, Visible: false, Active: true},
	})
	store.SeedPromotions([]domain.PromotionCode{
		{Code: "TEN-PERCENT", Kind: domain.DiscountPercentage, Percent: 10, Active: true},
		{Code: "BIG-SPENDER", Kind: domain.DiscountFixed, ValueMinor: 5000, MinPurchaseMinor: 50000, Active: true},
		{Code: "EXPIRED", Kind: domain.DiscountFixed, ValueMinor: 100, Active: true, ValidTo: time.Now().UTC().Add(-time.Hour)},
	})
	return store
}

func authOwner(t *testing.T) domain.Identity {
	t.Helper()
	owner, err := domain.NewAuthenticatedIdentity("customer-1")
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	return owner
}

func anonOwner(t *testing.T) domain.Identity {
	t.Helper()
	owner, err := domain.NewAnonymousIdentity("anon-token-1")
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	return owner
}

func TestService_ResolveCreatesSingleCart(t *testing.T) {
	store := newStore()
	svc := cart.NewService(store, store.Catalog(), nil)
	owner := authOwner(t)

	first, err := svc.Resolve(context.Background(), owner)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	second, err := svc.Resolve(context.Background(), owner)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected one cart per identity, got %s and %s", first.ID, second.ID)
	}
}

func TestService_AddItemAccumulatesQuantity(t *testing.T) {
	store := newStore()
	svc := cart.NewService(store, store.Catalog(), nil)
	owner := authOwner(t)

	if _, err := svc.AddItem(context.Background(), owner, "product-a", 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	updated, err := svc.AddItem(context.Background(), owner, "product-a", 3)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if len(updated.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(updated.Lines))
	}
	if updated.Lines[0].Qty != 5 {
		t.Fatalf("expected qty 5, got %d", updated.Lines[0].Qty)
	}
}

func TestService_AddItemValidation(t *testing.T) {
	store := newStore()
	svc := cart.NewService(store, store.Catalog(), nil)
	owner := authOwner(t)

	cases := []struct {
		name      string
		productID string
		qty       int32
		wantErr   error
	}{
		{"zero qty", "product-a", 0, domain.ErrInvalidQuantity},
		{"negative qty", "product-a", -1, domain.ErrInvalidQuantity},
		{"unknown product", "missing", 1, domain.ErrProductNotFound},
		{"hidden product", "product-hidden", 1, domain.ErrProductUnavailable},
		{"over stock", "product-b", 6, domain.ErrProductUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.AddItem(context.Background(), owner, tc.productID, tc.qty); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestService_SetQuantityZeroRemovesLine(t *testing.T) {
	store := newStore()
	svc := cart.NewService(store, store.Catalog(), nil)
	owner := authOwner(t)

	if _, err := svc.AddItem(context.Background(), owner, "product-a", 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	updated, err := svc.SetQuantity(context.Background(), owner, "product-a", 0)
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if !updated.IsEmpty() {
		t.Fatalf("expected empty cart, got %d lines", len(updated.Lines))
	}
}

func TestService_TotalsWithPercentagePromotion(t *testing.T) {
	store := newStore()
	svc := cart.NewService(store, store.Catalog(), nil)
	owner := authOwner(t)

	// 2 x 100.00 + 1 x 50.00 = 250.00, скидка 10% => 225.00.
	if _, err := svc.AddItem(context.Background(), owner, "product-a", 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.AddItem(context.Background(), owner, "product-b", 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.ApplyPromotion(context.Background(), owner, "TEN-PERCENT"); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	view, err := svc.Detail(context.Background(), owner)
	if err != nil {
		t.Fatalf("detail failed: %v", err)
	}
	if view.Totals.SubtotalMinor != 25000 {
		t.Fatalf("expected subtotal 25000, got %d", view.Totals.SubtotalMinor)
	}
	if view.Totals.DiscountMinor != 2500 {
		t.Fatalf("expected discount 2500, got %d", view.Totals.DiscountMinor)
	}
	if view.Totals.TotalMinor != 22500 {
		t.Fatalf("expected total 22500, got %d", view.Totals.TotalMinor)
	}
}

func TestService_ApplyPromotionBelowMinimum(t *testing.T) {
	store := newStore()
	svc := cart.NewService(store, store.Catalog(), nil)
	owner := authOwner(t)

	if _, err := svc.AddItem(context.Background(), owner, "product-b", 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.ApplyPromotion(context.Background(), owner, "BIG-SPENDER"); !errors.Is(err, domain.ErrPromotionBelowMinimum) {
		t.Fatalf("expected ErrPromotionBelowMinimum, got %v", err)
	}
}

func TestService_ApplyPromotionExpired(t *testing.T) {
	store := newStore()
	svc := cart.NewService(store, store.Catalog(), nil)
	owner := authOwner(t)

	if _, err := svc.AddItem(context.Background(), owner, "product-a", 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.ApplyPromotion(context.Background(), owner, "EXPIRED"); !errors.Is(err, domain.ErrPromotionInvalid) {
		t.Fatalf("expected ErrPromotionInvalid, got %v", err)
	}
}

func TestService_ApplyPromotionWithoutWindow(t *testing.T) {
	store := newStore()
	svc := cart.NewService(store, store.Catalog(), nil)
	owner := authOwner(t)

	if _, err := svc.AddItem(context.Background(), owner, "product-a", 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// Промокод без окна действия применяется; вызов обязан вернуться,
	// несмотря на чтение каталога внутри единицы работы.
	done := make(chan error, 1)
	go func() {
		_, err := svc.ApplyPromotion(context.Background(), owner, "TEN-PERCENT")
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("apply failed: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("apply promotion did not return")
	}

	view, err := svc.Detail(context.Background(), owner)
	if err != nil {
		t.Fatalf("detail failed: %v", err)
	}
	if view.Totals.DiscountMinor != 1000 {
		t.Fatalf("expected discount 1000, got %d", view.Totals.DiscountMinor)
	}
}

func TestService_PromotionVoidWhenCartShrinksBelowMinimum(t *testing.T) {
	store := newStore()
	svc := cart.NewService(store, store.Catalog(), nil)
	owner := authOwner(t)

	// 5 x 100.00 + 1 x 50.00 = 550.00 — выше порога 500.00.
	if _, err := svc.AddItem(context.Background(), owner, "product-a", 5); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.AddItem(context.Background(), owner, "product-b", 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.ApplyPromotion(context.Background(), owner, "BIG-SPENDER"); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	// Корзина усохла ниже порога: скидка обнуляется, но снимок остаётся.
	if _, err := svc.SetQuantity(context.Background(), owner, "product-a", 1); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	view, err := svc.Detail(context.Background(), owner)
	if err != nil {
		t.Fatalf("detail failed: %v", err)
	}
	if view.Totals.DiscountMinor != 0 {
		t.Fatalf("expected void discount, got %d", view.Totals.DiscountMinor)
	}
	if view.Totals.TotalMinor != view.Totals.SubtotalMinor {
		t.Fatalf("expected total == subtotal, got %d vs %d", view.Totals.TotalMinor, view.Totals.SubtotalMinor)
	}
}

func TestService_MergeAccumulatesAndDropsAnonymousPromotion(t *testing.T) {
	store := newStore()
	svc := cart.NewService(store, store.Catalog(), nil)
	anon := anonOwner(t)
	auth := authOwner(t)

	if _, err := svc.AddItem(context.Background(), anon, "product-a", 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.ApplyPromotion(context.Background(), anon, "TEN-PERCENT"); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if _, err := svc.AddItem(context.Background(), auth, "product-a", 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.AddItem(context.Background(), auth, "product-b", 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	merged, err := svc.Merge(context.Background(), anon, auth)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	if i := merged.LineIndex("product-a"); i < 0 || merged.Lines[i].Qty != 3 {
		t.Fatalf("expected accumulated qty 3 for product-a, got %+v", merged.Lines)
	}
	if i := merged.LineIndex("product-b"); i < 0 || merged.Lines[i].Qty != 1 {
		t.Fatalf("expected qty 1 for product-b, got %+v", merged.Lines)
	}
	if merged.Promotion != nil {
		t.Fatal("expected anonymous promotion to be dropped")
	}

	if _, err := store.Carts().FindByOwner(context.Background(), anon); !errors.Is(err, domain.ErrCartNotFound) {
		t.Fatalf("expected anonymous cart to be deleted, got %v", err)
	}
}

func TestService_MergeSkipsUnavailableAndClampsToStock(t *testing.T) {
	store := newStore()
	svc := cart.NewService(store, store.Catalog(), nil)
	anon := anonOwner(t)
	auth := authOwner(t)

	if _, err := svc.AddItem(context.Background(), anon, "product-a", 2); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	// product-b: сток 5; 4 в анонимной плюс 3 в целевой — избыток срезается.
	if _, err := svc.AddItem(context.Background(), anon, "product-b", 4); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if _, err := svc.AddItem(context.Background(), auth, "product-b", 3); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// product-a уходит с витрины уже после наполнения анонимной корзины.
	store.SeedProducts([]domain.Product{
		{ID: "product-a", Title: "Widget A", SKU: "sku-a", PriceMinor: 10000, Stock: 10, Available: true, Visible: false, Active: true},
	})

	merged, err := svc.Merge(context.Background(), anon, auth)
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	if i := merged.LineIndex("product-a"); i >= 0 {
		t.Fatalf("expected unavailable product-a to be dropped, got %+v", merged.Lines)
	}
	if i := merged.LineIndex("product-b"); i < 0 || merged.Lines[i].Qty != 5 {
		t.Fatalf("expected product-b clamped to stock 5, got %+v", merged.Lines)
	}
}
