package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/redis_repo"
	"github.com/stretchr/testify/require"
)

// 有狀態的in-memory購物車, 語意對齊redis實作
type memCartRepo struct {
	carts map[int]map[string]int
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{carts: make(map[int]map[string]int)}
}

func (m *memCartRepo) Get(ctx context.Context, userID int) (*model.Cart, error) {
	cart := &model.Cart{UserID: userID}
	for productID, qty := range m.carts[userID] {
		if qty > 0 {
			cart.Items = append(cart.Items, model.CartItem{ProductID: productID, Quantity: qty})
		}
	}
	return cart, nil
}

func (m *memCartRepo) Exists(ctx context.Context, userID int) (bool, error) {
	items, ok := m.carts[userID]
	return ok && len(items) > 0, nil
}

func (m *memCartRepo) Merge(ctx context.Context, userID int, productID string, delta int) (int, error) {
	if m.carts[userID] == nil {
		m.carts[userID] = make(map[string]int)
	}
	current := m.carts[userID][productID]
	if current+delta < 0 {
		return 0, fmt.Errorf("%w: product %s", redis_repo.ErrInvalidQuantity, productID)
	}
	if current+delta == 0 {
		delete(m.carts[userID], productID)
		return 0, nil
	}
	m.carts[userID][productID] = current + delta
	return current + delta, nil
}

func (m *memCartRepo) SetQuantity(ctx context.Context, userID int, productID string, quantity int) error {
	if _, ok := m.carts[userID][productID]; !ok {
		return fmt.Errorf("%w: product %s", redis_repo.ErrCartItemNotFound, productID)
	}
	m.carts[userID][productID] = quantity
	return nil
}

func (m *memCartRepo) Remove(ctx context.Context, userID int, productID string) error {
	delete(m.carts[userID], productID)
	return nil
}

func (m *memCartRepo) Clear(ctx context.Context, userID int) error {
	delete(m.carts, userID)
	return nil
}

var _ redis_repo.ICartRepository = (*memCartRepo)(nil)

func newTestCartService(products ...*model.Product) (*CartService, *memCartRepo) {
	store := newFakeStore(products...)
	cartRepo := newMemCartRepo()
	return NewCartService(cartRepo, &fakeProductRepo{store}), cartRepo
}

func TestCartAddItem(t *testing.T) {
	svc, _ := newTestCartService(testProduct("PROD-1", 100, 10))

	cart, err := svc.AddItem(context.Background(), 1, "PROD-1", 3)

	require.NoError(t, err)
	require.Equal(t, 3, cart.ItemQuantity("PROD-1"))
}

// 庫存檢查以合併後總量為準
func TestCartAddItem_MergedQuantityStockCheck(t *testing.T) {
	svc, _ := newTestCartService(testProduct("PROD-1", 100, 5))

	_, err := svc.AddItem(context.Background(), 1, "PROD-1", 3)
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), 1, "PROD-1", 3)
	require.ErrorIs(t, err, db.ErrProductStockNotEnough)

	// 失敗不可改動購物車
	cart, _ := svc.GetCart(context.Background(), 1)
	require.Equal(t, 3, cart.ItemQuantity("PROD-1"))
}

func TestCartAddItem_InvalidQuantity(t *testing.T) {
	svc, _ := newTestCartService(testProduct("PROD-1", 100, 10))

	_, err := svc.AddItem(context.Background(), 1, "PROD-1", 0)

	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCartAddItem_ProductNotFound(t *testing.T) {
	svc, _ := newTestCartService()

	_, err := svc.AddItem(context.Background(), 1, "NO-SUCH", 1)

	require.ErrorIs(t, err, db.ErrProductNotFound)
}

func TestCartUpdateItem(t *testing.T) {
	svc, _ := newTestCartService(testProduct("PROD-1", 100, 10))

	_, err := svc.AddItem(context.Background(), 1, "PROD-1", 3)
	require.NoError(t, err)

	cart, err := svc.UpdateItem(context.Background(), 1, "PROD-1", 7)
	require.NoError(t, err)
	require.Equal(t, 7, cart.ItemQuantity("PROD-1"))
}

func TestCartUpdateItem_ExceedsStock(t *testing.T) {
	svc, _ := newTestCartService(testProduct("PROD-1", 100, 5))

	_, err := svc.AddItem(context.Background(), 1, "PROD-1", 3)
	require.NoError(t, err)

	_, err = svc.UpdateItem(context.Background(), 1, "PROD-1", 6)
	require.ErrorIs(t, err, db.ErrProductStockNotEnough)
}

func TestCartUpdateItem_NotInCart(t *testing.T) {
	svc, _ := newTestCartService(testProduct("PROD-1", 100, 10))

	_, err := svc.UpdateItem(context.Background(), 1, "PROD-1", 2)

	require.ErrorIs(t, err, redis_repo.ErrCartItemNotFound)
}

func TestCartRemoveItem(t *testing.T) {
	svc, _ := newTestCartService(testProduct("PROD-1", 100, 10), testProduct("PROD-2", 200, 10))

	_, err := svc.AddItem(context.Background(), 1, "PROD-1", 1)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), 1, "PROD-2", 2)
	require.NoError(t, err)

	cart, err := svc.RemoveItem(context.Background(), 1, "PROD-1")
	require.NoError(t, err)
	require.Equal(t, 0, cart.ItemQuantity("PROD-1"))
	require.Equal(t, 2, cart.ItemQuantity("PROD-2"))
}

func TestCartRemoveItem_CartNotExist(t *testing.T) {
	svc, _ := newTestCartService(testProduct("PROD-1", 100, 10))

	_, err := svc.RemoveItem(context.Background(), 1, "PROD-1")

	require.ErrorIs(t, err, ErrCartNotExist)
}

func TestCartClear(t *testing.T) {
	svc, _ := newTestCartService(testProduct("PROD-1", 100, 10))

	_, err := svc.AddItem(context.Background(), 1, "PROD-1", 2)
	require.NoError(t, err)

	require.NoError(t, svc.ClearCart(context.Background(), 1))

	cart, _ := svc.GetCart(context.Background(), 1)
	require.Empty(t, cart.Items)

	// 再清一次: 購物車已不存在
	require.ErrorIs(t, svc.ClearCart(context.Background(), 1), ErrCartNotExist)
}
