package redis_repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/redis/go-redis/v9"
)

type CartRepoError error

var (
	ErrCartItemNotFound CartRepoError = errors.New("cart item not found")
	ErrInvalidQuantity  CartRepoError = errors.New("invalid quantity")
)

// ICartRepository 購物車只存在redis
// 購物車不異動庫存, 只有訂單建立/取消會動到庫存
type ICartRepository interface {
	Get(ctx context.Context, userID int) (*model.Cart, error)
	Exists(ctx context.Context, userID int) (bool, error)
	Merge(ctx context.Context, userID int, productID string, delta int) (int, error)
	SetQuantity(ctx context.Context, userID int, productID string, quantity int) error
	Remove(ctx context.Context, userID int, productID string) error
	Clear(ctx context.Context, userID int) error
}

type CartRepo struct {
	cartCache *redis.Client
}

func NewCartRepo(cartCache *redis.Client) *CartRepo {
	return &CartRepo{cartCache: cartCache}
}

func generateCartItemKey(userID int) string {
	return fmt.Sprintf("cart:%d:items", userID)
}

// Get 取購物車內容
// hash不存在視為空購物車 (lazy create)
func (r *CartRepo) Get(ctx context.Context, userID int) (*model.Cart, error) {
	itemsKey := generateCartItemKey(userID)

	items, err := r.cartCache.HGetAll(ctx, itemsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get cart items: %w", err)
	}

	cart := &model.Cart{
		UserID: userID,
		Items:  make([]model.CartItem, 0, len(items)),
	}
	for productID, quantityStr := range items {
		quantity, err := strconv.Atoi(quantityStr)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity for product %s: %w", productID, err)
		}
		if quantity > 0 {
			cart.Items = append(cart.Items, model.CartItem{
				ProductID: productID,
				Quantity:  quantity,
			})
		}
	}

	return cart, nil
}

func (r *CartRepo) Exists(ctx context.Context, userID int) (bool, error) {
	n, err := r.cartCache.Exists(ctx, generateCartItemKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cart existence: %w", err)
	}
	return n > 0, nil
}

// Merge 合併同商品數量 (支援 delta 增減), 回傳合併後數量
// 扣到0會直接移除該品項
func (r *CartRepo) Merge(ctx context.Context, userID int, productID string, delta int) (int, error) {
	itemsKey := generateCartItemKey(userID)

	// 使用 Lua 腳本執行原子增減
	luaScript := `
		local key = KEYS[1]
		local product_id = ARGV[1]
		local delta = tonumber(ARGV[2])

		if delta < 0 then
			local current = tonumber(redis.call('HGET', key, product_id) or "0")
			if current + delta < 0 then
				return -2
			end
			if current == -delta then
				redis.call('HDEL', key, product_id)
				return 0
			end
		end

		return redis.call('HINCRBY', key, product_id, delta)
	`

	result, err := r.cartCache.Eval(ctx, luaScript, []string{itemsKey}, productID, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to merge cart item: %w", err)
	}

	switch v := result.(type) {
	case int64:
		if v == -2 {
			return 0, fmt.Errorf("%w: product %s", ErrInvalidQuantity, productID)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("unexpected result type: %T", result)
	}
}

// SetQuantity 覆寫既有品項數量, 品項不存在則失敗
// 錯誤:
//   - ErrCartItemNotFound: 購物車內無此商品
func (r *CartRepo) SetQuantity(ctx context.Context, userID int, productID string, quantity int) error {
	itemsKey := generateCartItemKey(userID)

	luaScript := `
		local key = KEYS[1]
		local product_id = ARGV[1]
		if redis.call('HEXISTS', key, product_id) == 0 then
			return -1
		end
		redis.call('HSET', key, product_id, ARGV[2])
		return 1
	`

	result, err := r.cartCache.Eval(ctx, luaScript, []string{itemsKey}, productID, quantity).Result()
	if err != nil {
		return fmt.Errorf("failed to set cart item quantity: %w", err)
	}

	if v, ok := result.(int64); ok && v == -1 {
		return fmt.Errorf("%w: product %s", ErrCartItemNotFound, productID)
	}
	return nil
}

// Remove 從購物車移除指定商品, 冪等
func (r *CartRepo) Remove(ctx context.Context, userID int, productID string) error {
	itemsKey := generateCartItemKey(userID)
	if err := r.cartCache.HDel(ctx, itemsKey, productID).Err(); err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

// Clear 清空購物車 (清空不是刪除使用者的購物車概念, 下次Get仍回空購物車)
func (r *CartRepo) Clear(ctx context.Context, userID int) error {
	itemsKey := generateCartItemKey(userID)
	if err := r.cartCache.Del(ctx, itemsKey).Err(); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

var _ ICartRepository = (*CartRepo)(nil)
