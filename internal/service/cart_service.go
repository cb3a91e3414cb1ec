package service

import (
	"context"
	"errors"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/redis_repo"
)

var (
	ErrCartNotExist    = errors.New("cart is not exist")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// CartService 購物車為非約束性清單, 只檢查庫存不保留庫存
// 庫存是在訂單建立時才被扣住
type CartService struct {
	cartRepo    redis_repo.ICartRepository
	productRepo db.IProductRepository
}

func NewCartService(cartRepo redis_repo.ICartRepository, productRepo db.IProductRepository) *CartService {
	return &CartService{cartRepo: cartRepo, productRepo: productRepo}
}

// GetCart 取得購物車, 不存在視為空購物車, 不會失敗
func (s *CartService) GetCart(ctx context.Context, userID int) (*model.Cart, error) {
	return s.cartRepo.Get(ctx, userID)
}

// AddItem 加入商品, 已存在則合併數量
// 庫存檢查以合併後的總量為準, 不是只看本次增量
// 錯誤:
//   - ErrInvalidQuantity: 數量小於1
//   - db.ErrProductNotFound: 商品不存在
//   - *db.StockShortageError: 合併後數量超過庫存
func (s *CartService) AddItem(ctx context.Context, userID int, productID string, quantity int) (*model.Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.productRepo.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	cart, err := s.cartRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	desired := cart.ItemQuantity(productID) + quantity
	if desired > int(product.Stock) {
		return nil, &db.StockShortageError{ProductID: productID, Requested: desired, Available: int(product.Stock)}
	}

	if _, err := s.cartRepo.Merge(ctx, userID, productID, quantity); err != nil {
		return nil, err
	}

	return s.cartRepo.Get(ctx, userID)
}

// UpdateItem 覆寫既有品項數量
// 錯誤:
//   - ErrInvalidQuantity: 數量小於1
//   - redis_repo.ErrCartItemNotFound: 購物車內無此商品
//   - db.ErrProductNotFound: 商品不存在
//   - *db.StockShortageError: 數量超過庫存
func (s *CartService) UpdateItem(ctx context.Context, userID int, productID string, quantity int) (*model.Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.productRepo.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	if quantity > int(product.Stock) {
		return nil, &db.StockShortageError{ProductID: productID, Requested: quantity, Available: int(product.Stock)}
	}

	if err := s.cartRepo.SetQuantity(ctx, userID, productID, quantity); err != nil {
		return nil, err
	}

	return s.cartRepo.Get(ctx, userID)
}

// RemoveItem 移除品項, 冪等
// 錯誤:
//   - ErrCartNotExist: 購物車不存在
func (s *CartService) RemoveItem(ctx context.Context, userID int, productID string) (*model.Cart, error) {
	exists, err := s.cartRepo.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrCartNotExist
	}

	if err := s.cartRepo.Remove(ctx, userID, productID); err != nil {
		return nil, err
	}

	return s.cartRepo.Get(ctx, userID)
}

// ClearCart 清空購物車, 冪等
// 錯誤:
//   - ErrCartNotExist: 購物車不存在
func (s *CartService) ClearCart(ctx context.Context, userID int) error {
	exists, err := s.cartRepo.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrCartNotExist
	}

	return s.cartRepo.Clear(ctx, userID)
}
