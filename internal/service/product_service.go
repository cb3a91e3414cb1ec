package service

import (
	"context"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
)

// ProductService 庫存帳本的服務入口
// 只有訂單建立會扣庫存, 只有訂單取消會回補庫存
type ProductService struct {
	productRepo db.IProductRepository
}

func NewProductService(productRepo db.IProductRepository) *ProductService {
	return &ProductService{productRepo: productRepo}
}

func (s *ProductService) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	return s.productRepo.GetProductByID(ctx, productID)
}

func (s *ProductService) GetAllProducts(ctx context.Context) ([]model.Product, error) {
	return s.productRepo.GetAllProducts(ctx)
}

func (s *ProductService) GetProductsInStock(ctx context.Context) ([]model.Product, error) {
	return s.productRepo.GetProductsInStock(ctx)
}

// 檢查庫存是否足夠, 唯讀不扣減
// 錯誤:
//   - db.ErrProductNotFound: 商品不存在
//   - err: 其他錯誤
func (s *ProductService) CheckProductStockEnough(ctx context.Context, productID string, quantity int) (bool, error) {
	stock, err := s.productRepo.GetProductStock(ctx, productID)
	if err != nil {
		return false, err
	}

	return stock >= quantity, nil
}

// 扣除庫存
// 檢查與扣減為同一原子操作
// 錯誤:
//   - *db.StockShortageError: 庫存不足
//   - db.ErrProductNotFound: 商品不存在
//   - err: 其他錯誤
func (s *ProductService) DeductProductStock(ctx context.Context, productID string, quantity uint) error {
	return s.productRepo.DeductStock(ctx, productID, quantity)
}

func (s *ProductService) AddProductStock(ctx context.Context, productID string, quantity uint) error {
	return s.productRepo.AddStock(ctx, productID, quantity)
}
