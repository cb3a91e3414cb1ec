package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"gorm.io/gorm"
)

var (
	// ErrProductNotFound 商品不存在
	ErrProductNotFound = errors.New("product not found")
	// ErrProductStockNotEnough 商品庫存不足
	ErrProductStockNotEnough = errors.New("product stock not enough")
)

// StockShortageError 庫存不足明細，帶出商品與當下可用數量
type StockShortageError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockShortageError) Error() string {
	return fmt.Sprintf("product %s stock not enough: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *StockShortageError) Unwrap() error {
	return ErrProductStockNotEnough
}

// IProductRepository 商品與庫存操作介面
// 庫存只能透過 DeductStock / AddStock 異動
type IProductRepository interface {
	CreateProduct(ctx context.Context, product *model.Product) error
	CreateProductsBatch(ctx context.Context, products []model.Product) error
	GetProductByID(ctx context.Context, productID string) (*model.Product, error)
	GetProductByCode(ctx context.Context, code string) (*model.Product, error)
	GetProductStock(ctx context.Context, productID string) (int, error)
	GetAllProducts(ctx context.Context) ([]model.Product, error)
	GetProductsInStock(ctx context.Context) ([]model.Product, error)
	GetProductsPaginated(ctx context.Context, page, pageSize int) ([]model.Product, int64, error)
	UpdateProduct(ctx context.Context, product *model.Product) error
	HardDeleteProduct(ctx context.Context, productID string) error
	DeductStock(ctx context.Context, productID string, quantity uint) error
	AddStock(ctx context.Context, productID string, quantity uint) error
}

type ProductRepo struct {
	db *DbDao
}

func NewProductRepo(db *DbDao) *ProductRepo {
	return &ProductRepo{db: db}
}

func (s *ProductRepo) CreateProduct(ctx context.Context, product *model.Product) error {
	return s.db.WithContext(ctx).Create(product).Error
}

// 批量創建商品
func (s *ProductRepo) CreateProductsBatch(ctx context.Context, products []model.Product) error {
	return s.db.WithContext(ctx).Create(&products).Error
}

// Read - 根據ID查詢商品
// 錯誤:
//   - ErrProductNotFound: 商品不存在
func (s *ProductRepo) GetProductByID(ctx context.Context, productID string) (*model.Product, error) {
	var product model.Product
	err := s.db.WithContext(ctx).Where("product_id = ?", productID).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *ProductRepo) GetProductByCode(ctx context.Context, code string) (*model.Product, error) {
	var product model.Product
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// 取得商品目前庫存，唯讀
// 錯誤:
//   - ErrProductNotFound: 商品不存在
func (s *ProductRepo) GetProductStock(ctx context.Context, productID string) (int, error) {
	product, err := s.GetProductByID(ctx, productID)
	if err != nil {
		return 0, err
	}
	return int(product.Stock), nil
}

func (s *ProductRepo) GetAllProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := s.db.WithContext(ctx).Find(&products).Error
	return products, err
}

// Read - 查詢有庫存的商品
func (s *ProductRepo) GetProductsInStock(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := s.db.WithContext(ctx).Where("stock > 0").Find(&products).Error
	return products, err
}

// 分頁查詢商品
func (s *ProductRepo) GetProductsPaginated(ctx context.Context, page, pageSize int) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	offset := (page - 1) * pageSize

	if err := s.db.WithContext(ctx).Model(&model.Product{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := s.db.WithContext(ctx).Offset(offset).Limit(pageSize).Find(&products).Error

	return products, total, err
}

// Update - 更新商品目錄欄位，不可用於異動庫存
func (s *ProductRepo) UpdateProduct(ctx context.Context, product *model.Product) error {
	return s.db.WithContext(ctx).Save(product).Error
}

// Delete - 硬刪除商品
func (s *ProductRepo) HardDeleteProduct(ctx context.Context, productID string) error {
	return s.db.WithContext(ctx).Unscoped().Where("product_id = ?", productID).Delete(&model.Product{}).Error
}

// DeductStock 原子性扣減庫存
// 錯誤:
//   - ErrProductNotFound: 商品不存在
//   - *StockShortageError (wraps ErrProductStockNotEnough): 庫存不足
func (s *ProductRepo) DeductStock(ctx context.Context, productID string, quantity uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return deductStockTx(ctx, tx, productID, quantity)
	})
}

// AddStock 回補庫存，只用於訂單取消，無上限
// 錯誤:
//   - ErrProductNotFound: 商品不存在
func (s *ProductRepo) AddStock(ctx context.Context, productID string, quantity uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return addStockTx(ctx, tx, productID, quantity)
	})
}

// 檢查與扣減必須是同一條UPDATE, 不能先讀再寫
// 以 WHERE stock >= quantity 的條件更新搭配 RowsAffected 判斷結果
func deductStockTx(ctx context.Context, tx *gorm.DB, productID string, quantity uint) error {
	result := tx.WithContext(ctx).Model(&model.Product{}).
		Where("product_id = ? AND stock >= ?", productID, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// 區分商品不存在與庫存不足
	var product model.Product
	err := tx.WithContext(ctx).Where("product_id = ?", productID).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrProductNotFound
	}
	if err != nil {
		return err
	}
	return &StockShortageError{ProductID: productID, Requested: int(quantity), Available: int(product.Stock)}
}

func addStockTx(ctx context.Context, tx *gorm.DB, productID string, quantity uint) error {
	result := tx.WithContext(ctx).Model(&model.Product{}).
		Where("product_id = ?", productID).
		Update("stock", gorm.Expr("stock + ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

var _ IProductRepository = (*ProductRepo)(nil)
