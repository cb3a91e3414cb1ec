package db

import (
	"context"
	"errors"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrOrderNotFound 訂單不存在
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyPaid 訂單已付款, 不接受不同付款編號重複確認
	ErrOrderAlreadyPaid = errors.New("order is already paid")
	// ErrOrderAlreadyCancelled 訂單已取消
	ErrOrderAlreadyCancelled = errors.New("order is already cancelled")
	// ErrOrderAlreadyDelivered 已送達訂單不可取消
	ErrOrderAlreadyDelivered = errors.New("cannot cancel a delivered order")
	// ErrInvalidTransition 不合法的狀態轉移
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrEmptyOrderItems 訂單必須至少有一個品項
	ErrEmptyOrderItems = errors.New("order has no items")
)

// IOrderRepository 訂單生命週期持久化介面
// 所有狀態轉移的前置條件檢查都必須跟欄位更新在同一個事務+行鎖內完成
type IOrderRepository interface {
	CreateOrderWithStock(ctx context.Context, order *model.Order) error
	GetOrderByID(ctx context.Context, orderID string) (*model.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int) ([]model.Order, error)
	GetAllOrders(ctx context.Context) ([]model.Order, error)
	GetOrdersPaginated(ctx context.Context, page, pageSize int) ([]model.Order, int64, error)
	MarkPaid(ctx context.Context, orderID string, res model.PaymentResult) (*model.Order, bool, error)
	MarkDelivered(ctx context.Context, orderID string) (*model.Order, model.OrderStatus, error)
	UpdateStatus(ctx context.Context, orderID string, to model.OrderStatus) (*model.Order, model.OrderStatus, error)
	CancelOrderWithRestock(ctx context.Context, orderID string) (*model.Order, model.OrderStatus, error)
}

type OrderRepo struct {
	db *DbDao
}

func NewOrderRepo(db *DbDao) *OrderRepo {
	return &OrderRepo{db: db}
}

// CreateOrderWithStock 創建訂單並扣減所有品項庫存, 全有或全無
// 任一品項扣減失敗即整筆rollback, 不會留下部分扣減或孤兒訂單
// 錯誤:
//   - ErrEmptyOrderItems: 沒有品項
//   - ErrProductNotFound: 品項商品不存在
//   - *StockShortageError: 任一品項庫存不足
func (s *OrderRepo) CreateOrderWithStock(ctx context.Context, order *model.Order) error {
	if len(order.OrderItems) == 0 {
		return ErrEmptyOrderItems
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, item := range order.OrderItems {
			if err := deductStockTx(ctx, tx, item.ProductID, uint(item.Quantity)); err != nil {
				return err
			}
		}
		return tx.WithContext(ctx).Create(order).Error
	})
}

// Read - 根據ID查詢訂單
// 錯誤:
//   - ErrOrderNotFound: 訂單不存在
func (s *OrderRepo) GetOrderByID(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).Preload("OrderItems").First(&order, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Read - 根據用戶ID查詢訂單, 新的在前
func (s *OrderRepo) GetOrdersByUserID(ctx context.Context, userID int) ([]model.Order, error) {
	var orders []model.Order
	err := s.db.WithContext(ctx).Preload("OrderItems").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

// Read - 查詢所有訂單, 新的在前
func (s *OrderRepo) GetAllOrders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	err := s.db.WithContext(ctx).Preload("OrderItems").
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

// 分頁查詢訂單
func (s *OrderRepo) GetOrdersPaginated(ctx context.Context, page, pageSize int) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	offset := (page - 1) * pageSize

	if err := s.db.WithContext(ctx).Model(&model.Order{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := s.db.WithContext(ctx).Preload("OrderItems").
		Order("created_at DESC").
		Offset(offset).Limit(pageSize).
		Find(&orders).Error

	return orders, total, err
}

// 行鎖讀取訂單, 狀態轉移操作共用
// FOR UPDATE 只鎖主查詢的orders行, OrderItems建立後不變不需要鎖
func lockOrderTx(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error) {
	var order model.Order
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("OrderItems").
		First(&order, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkPaid 付款確認
// 同一外部付款編號重複確認為no-op (webhook at-least-once), applied回傳false
// 回傳的order為最終狀態
// 錯誤:
//   - ErrOrderNotFound: 訂單不存在
//   - ErrOrderAlreadyCancelled: 已取消訂單不可付款
//   - ErrOrderAlreadyPaid: 已付款且付款編號不同
func (s *OrderRepo) MarkPaid(ctx context.Context, orderID string, res model.PaymentResult) (*model.Order, bool, error) {
	var updated *model.Order
	applied := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := lockOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if order.Status == model.OrderStatusCancelled {
			return ErrOrderAlreadyCancelled
		}

		if order.IsPaid {
			if order.PaymentResult.ExternalID == res.ExternalID {
				// 重複的付款確認, 保持既有紀錄
				updated = order
				return nil
			}
			return ErrOrderAlreadyPaid
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"is_paid":             true,
			"paid_at":             now,
			"payment_external_id": res.ExternalID,
			"payment_status":      res.Status,
			"payment_settled_at":  res.SettledAt,
			"payment_payer_email": res.PayerEmail,
		}
		if order.Status == model.OrderStatusPending {
			updates["status"] = model.OrderStatusProcessing
		}

		if err := tx.WithContext(ctx).Model(&model.Order{}).
			Where("order_id = ?", orderID).
			Updates(updates).Error; err != nil {
			return err
		}

		order.IsPaid = true
		order.PaidAt = &now
		order.PaymentResult = res
		if order.Status == model.OrderStatusPending {
			order.Status = model.OrderStatusProcessing
		}
		updated = order
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return updated, applied, nil
}

// MarkDelivered 標記送達
// 未付款訂單允許送達 (COD流程)
// 錯誤:
//   - ErrOrderNotFound: 訂單不存在
//   - ErrInvalidTransition: 終態訂單不可再送達
func (s *OrderRepo) MarkDelivered(ctx context.Context, orderID string) (*model.Order, model.OrderStatus, error) {
	var updated *model.Order
	var from model.OrderStatus

	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := lockOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if !order.Status.CanTransition(model.OrderStatusDelivered) {
			return ErrInvalidTransition
		}

		now := time.Now().UTC()
		if err := tx.WithContext(ctx).Model(&model.Order{}).
			Where("order_id = ?", orderID).
			Updates(map[string]interface{}{
				"status":       model.OrderStatusDelivered,
				"is_delivered": true,
				"delivered_at": now,
			}).Error; err != nil {
			return err
		}

		from = order.Status
		order.Status = model.OrderStatusDelivered
		order.IsDelivered = true
		order.DeliveredAt = &now
		updated = order
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return updated, from, nil
}

// UpdateStatus 管理員直接指定狀態, 仍須通過狀態機轉移表
// to == delivered 同步設置 is_delivered / delivered_at (與MarkDelivered一致)
// to == cancelled 不在此處理, 取消必須走 CancelOrderWithRestock 以回補庫存
// 錯誤:
//   - ErrOrderNotFound: 訂單不存在
//   - ErrInvalidTransition: 不合法轉移 (包含 to == cancelled)
func (s *OrderRepo) UpdateStatus(ctx context.Context, orderID string, to model.OrderStatus) (*model.Order, model.OrderStatus, error) {
	if to == model.OrderStatusDelivered {
		return s.MarkDelivered(ctx, orderID)
	}
	if to == model.OrderStatusCancelled {
		return nil, "", ErrInvalidTransition
	}

	var updated *model.Order
	var from model.OrderStatus

	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := lockOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if !order.Status.CanTransition(to) {
			return ErrInvalidTransition
		}

		if err := tx.WithContext(ctx).Model(&model.Order{}).
			Where("order_id = ?", orderID).
			Update("status", to).Error; err != nil {
			return err
		}

		from = order.Status
		order.Status = to
		updated = order
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return updated, from, nil
}

// CancelOrderWithRestock 取消訂單並回補庫存
// 回補依據訂單凍結的品項數量, 與當下購物車/目錄狀態無關
// 狀態檢查與回補/取消在同一事務, 不會重複回補
// 錯誤:
//   - ErrOrderNotFound: 訂單不存在
//   - ErrOrderAlreadyDelivered: 已送達不可取消
//   - ErrOrderAlreadyCancelled: 已取消不可重複取消
//   - ErrProductNotFound: 品項商品已不存在 (整筆rollback, 訂單維持原狀態)
func (s *OrderRepo) CancelOrderWithRestock(ctx context.Context, orderID string) (*model.Order, model.OrderStatus, error) {
	var updated *model.Order
	var from model.OrderStatus

	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := lockOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if order.Status == model.OrderStatusDelivered {
			return ErrOrderAlreadyDelivered
		}
		if order.Status == model.OrderStatusCancelled {
			return ErrOrderAlreadyCancelled
		}

		for _, item := range order.OrderItems {
			if err := addStockTx(ctx, tx, item.ProductID, uint(item.Quantity)); err != nil {
				return err
			}
		}

		if err := tx.WithContext(ctx).Model(&model.Order{}).
			Where("order_id = ?", orderID).
			Update("status", model.OrderStatusCancelled).Error; err != nil {
			return err
		}

		from = order.Status
		order.Status = model.OrderStatusCancelled
		updated = order
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return updated, from, nil
}

var _ IOrderRepository = (*OrderRepo)(nil)
