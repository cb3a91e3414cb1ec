package service

import (
	"context"
	"errors"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	evt_model "github.com/RoyceAzure/lab/storefront/internal/domain/model/event"
	"github.com/RoyceAzure/lab/storefront/internal/infra/producer"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/eventdb"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/redis_repo"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotAuthorized 非訂單擁有者且非管理員
	ErrNotAuthorized = errors.New("not authorized")
	// ErrInvalidShippingAddress 收件地址欄位不完整
	ErrInvalidShippingAddress = errors.New("shipping address is incomplete")
	// ErrInvalidAmount 金額不變量不成立 (total != items + tax + shipping 或有負值)
	ErrInvalidAmount = errors.New("order amounts are inconsistent")
	// ErrInvalidPaymentResult 付款結果缺少外部付款編號
	ErrInvalidPaymentResult = errors.New("payment result requires an external id")
)

type OrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderRequest 結帳請求
// 金額由結帳流程計算後傳入, 落庫後即為快照, 不再重算
type CreateOrderRequest struct {
	Items           []OrderItemRequest    `json:"items"`
	ShippingAddress model.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                `json:"payment_method"`
	ItemsPrice      decimal.Decimal       `json:"items_price"`
	TaxPrice        decimal.Decimal       `json:"tax_price"`
	ShippingPrice   decimal.Decimal       `json:"shipping_price"`
	TotalPrice      decimal.Decimal       `json:"total_price"`
}

type IOrderService interface {
	CreateOrder(ctx context.Context, actor model.Actor, req CreateOrderRequest) (*model.Order, error)
	MarkPaid(ctx context.Context, actor model.Actor, orderID string, res model.PaymentResult) (*model.Order, error)
	Deliver(ctx context.Context, actor model.Actor, orderID string) (*model.Order, error)
	SetStatus(ctx context.Context, actor model.Actor, orderID string, status string) (*model.Order, error)
	CancelOrder(ctx context.Context, actor model.Actor, orderID string) (*model.Order, error)
	GetOrder(ctx context.Context, actor model.Actor, orderID string) (*model.Order, error)
	GetMyOrders(ctx context.Context, actor model.Actor) ([]model.Order, error)
	GetAllOrders(ctx context.Context, actor model.Actor) ([]model.Order, error)
	GetOrderHistory(ctx context.Context, actor model.Actor, orderID string) ([]*esdb.ResolvedEvent, error)
}

// OrderService 訂單生命週期引擎
// 建立/取消的庫存副作用與訂單異動在repo層同一事務內完成
// 審計日誌與事件發布在事務提交後進行, 失敗不影響主流程 (記log)
type OrderService struct {
	orderRepo     db.IOrderRepository
	productRepo   db.IProductRepository
	cartRepo      redis_repo.ICartRepository
	eventDao      *eventdb.EventDao
	eventProducer producer.IOrderEventProducer
}

func NewOrderService(
	orderRepo db.IOrderRepository,
	productRepo db.IProductRepository,
	cartRepo redis_repo.ICartRepository,
	eventDao *eventdb.EventDao,
	eventProducer producer.IOrderEventProducer,
) *OrderService {
	if orderRepo == nil {
		panic("order service dependency orderRepo is nil")
	}
	if productRepo == nil {
		panic("order service dependency productRepo is nil")
	}
	return &OrderService{
		orderRepo:     orderRepo,
		productRepo:   productRepo,
		cartRepo:      cartRepo,
		eventDao:      eventDao,
		eventProducer: eventProducer,
	}
}

// CreateOrder 結帳: 驗證 → 快照 → 扣庫存+落單(同一事務) → 清購物車
// 任一品項庫存不足即整筆失敗, 不會扣任何庫存也不會留下訂單
// 清購物車只在訂單與庫存都成功後執行
// 錯誤:
//   - db.ErrEmptyOrderItems: 沒有品項
//   - ErrInvalidQuantity: 品項數量小於1
//   - ErrInvalidShippingAddress: 地址不完整
//   - model.ErrInvalidPaymentMethod: 不支援的付款方式
//   - ErrInvalidAmount: 金額不變量不成立
//   - db.ErrProductNotFound: 品項商品不存在
//   - *db.StockShortageError: 庫存不足 (帶商品與可用數量)
func (s *OrderService) CreateOrder(ctx context.Context, actor model.Actor, req CreateOrderRequest) (*model.Order, error) {
	if len(req.Items) == 0 {
		return nil, db.ErrEmptyOrderItems
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
	}
	if !req.ShippingAddress.IsComplete() {
		return nil, ErrInvalidShippingAddress
	}

	method, err := model.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	orderID := uuid.New().String()

	// 同商品多筆品項先合併, 快照以目錄當下內容為準
	merged := make([]OrderItemRequest, 0, len(req.Items))
	index := make(map[string]int, len(req.Items))
	for _, item := range req.Items {
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}

	orderItems := make([]model.OrderItem, 0, len(merged))
	for _, item := range merged {
		product, err := s.productRepo.GetProductByID(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		orderItems = append(orderItems, model.OrderItem{
			OrderID:   orderID,
			ProductID: product.ProductID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  item.Quantity,
			ImageURL:  product.ImageURL,
		})
	}

	order := &model.Order{
		OrderID:         orderID,
		UserID:          actor.UserID,
		OrderItems:      orderItems,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   method,
		ItemsPrice:      req.ItemsPrice,
		TaxPrice:        req.TaxPrice,
		ShippingPrice:   req.ShippingPrice,
		TotalPrice:      req.TotalPrice,
		IsPaid:          false,
		Status:          model.OrderStatusPending,
	}
	if !order.ValidateTotals() {
		return nil, ErrInvalidAmount
	}

	if err := s.orderRepo.CreateOrderWithStock(ctx, order); err != nil {
		return nil, err
	}

	// 訂單已成立, 購物車清空失敗不rollback訂單 (購物車非約束性)
	if s.cartRepo != nil {
		if err := s.cartRepo.Clear(ctx, actor.UserID); err != nil {
			log.Error().Err(err).Str("order_id", order.OrderID).Int("user_id", actor.UserID).Msg("failed to clear cart after order creation")
		}
	}

	s.recordEvent(ctx, order.OrderID, evt_model.NewOrderCreatedEvent(order), func(e evt_model.Event) error {
		return s.eventProducer.ProduceOrderCreatedEvent(ctx, e.(*evt_model.OrderCreatedEvent))
	})

	return order, nil
}

// MarkPaid 付款確認
// 同一外部付款編號重複確認為no-op, 不會覆寫既有付款紀錄也不會重發事件
// 錯誤:
//   - ErrInvalidPaymentResult: 缺外部付款編號
//   - db.ErrOrderNotFound, ErrNotAuthorized
//   - db.ErrOrderAlreadyCancelled: 已取消訂單不可付款
//   - db.ErrOrderAlreadyPaid: 已付款且付款編號不同
func (s *OrderService) MarkPaid(ctx context.Context, actor model.Actor, orderID string, res model.PaymentResult) (*model.Order, error) {
	if res.ExternalID == "" {
		return nil, ErrInvalidPaymentResult
	}

	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessOrder(order.UserID) {
		return nil, ErrNotAuthorized
	}

	from := order.Status
	updated, applied, err := s.orderRepo.MarkPaid(ctx, orderID, res)
	if err != nil {
		return nil, err
	}

	if applied {
		s.recordEvent(ctx, updated.OrderID, evt_model.NewOrderPaidEvent(updated, from), func(e evt_model.Event) error {
			return s.eventProducer.ProduceOrderPaidEvent(ctx, e.(*evt_model.OrderPaidEvent))
		})
	}

	return updated, nil
}

// Deliver 標記送達, 僅管理員
// COD訂單允許未付款送達, isPaid不會因送達而改變
// 錯誤:
//   - ErrNotAuthorized, db.ErrOrderNotFound
//   - db.ErrInvalidTransition: 終態訂單
func (s *OrderService) Deliver(ctx context.Context, actor model.Actor, orderID string) (*model.Order, error) {
	if !actor.IsAdmin {
		return nil, ErrNotAuthorized
	}

	updated, from, err := s.orderRepo.MarkDelivered(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, updated.OrderID, evt_model.NewOrderDeliveredEvent(updated, from), func(e evt_model.Event) error {
		return s.eventProducer.ProduceOrderDeliveredEvent(ctx, e.(*evt_model.OrderDeliveredEvent))
	})

	return updated, nil
}

// SetStatus 管理員指定狀態, 仍走狀態機轉移表
// status == delivered 同步設置送達欄位
// status == cancelled 等同取消流程, 會回補庫存
// 錯誤:
//   - ErrNotAuthorized, db.ErrOrderNotFound
//   - model.ErrInvalidOrderStatus: 不在五種狀態內
//   - db.ErrInvalidTransition: 不合法轉移
//   - db.ErrOrderAlreadyDelivered / db.ErrOrderAlreadyCancelled: 取消路徑的終態檢查
func (s *OrderService) SetStatus(ctx context.Context, actor model.Actor, orderID string, status string) (*model.Order, error) {
	if !actor.IsAdmin {
		return nil, ErrNotAuthorized
	}

	to, err := model.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	if to == model.OrderStatusCancelled {
		return s.CancelOrder(ctx, actor, orderID)
	}

	updated, from, err := s.orderRepo.UpdateStatus(ctx, orderID, to)
	if err != nil {
		return nil, err
	}

	if to == model.OrderStatusDelivered {
		s.recordEvent(ctx, updated.OrderID, evt_model.NewOrderDeliveredEvent(updated, from), func(e evt_model.Event) error {
			return s.eventProducer.ProduceOrderDeliveredEvent(ctx, e.(*evt_model.OrderDeliveredEvent))
		})
	} else {
		s.recordEvent(ctx, updated.OrderID, evt_model.NewOrderStatusChangedEvent(updated, from), func(e evt_model.Event) error {
			return s.eventProducer.ProduceOrderStatusChangedEvent(ctx, e.(*evt_model.OrderStatusChangedEvent))
		})
	}

	return updated, nil
}

// CancelOrder 取消訂單並回補庫存
// 回補使用訂單凍結的品項數量, 恰好一次, 與目前目錄/購物車狀態無關
// 錯誤:
//   - db.ErrOrderNotFound, ErrNotAuthorized
//   - db.ErrOrderAlreadyDelivered: 已送達不可取消
//   - db.ErrOrderAlreadyCancelled: 不可重複取消
func (s *OrderService) CancelOrder(ctx context.Context, actor model.Actor, orderID string) (*model.Order, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessOrder(order.UserID) {
		return nil, ErrNotAuthorized
	}

	updated, from, err := s.orderRepo.CancelOrderWithRestock(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, updated.OrderID, evt_model.NewOrderCancelledEvent(updated, from), func(e evt_model.Event) error {
		return s.eventProducer.ProduceOrderCancelledEvent(ctx, e.(*evt_model.OrderCancelledEvent))
	})

	return updated, nil
}

// GetOrder 查單, 擁有者或管理員
func (s *OrderService) GetOrder(ctx context.Context, actor model.Actor, orderID string) (*model.Order, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessOrder(order.UserID) {
		return nil, ErrNotAuthorized
	}
	return order, nil
}

func (s *OrderService) GetMyOrders(ctx context.Context, actor model.Actor) ([]model.Order, error) {
	return s.orderRepo.GetOrdersByUserID(ctx, actor.UserID)
}

// GetAllOrders 僅管理員
func (s *OrderService) GetAllOrders(ctx context.Context, actor model.Actor) ([]model.Order, error) {
	if !actor.IsAdmin {
		return nil, ErrNotAuthorized
	}
	return s.orderRepo.GetAllOrders(ctx)
}

// GetOrderHistory 讀取訂單審計日誌 (eventstore), 僅管理員
func (s *OrderService) GetOrderHistory(ctx context.Context, actor model.Actor, orderID string) ([]*esdb.ResolvedEvent, error) {
	if !actor.IsAdmin {
		return nil, ErrNotAuthorized
	}
	if s.eventDao == nil {
		return nil, nil
	}
	return s.eventDao.ReadEvents(ctx, eventdb.GenerateOrderStreamID(orderID))
}

// 審計日誌與kafka事件為事務提交後的副作用, 失敗記log不中斷主流程
func (s *OrderService) recordEvent(ctx context.Context, orderID string, evt evt_model.Event, produce func(evt_model.Event) error) {
	if s.eventDao != nil {
		if err := s.eventDao.AppendEvent(ctx, eventdb.GenerateOrderStreamID(orderID), string(evt.Type()), evt); err != nil {
			log.Error().Err(err).Str("order_id", orderID).Str("event_type", string(evt.Type())).Msg("failed to append order audit event")
		}
	}
	if s.eventProducer != nil {
		if err := produce(evt); err != nil {
			log.Error().Err(err).Str("order_id", orderID).Str("event_type", string(evt.Type())).Msg("failed to publish order event")
		}
	}
}

var _ IOrderService = (*OrderService)(nil)
