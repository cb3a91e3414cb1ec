package model

import (
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/shopspring/decimal"
)

// 訂單階段 OrderItems 不會變動, 只有狀態與付款/配送欄位會變動
type OrderCreatedEvent struct {
	BaseEvent
	OrderID       string              `json:"order_id"`
	UserID        int                 `json:"user_id"`
	Items         []model.OrderItem   `json:"items"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
	TotalPrice    decimal.Decimal     `json:"total_price"`
	ToStatus      model.OrderStatus   `json:"to_status"`
}

func NewOrderCreatedEvent(order *model.Order) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseEvent:     NewBaseEvent(order.OrderID, OrderCreatedEventName),
		OrderID:       order.OrderID,
		UserID:        order.UserID,
		Items:         order.OrderItems,
		PaymentMethod: order.PaymentMethod,
		TotalPrice:    order.TotalPrice,
		ToStatus:      order.Status,
	}
}

func (e *OrderCreatedEvent) Type() EventType {
	return OrderCreatedEventName
}

type OrderPaidEvent struct {
	BaseEvent
	OrderID    string            `json:"order_id"`
	UserID     int               `json:"user_id"`
	ExternalID string            `json:"external_id"`
	PaidAt     time.Time         `json:"paid_at"`
	FromStatus model.OrderStatus `json:"from_status"`
	ToStatus   model.OrderStatus `json:"to_status"`
}

func NewOrderPaidEvent(order *model.Order, from model.OrderStatus) *OrderPaidEvent {
	evt := &OrderPaidEvent{
		BaseEvent:  NewBaseEvent(order.OrderID, OrderPaidEventName),
		OrderID:    order.OrderID,
		UserID:     order.UserID,
		ExternalID: order.PaymentResult.ExternalID,
		FromStatus: from,
		ToStatus:   order.Status,
	}
	if order.PaidAt != nil {
		evt.PaidAt = *order.PaidAt
	}
	return evt
}

func (e *OrderPaidEvent) Type() EventType {
	return OrderPaidEventName
}

type OrderDeliveredEvent struct {
	BaseEvent
	OrderID     string            `json:"order_id"`
	UserID      int               `json:"user_id"`
	DeliveredAt time.Time         `json:"delivered_at"`
	FromStatus  model.OrderStatus `json:"from_status"`
	ToStatus    model.OrderStatus `json:"to_status"`
}

func NewOrderDeliveredEvent(order *model.Order, from model.OrderStatus) *OrderDeliveredEvent {
	evt := &OrderDeliveredEvent{
		BaseEvent:  NewBaseEvent(order.OrderID, OrderDeliveredEventName),
		OrderID:    order.OrderID,
		UserID:     order.UserID,
		FromStatus: from,
		ToStatus:   order.Status,
	}
	if order.DeliveredAt != nil {
		evt.DeliveredAt = *order.DeliveredAt
	}
	return evt
}

func (e *OrderDeliveredEvent) Type() EventType {
	return OrderDeliveredEventName
}

type OrderCancelledEvent struct {
	BaseEvent
	OrderID    string            `json:"order_id"`
	UserID     int               `json:"user_id"`
	Items      []model.OrderItem `json:"items"` // 回補庫存依據凍結數量
	FromStatus model.OrderStatus `json:"from_status"`
	ToStatus   model.OrderStatus `json:"to_status"`
}

func NewOrderCancelledEvent(order *model.Order, from model.OrderStatus) *OrderCancelledEvent {
	return &OrderCancelledEvent{
		BaseEvent:  NewBaseEvent(order.OrderID, OrderCancelledEventName),
		OrderID:    order.OrderID,
		UserID:     order.UserID,
		Items:      order.OrderItems,
		FromStatus: from,
		ToStatus:   model.OrderStatusCancelled,
	}
}

func (e *OrderCancelledEvent) Type() EventType {
	return OrderCancelledEventName
}

type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID    string            `json:"order_id"`
	UserID     int               `json:"user_id"`
	FromStatus model.OrderStatus `json:"from_status"`
	ToStatus   model.OrderStatus `json:"to_status"`
}

func NewOrderStatusChangedEvent(order *model.Order, from model.OrderStatus) *OrderStatusChangedEvent {
	return &OrderStatusChangedEvent{
		BaseEvent:  NewBaseEvent(order.OrderID, OrderStatusChangedEventName),
		OrderID:    order.OrderID,
		UserID:     order.UserID,
		FromStatus: from,
		ToStatus:   order.Status,
	}
}

func (e *OrderStatusChangedEvent) Type() EventType {
	return OrderStatusChangedEventName
}

// PaymentConfirmedEvent 金流閘道付款確認訊息 (payment-event topic)
// webhook 為 at-least-once, 同一筆確認可能重複送達
type PaymentConfirmedEvent struct {
	BaseEvent
	OrderID    string     `json:"order_id"`
	ExternalID string     `json:"external_id"`
	Status     string     `json:"status"`
	SettledAt  *time.Time `json:"settled_at"`
	PayerEmail string     `json:"payer_email"`
}

func (e *PaymentConfirmedEvent) Type() EventType {
	return PaymentConfirmedEventName
}
