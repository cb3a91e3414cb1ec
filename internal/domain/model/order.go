package model

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidPaymentMethod 不支援的付款方式
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	// ErrInvalidOrderStatus 不存在的訂單狀態
	ErrInvalidOrderStatus = errors.New("invalid order status")
)

// PaymentMethod 付款方式，一律以小寫正規形式儲存
type PaymentMethod string

const (
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodCOD        PaymentMethod = "cod"
	PaymentMethodPaypal     PaymentMethod = "paypal"
	PaymentMethodNetbanking PaymentMethod = "netbanking"
)

// ParsePaymentMethod 大小寫不敏感，正規化為小寫後驗證
// 錯誤:
//   - ErrInvalidPaymentMethod: 不在支援清單內
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case PaymentMethodCard, PaymentMethodUPI, PaymentMethodCOD, PaymentMethodPaypal, PaymentMethodNetbanking:
		return m, nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}

// OrderStatus 訂單狀態機
// pending → processing → shipped → delivered, 前進方向可跳階
// cancelled 除 delivered 外任一狀態可達
// delivered / cancelled 為終態
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// 前進順序，cancelled 不在序列內
var statusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusProcessing: 1,
	OrderStatusShipped:    2,
	OrderStatusDelivered:  3,
}

// ParseOrderStatus 驗證狀態字串
// 錯誤:
//   - ErrInvalidOrderStatus: 不在五種狀態內
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return st, nil
	default:
		return "", ErrInvalidOrderStatus
	}
}

// IsTerminal 終態不允許任何後續轉移
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransition 狀態機合法轉移表
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	if s.IsTerminal() || s == to {
		return false
	}
	if to == OrderStatusCancelled {
		return true
	}
	fromRank, ok := statusRank[s]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// ShippingAddress 收件地址，訂單獨佔持有
type ShippingAddress struct {
	Street  string `gorm:"not null;type:varchar(255)" json:"street"`
	City    string `gorm:"not null;type:varchar(100)" json:"city"`
	State   string `gorm:"not null;type:varchar(100)" json:"state"`
	ZipCode string `gorm:"not null;type:varchar(20)" json:"zip_code"`
	Country string `gorm:"not null;type:varchar(100)" json:"country"`
}

// IsComplete 所有欄位皆為必填
func (a ShippingAddress) IsComplete() bool {
	return a.Street != "" && a.City != "" && a.State != "" && a.ZipCode != "" && a.Country != ""
}

// PaymentResult 金流閘道回報的付款結果，付款確認前為零值
type PaymentResult struct {
	ExternalID string     `gorm:"type:varchar(100)" json:"external_id"`
	Status     string     `gorm:"type:varchar(50)" json:"status"`
	SettledAt  *time.Time `json:"settled_at"`
	PayerEmail string     `gorm:"type:varchar(100)" json:"payer_email"`
}

// OrderItem 下單當下的商品快照
// 之後目錄改價/改名不得回溯影響歷史訂單
// ProductID 只作顯示/回連用的弱引用
type OrderItem struct {
	OrderID   string          `gorm:"primaryKey;type:varchar(100)" json:"order_id"`
	ProductID string          `gorm:"primaryKey;type:varchar(100)" json:"product_id"`
	Name      string          `gorm:"not null;type:varchar(100)" json:"name"`
	UnitPrice decimal.Decimal `gorm:"not null;type:decimal(10,2)" json:"unit_price"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	ImageURL  string          `gorm:"type:varchar(255)" json:"image_url"`
	BaseModel
}

type Order struct {
	OrderID         string          `gorm:"primaryKey;type:varchar(100)" json:"order_id"`
	UserID          int             `gorm:"not null;index" json:"user_id"` // 建立後不可變
	OrderItems      []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"order_items"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	PaymentMethod   PaymentMethod   `gorm:"not null;type:varchar(20)" json:"payment_method"`
	PaymentResult   PaymentResult   `gorm:"embedded;embeddedPrefix:payment_" json:"payment_result"`

	// 金額皆為建立當下快照，事後不重算
	ItemsPrice    decimal.Decimal `gorm:"not null;type:decimal(10,2)" json:"items_price"`
	TaxPrice      decimal.Decimal `gorm:"not null;type:decimal(10,2)" json:"tax_price"`
	ShippingPrice decimal.Decimal `gorm:"not null;type:decimal(10,2)" json:"shipping_price"`
	TotalPrice    decimal.Decimal `gorm:"not null;type:decimal(10,2)" json:"total_price"`

	IsPaid      bool        `gorm:"not null;default:false" json:"is_paid"`
	PaidAt      *time.Time  `json:"paid_at"`
	IsDelivered bool        `gorm:"not null;default:false" json:"is_delivered"`
	DeliveredAt *time.Time  `json:"delivered_at"`
	Status      OrderStatus `gorm:"not null;type:varchar(20);default:'pending'" json:"status"`
	BaseModel
}

// ValidateTotals 金額不變量: total = items + tax + shipping, 皆不為負
func (o *Order) ValidateTotals() bool {
	if o.ItemsPrice.IsNegative() || o.TaxPrice.IsNegative() || o.ShippingPrice.IsNegative() || o.TotalPrice.IsNegative() {
		return false
	}
	return o.ItemsPrice.Add(o.TaxPrice).Add(o.ShippingPrice).Equal(o.TotalPrice)
}
