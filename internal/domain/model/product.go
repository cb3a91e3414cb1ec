package model

import (
	"github.com/shopspring/decimal"
)

// 商品庫存只能透過訂單生命週期操作異動 (扣減/回補)
// 目錄欄位 (名稱/價格/圖片) 由後台維護，訂單只保留快照
type Product struct {
	ProductID   string          `gorm:"primaryKey;type:varchar(100)" json:"product_id"`
	Code        string          `gorm:"not null;type:varchar(100);unique" json:"code"`
	Name        string          `gorm:"not null;type:varchar(100)" json:"name"`
	Price       decimal.Decimal `gorm:"not null;type:decimal(10,2)" json:"price"`
	Stock       uint            `gorm:"not null;type:int" json:"stock"`
	Category    string          `gorm:"not null;type:varchar(50)" json:"category"`
	Description string          `gorm:"not null;type:text" json:"description"`
	ImageURL    string          `gorm:"type:varchar(255)" json:"image_url"`
	BaseModel
}
