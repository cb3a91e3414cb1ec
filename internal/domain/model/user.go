package model

type User struct {
	BaseModel
	UserID      int    `gorm:"primaryKey" json:"user_id"`
	UserName    string `gorm:"not null;type:varchar(50)" json:"user_name"`
	UserEmail   string `gorm:"unique;not null;type:varchar(50)" json:"user_email"`
	UserPhone   string `gorm:"unique;not null;type:varchar(50)" json:"user_phone"`
	UserAddress string `gorm:"not null;type:varchar(255)" json:"user_address"`
	IsAdmin     bool   `gorm:"not null;default:false" json:"is_admin"`
}

// Actor 代表發起操作的身份 (由外部認證模組提供)
// 所有授權檢查只依賴 UserID 與 IsAdmin
type Actor struct {
	UserID  int
	IsAdmin bool
}

// CanAccessOrder 訂單擁有者或管理員可操作
func (a Actor) CanAccessOrder(ownerID int) bool {
	return a.IsAdmin || a.UserID == ownerID
}
