package model

// 購物車只存在redis, 不落db
// 一個商品在購物車中只會有一個品項，重複加入會合併數量
type Cart struct {
	UserID int        `json:"user_id"`
	Items  []CartItem `json:"items"`
}

type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// ItemQuantity 回傳購物車內指定商品目前數量，不存在則為0
func (c *Cart) ItemQuantity(productID string) int {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}
