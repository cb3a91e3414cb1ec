package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type OrderRepoTestSuite struct {
	suite.Suite
	db          *gorm.DB
	orderRepo   *OrderRepo
	productRepo *ProductRepo
	userRepo    *UserRepo
}

// SetupSuite 在測試套件開始前執行
func (suite *OrderRepoTestSuite) SetupSuite() {
	db, err := GetDbConn("lab_storefront", "localhost", "5432", "royce", "password")
	require.NoError(suite.T(), err)
	dbDao := NewDbDao(db)
	require.NoError(suite.T(), dbDao.InitMigrate())

	suite.db = db
	suite.orderRepo = NewOrderRepo(dbDao)
	suite.productRepo = NewProductRepo(dbDao)
	suite.userRepo = NewUserRepo(dbDao)
}

// SetupTest 在每個測試前執行
func (suite *OrderRepoTestSuite) SetupTest() {
	// 清空資料表
	suite.db.Exec("DELETE FROM order_items")
	suite.db.Exec("DELETE FROM orders")
	suite.db.Exec("DELETE FROM products")
	suite.db.Exec("DELETE FROM users")
}

// TearDownSuite 在測試套件結束後執行
func (suite *OrderRepoTestSuite) TearDownSuite() {
	sqlDB, _ := suite.db.DB()
	sqlDB.Close()
}

func (suite *OrderRepoTestSuite) createTestUser() *model.User {
	user := &model.User{
		UserName:    "Test User",
		UserEmail:   "test@example.com",
		UserPhone:   "1234567890",
		UserAddress: "123 Test St",
	}
	suite.userRepo.CreateUser(context.Background(), user)
	return user
}

func (suite *OrderRepoTestSuite) createTestProducts(stocks ...uint) []*model.Product {
	products := make([]*model.Product, len(stocks))
	for i, stock := range stocks {
		products[i] = &model.Product{
			ProductID: fmt.Sprintf("PROD-%d", i+1),
			Code:      fmt.Sprintf("CODE-%d", i+1),
			Name:      fmt.Sprintf("Test Product %d", i+1),
			Price:     decimal.NewFromInt(int64((i + 1) * 100)),
			Stock:     stock,
		}
		require.NoError(suite.T(), suite.productRepo.CreateProduct(context.Background(), products[i]))
	}
	return products
}

func testAddress() model.ShippingAddress {
	return model.ShippingAddress{
		Street:  "123 Test St",
		City:    "Taipei",
		State:   "TW",
		ZipCode: "100",
		Country: "Taiwan",
	}
}

func (suite *OrderRepoTestSuite) buildOrder(userID int, items ...model.OrderItem) *model.Order {
	orderID := uuid.New().String()
	itemsPrice := decimal.Zero
	for i := range items {
		items[i].OrderID = orderID
		itemsPrice = itemsPrice.Add(items[i].UnitPrice.Mul(decimal.NewFromInt(int64(items[i].Quantity))))
	}
	return &model.Order{
		OrderID:         orderID,
		UserID:          userID,
		OrderItems:      items,
		ShippingAddress: testAddress(),
		PaymentMethod:   model.PaymentMethodCard,
		ItemsPrice:      itemsPrice,
		TaxPrice:        decimal.Zero,
		ShippingPrice:   decimal.Zero,
		TotalPrice:      itemsPrice,
		Status:          model.OrderStatusPending,
	}
}

func (suite *OrderRepoTestSuite) TestCreateOrderWithStock() {
	user := suite.createTestUser()
	products := suite.createTestProducts(10, 5)

	order := suite.buildOrder(user.UserID,
		model.OrderItem{ProductID: products[0].ProductID, Name: products[0].Name, UnitPrice: products[0].Price, Quantity: 3},
		model.OrderItem{ProductID: products[1].ProductID, Name: products[1].Name, UnitPrice: products[1].Price, Quantity: 5},
	)

	err := suite.orderRepo.CreateOrderWithStock(context.Background(), order)

	require.NoError(suite.T(), err)

	found, err := suite.orderRepo.GetOrderByID(context.Background(), order.OrderID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), model.OrderStatusPending, found.Status)
	require.Len(suite.T(), found.OrderItems, 2)

	stock1, _ := suite.productRepo.GetProductStock(context.Background(), products[0].ProductID)
	stock2, _ := suite.productRepo.GetProductStock(context.Background(), products[1].ProductID)
	require.Equal(suite.T(), 7, stock1)
	require.Equal(suite.T(), 0, stock2)
}

// 任一品項不足, 整筆失敗且其他品項庫存不動
func (suite *OrderRepoTestSuite) TestCreateOrderWithStock_AllOrNothing() {
	user := suite.createTestUser()
	products := suite.createTestProducts(10, 1)

	order := suite.buildOrder(user.UserID,
		model.OrderItem{ProductID: products[0].ProductID, Name: products[0].Name, UnitPrice: products[0].Price, Quantity: 3},
		model.OrderItem{ProductID: products[1].ProductID, Name: products[1].Name, UnitPrice: products[1].Price, Quantity: 2},
	)

	err := suite.orderRepo.CreateOrderWithStock(context.Background(), order)

	require.ErrorIs(suite.T(), err, ErrProductStockNotEnough)

	// 第一個品項的扣減必須rollback
	stock1, _ := suite.productRepo.GetProductStock(context.Background(), products[0].ProductID)
	stock2, _ := suite.productRepo.GetProductStock(context.Background(), products[1].ProductID)
	require.Equal(suite.T(), 10, stock1)
	require.Equal(suite.T(), 1, stock2)

	// 不可留下孤兒訂單
	_, err = suite.orderRepo.GetOrderByID(context.Background(), order.OrderID)
	require.ErrorIs(suite.T(), err, ErrOrderNotFound)
}

func (suite *OrderRepoTestSuite) TestCreateOrderWithStock_EmptyItems() {
	user := suite.createTestUser()
	order := suite.buildOrder(user.UserID)

	err := suite.orderRepo.CreateOrderWithStock(context.Background(), order)

	require.ErrorIs(suite.T(), err, ErrEmptyOrderItems)
}

func (suite *OrderRepoTestSuite) createPendingOrder(quantities ...int) (*model.Order, []*model.Product) {
	user := suite.createTestUser()
	stocks := make([]uint, len(quantities))
	for i := range quantities {
		stocks[i] = 10
	}
	products := suite.createTestProducts(stocks...)

	items := make([]model.OrderItem, len(quantities))
	for i, q := range quantities {
		items[i] = model.OrderItem{
			ProductID: products[i].ProductID,
			Name:      products[i].Name,
			UnitPrice: products[i].Price,
			Quantity:  q,
		}
	}
	order := suite.buildOrder(user.UserID, items...)
	require.NoError(suite.T(), suite.orderRepo.CreateOrderWithStock(context.Background(), order))
	return order, products
}

func (suite *OrderRepoTestSuite) TestMarkPaid() {
	order, _ := suite.createPendingOrder(2)

	settledAt := time.Now().UTC()
	res := model.PaymentResult{
		ExternalID: "PAY-123",
		Status:     "COMPLETED",
		SettledAt:  &settledAt,
		PayerEmail: "payer@example.com",
	}

	updated, applied, err := suite.orderRepo.MarkPaid(context.Background(), order.OrderID, res)

	require.NoError(suite.T(), err)
	require.True(suite.T(), applied)
	require.True(suite.T(), updated.IsPaid)
	require.NotNil(suite.T(), updated.PaidAt)
	require.Equal(suite.T(), "PAY-123", updated.PaymentResult.ExternalID)
	require.Equal(suite.T(), model.OrderStatusProcessing, updated.Status)
}

// 同一付款編號重複確認為no-op, 不覆寫付款紀錄
func (suite *OrderRepoTestSuite) TestMarkPaid_IdempotentSameExternalID() {
	order, _ := suite.createPendingOrder(2)

	res := model.PaymentResult{ExternalID: "PAY-123", Status: "COMPLETED"}
	_, applied, err := suite.orderRepo.MarkPaid(context.Background(), order.OrderID, res)
	require.NoError(suite.T(), err)
	require.True(suite.T(), applied)

	first, err := suite.orderRepo.GetOrderByID(context.Background(), order.OrderID)
	require.NoError(suite.T(), err)
	firstPaidAt := first.PaidAt

	dup := model.PaymentResult{ExternalID: "PAY-123", Status: "COMPLETED", PayerEmail: "other@example.com"}
	updated, applied, err := suite.orderRepo.MarkPaid(context.Background(), order.OrderID, dup)
	require.NoError(suite.T(), err)
	require.False(suite.T(), applied)

	require.Equal(suite.T(), "PAY-123", updated.PaymentResult.ExternalID)
	after, _ := suite.orderRepo.GetOrderByID(context.Background(), order.OrderID)
	require.Equal(suite.T(), firstPaidAt.UTC(), after.PaidAt.UTC())
	require.Empty(suite.T(), after.PaymentResult.PayerEmail)
}

func (suite *OrderRepoTestSuite) TestMarkPaid_DifferentExternalID() {
	order, _ := suite.createPendingOrder(2)

	_, _, err := suite.orderRepo.MarkPaid(context.Background(), order.OrderID, model.PaymentResult{ExternalID: "PAY-123"})
	require.NoError(suite.T(), err)

	_, _, err = suite.orderRepo.MarkPaid(context.Background(), order.OrderID, model.PaymentResult{ExternalID: "PAY-999"})
	require.ErrorIs(suite.T(), err, ErrOrderAlreadyPaid)
}

func (suite *OrderRepoTestSuite) TestMarkPaid_CancelledOrder() {
	order, _ := suite.createPendingOrder(2)

	_, _, err := suite.orderRepo.CancelOrderWithRestock(context.Background(), order.OrderID)
	require.NoError(suite.T(), err)

	_, _, err = suite.orderRepo.MarkPaid(context.Background(), order.OrderID, model.PaymentResult{ExternalID: "PAY-123"})
	require.ErrorIs(suite.T(), err, ErrOrderAlreadyCancelled)
}

func (suite *OrderRepoTestSuite) TestMarkPaid_NotFound() {
	_, _, err := suite.orderRepo.MarkPaid(context.Background(), "no-such-order", model.PaymentResult{ExternalID: "PAY-123"})
	require.ErrorIs(suite.T(), err, ErrOrderNotFound)
}

// 未付款訂單允許送達 (COD流程), isPaid不受影響
func (suite *OrderRepoTestSuite) TestMarkDelivered_UnpaidOrder() {
	order, _ := suite.createPendingOrder(2)

	updated, from, err := suite.orderRepo.MarkDelivered(context.Background(), order.OrderID)

	require.NoError(suite.T(), err)
	require.Equal(suite.T(), model.OrderStatusPending, from)
	require.Equal(suite.T(), model.OrderStatusDelivered, updated.Status)
	require.True(suite.T(), updated.IsDelivered)
	require.NotNil(suite.T(), updated.DeliveredAt)
	require.False(suite.T(), updated.IsPaid)
}

func (suite *OrderRepoTestSuite) TestMarkDelivered_AlreadyDelivered() {
	order, _ := suite.createPendingOrder(2)

	_, _, err := suite.orderRepo.MarkDelivered(context.Background(), order.OrderID)
	require.NoError(suite.T(), err)

	_, _, err = suite.orderRepo.MarkDelivered(context.Background(), order.OrderID)
	require.ErrorIs(suite.T(), err, ErrInvalidTransition)
}

func (suite *OrderRepoTestSuite) TestUpdateStatus() {
	order, _ := suite.createPendingOrder(2)

	updated, from, err := suite.orderRepo.UpdateStatus(context.Background(), order.OrderID, model.OrderStatusShipped)

	require.NoError(suite.T(), err)
	require.Equal(suite.T(), model.OrderStatusPending, from)
	require.Equal(suite.T(), model.OrderStatusShipped, updated.Status)
}

// 不可回退
func (suite *OrderRepoTestSuite) TestUpdateStatus_Backward() {
	order, _ := suite.createPendingOrder(2)

	_, _, err := suite.orderRepo.UpdateStatus(context.Background(), order.OrderID, model.OrderStatusShipped)
	require.NoError(suite.T(), err)

	_, _, err = suite.orderRepo.UpdateStatus(context.Background(), order.OrderID, model.OrderStatusProcessing)
	require.ErrorIs(suite.T(), err, ErrInvalidTransition)
}

// 取消必須走CancelOrderWithRestock, 直接指定cancelled要被擋下
func (suite *OrderRepoTestSuite) TestUpdateStatus_CancelledRejected() {
	order, _ := suite.createPendingOrder(2)

	_, _, err := suite.orderRepo.UpdateStatus(context.Background(), order.OrderID, model.OrderStatusCancelled)
	require.ErrorIs(suite.T(), err, ErrInvalidTransition)
}

func (suite *OrderRepoTestSuite) TestUpdateStatus_Delivered() {
	order, _ := suite.createPendingOrder(2)

	updated, _, err := suite.orderRepo.UpdateStatus(context.Background(), order.OrderID, model.OrderStatusDelivered)

	require.NoError(suite.T(), err)
	require.True(suite.T(), updated.IsDelivered)
	require.NotNil(suite.T(), updated.DeliveredAt)
}

func (suite *OrderRepoTestSuite) TestCancelOrderWithRestock() {
	order, products := suite.createPendingOrder(3, 5)

	updated, from, err := suite.orderRepo.CancelOrderWithRestock(context.Background(), order.OrderID)

	require.NoError(suite.T(), err)
	require.Equal(suite.T(), model.OrderStatusPending, from)
	require.Equal(suite.T(), model.OrderStatusCancelled, updated.Status)

	stock1, _ := suite.productRepo.GetProductStock(context.Background(), products[0].ProductID)
	stock2, _ := suite.productRepo.GetProductStock(context.Background(), products[1].ProductID)
	require.Equal(suite.T(), 10, stock1)
	require.Equal(suite.T(), 10, stock2)
}

// 重複取消不可重複回補
func (suite *OrderRepoTestSuite) TestCancelOrderWithRestock_ExactlyOnce() {
	order, products := suite.createPendingOrder(3)

	_, _, err := suite.orderRepo.CancelOrderWithRestock(context.Background(), order.OrderID)
	require.NoError(suite.T(), err)

	_, _, err = suite.orderRepo.CancelOrderWithRestock(context.Background(), order.OrderID)
	require.ErrorIs(suite.T(), err, ErrOrderAlreadyCancelled)

	stock, _ := suite.productRepo.GetProductStock(context.Background(), products[0].ProductID)
	require.Equal(suite.T(), 10, stock)
}

func (suite *OrderRepoTestSuite) TestCancelOrderWithRestock_Delivered() {
	order, _ := suite.createPendingOrder(2)

	_, _, err := suite.orderRepo.MarkDelivered(context.Background(), order.OrderID)
	require.NoError(suite.T(), err)

	_, _, err = suite.orderRepo.CancelOrderWithRestock(context.Background(), order.OrderID)
	require.ErrorIs(suite.T(), err, ErrOrderAlreadyDelivered)
}

// 已出貨(未送達)仍可取消
func (suite *OrderRepoTestSuite) TestCancelOrderWithRestock_Shipped() {
	order, products := suite.createPendingOrder(2)

	_, _, err := suite.orderRepo.UpdateStatus(context.Background(), order.OrderID, model.OrderStatusShipped)
	require.NoError(suite.T(), err)

	updated, from, err := suite.orderRepo.CancelOrderWithRestock(context.Background(), order.OrderID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), model.OrderStatusShipped, from)
	require.Equal(suite.T(), model.OrderStatusCancelled, updated.Status)

	stock, _ := suite.productRepo.GetProductStock(context.Background(), products[0].ProductID)
	require.Equal(suite.T(), 10, stock)
}

func (suite *OrderRepoTestSuite) TestGetOrdersByUserID_NewestFirst() {
	user := suite.createTestUser()
	products := suite.createTestProducts(10)

	first := suite.buildOrder(user.UserID,
		model.OrderItem{ProductID: products[0].ProductID, Name: products[0].Name, UnitPrice: products[0].Price, Quantity: 1})
	require.NoError(suite.T(), suite.orderRepo.CreateOrderWithStock(context.Background(), first))

	time.Sleep(10 * time.Millisecond)

	second := suite.buildOrder(user.UserID,
		model.OrderItem{ProductID: products[0].ProductID, Name: products[0].Name, UnitPrice: products[0].Price, Quantity: 1})
	require.NoError(suite.T(), suite.orderRepo.CreateOrderWithStock(context.Background(), second))

	orders, err := suite.orderRepo.GetOrdersByUserID(context.Background(), user.UserID)

	require.NoError(suite.T(), err)
	require.Len(suite.T(), orders, 2)
	require.Equal(suite.T(), second.OrderID, orders[0].OrderID)
	require.Equal(suite.T(), first.OrderID, orders[1].OrderID)
}

func (suite *OrderRepoTestSuite) TestGetOrdersPaginated() {
	user := suite.createTestUser()
	products := suite.createTestProducts(10)

	for i := 0; i < 3; i++ {
		order := suite.buildOrder(user.UserID,
			model.OrderItem{ProductID: products[0].ProductID, Name: products[0].Name, UnitPrice: products[0].Price, Quantity: 1})
		require.NoError(suite.T(), suite.orderRepo.CreateOrderWithStock(context.Background(), order))
	}

	orders, total, err := suite.orderRepo.GetOrdersPaginated(context.Background(), 1, 2)

	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(3), total)
	require.Len(suite.T(), orders, 2)
}

// 並發取消與送達互搶同一張訂單, 只能有一個轉移成功
// 取消贏則回補庫存恰好一次, 送達贏則庫存不動
func (suite *OrderRepoTestSuite) TestCancelAndDeliver_Concurrent() {
	order, products := suite.createPendingOrder(3)

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if idx%2 == 0 {
				_, _, errs[idx] = suite.orderRepo.CancelOrderWithRestock(context.Background(), order.OrderID)
			} else {
				_, _, errs[idx] = suite.orderRepo.MarkDelivered(context.Background(), order.OrderID)
			}
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.True(suite.T(),
			errors.Is(err, ErrOrderAlreadyCancelled) ||
				errors.Is(err, ErrOrderAlreadyDelivered) ||
				errors.Is(err, ErrInvalidTransition),
			"unexpected error: %v", err)
	}
	require.Equal(suite.T(), 1, succeeded)

	final, err := suite.orderRepo.GetOrderByID(context.Background(), order.OrderID)
	require.NoError(suite.T(), err)
	require.True(suite.T(), final.Status.IsTerminal())

	stock, _ := suite.productRepo.GetProductStock(context.Background(), products[0].ProductID)
	if final.Status == model.OrderStatusCancelled {
		require.Equal(suite.T(), 10, stock)
	} else {
		require.Equal(suite.T(), 7, stock)
	}
}

// 並發付款確認帶不同付款編號, 只能有一筆寫入, 其餘拒絕不覆寫
func (suite *OrderRepoTestSuite) TestMarkPaid_ConcurrentDifferentExternalIDs() {
	order, _ := suite.createPendingOrder(2)

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	applieds := make([]bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			res := model.PaymentResult{ExternalID: fmt.Sprintf("PAY-%d", idx), Status: "COMPLETED"}
			_, applieds[idx], errs[idx] = suite.orderRepo.MarkPaid(context.Background(), order.OrderID, res)
		}(i)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.True(suite.T(), applieds[i])
			require.Equal(suite.T(), -1, winner)
			winner = i
		} else {
			require.ErrorIs(suite.T(), err, ErrOrderAlreadyPaid)
		}
	}
	require.NotEqual(suite.T(), -1, winner)

	final, err := suite.orderRepo.GetOrderByID(context.Background(), order.OrderID)
	require.NoError(suite.T(), err)
	require.True(suite.T(), final.IsPaid)
	require.Equal(suite.T(), fmt.Sprintf("PAY-%d", winner), final.PaymentResult.ExternalID)
}

func TestOrderRepoTestSuite(t *testing.T) {
	suite.Run(t, new(OrderRepoTestSuite))
}
