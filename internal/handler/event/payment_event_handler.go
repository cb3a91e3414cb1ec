package handler

import (
	"context"
	"errors"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	evt_model "github.com/RoyceAzure/lab/storefront/internal/domain/model/event"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	"github.com/rs/zerolog/log"
)

// 金流閘道為系統身份, 不受訂單擁有者限制
var gatewayActor = model.Actor{IsAdmin: true}

// PaymentEventHandler 處理金流閘道付款確認
// webhook at-least-once, 重複確認由MarkPaid的付款編號比對吸收
type PaymentEventHandler struct {
	orderService service.IOrderService
}

func NewPaymentEventHandler(orderService service.IOrderService) *PaymentEventHandler {
	return &PaymentEventHandler{orderService: orderService}
}

func (h *PaymentEventHandler) HandlePaymentConfirmed(ctx context.Context, evt evt_model.Event) error {
	var e *evt_model.PaymentConfirmedEvent
	var ok bool
	if e, ok = evt.(*evt_model.PaymentConfirmedEvent); !ok {
		return errUnknownEventFormat
	}

	res := model.PaymentResult{
		ExternalID: e.ExternalID,
		Status:     e.Status,
		SettledAt:  e.SettledAt,
		PayerEmail: e.PayerEmail,
	}

	_, err := h.orderService.MarkPaid(ctx, gatewayActor, e.OrderID, res)
	if err != nil {
		// 已付款且付款編號不同: 記異常後ack, retry不會有不同結果
		if errors.Is(err, db.ErrOrderAlreadyPaid) {
			log.Warn().Str("order_id", e.OrderID).Str("external_id", e.ExternalID).Msg("payment confirmation conflicts with existing payment record")
			return nil
		}
		return err
	}

	return nil
}
