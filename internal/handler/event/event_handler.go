package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	evt_model "github.com/RoyceAzure/lab/storefront/internal/domain/model/event"
	"github.com/redis/go-redis/v9"
)

type HandlerError error

var (
	errHandlerNotFound    HandlerError = errors.New("handler not found")
	errUnknownEventFormat HandlerError = errors.New("unknown event format")
)

// 處理過事件的去重標記保留時間
const eventDedupeTTL = 24 * time.Hour

type HandlerFunc func(ctx context.Context, evt evt_model.Event) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt evt_model.Event) error {
	return f(ctx, evt)
}

type Handler interface {
	HandleEvent(ctx context.Context, evt evt_model.Event) error
}

// HandlerDispatcher 依事件類型分派
// eventCache 有設置時以 SetNX 做事件去重, 同一eventID只會處理一次
type HandlerDispatcher struct {
	handlers   map[evt_model.EventType]Handler
	eventCache *redis.Client
}

func NewHandlerDispatcher(handlers map[evt_model.EventType]Handler, eventCache *redis.Client) *HandlerDispatcher {
	return &HandlerDispatcher{handlers: handlers, eventCache: eventCache}
}

func (d *HandlerDispatcher) HandleEvent(ctx context.Context, evt evt_model.Event) error {
	if d.eventCache != nil {
		eventKey := fmt.Sprintf("%s:%s", evt.Type(), evt.GetID())
		ok, err := d.eventCache.SetNX(ctx, eventKey, 1, eventDedupeTTL).Result()
		if err != nil {
			return err
		}
		if !ok {
			// 已處理過
			return nil
		}
	}

	handler, ok := d.handlers[evt.Type()]
	if !ok {
		return errHandlerNotFound
	}
	return handler.HandleEvent(ctx, evt)
}

func NewPaymentEventHandlerDispatcher(paymentEventHandler *PaymentEventHandler, eventCache *redis.Client) Handler {
	return &HandlerDispatcher{
		handlers: map[evt_model.EventType]Handler{
			evt_model.PaymentConfirmedEventName: HandlerFunc(paymentEventHandler.HandlePaymentConfirmed),
		},
		eventCache: eventCache,
	}
}
