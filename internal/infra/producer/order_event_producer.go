package producer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/RoyceAzure/lab/rj_kafka/kafka/message"
	"github.com/RoyceAzure/lab/rj_kafka/kafka/producer"
	evt_model "github.com/RoyceAzure/lab/storefront/internal/domain/model/event"
)

// topic: order-event
// 需要根據userid做balancer分區
type OrderEventProducer struct {
	producer producer.Producer
}

type IOrderEventProducer interface {
	ProduceOrderCreatedEvent(ctx context.Context, evt *evt_model.OrderCreatedEvent) error
	ProduceOrderPaidEvent(ctx context.Context, evt *evt_model.OrderPaidEvent) error
	ProduceOrderDeliveredEvent(ctx context.Context, evt *evt_model.OrderDeliveredEvent) error
	ProduceOrderCancelledEvent(ctx context.Context, evt *evt_model.OrderCancelledEvent) error
	ProduceOrderStatusChangedEvent(ctx context.Context, evt *evt_model.OrderStatusChangedEvent) error
}

func NewOrderEventProducer(producer producer.Producer) *OrderEventProducer {
	return &OrderEventProducer{producer: producer}
}

func (p *OrderEventProducer) ProduceOrderCreatedEvent(ctx context.Context, evt *evt_model.OrderCreatedEvent) error {
	return p.produce(ctx, evt.UserID, evt)
}

func (p *OrderEventProducer) ProduceOrderPaidEvent(ctx context.Context, evt *evt_model.OrderPaidEvent) error {
	return p.produce(ctx, evt.UserID, evt)
}

func (p *OrderEventProducer) ProduceOrderDeliveredEvent(ctx context.Context, evt *evt_model.OrderDeliveredEvent) error {
	return p.produce(ctx, evt.UserID, evt)
}

func (p *OrderEventProducer) ProduceOrderCancelledEvent(ctx context.Context, evt *evt_model.OrderCancelledEvent) error {
	return p.produce(ctx, evt.UserID, evt)
}

func (p *OrderEventProducer) ProduceOrderStatusChangedEvent(ctx context.Context, evt *evt_model.OrderStatusChangedEvent) error {
	return p.produce(ctx, evt.UserID, evt)
}

func (p *OrderEventProducer) produce(ctx context.Context, userID int, evt evt_model.Event) error {
	msg, err := convertToMessage(userID, evt)
	if err != nil {
		return err
	}

	return p.producer.Produce(ctx, []message.Message{msg})
}

func convertToMessage(userID int, evt evt_model.Event) (message.Message, error) {
	evtValue, err := json.Marshal(evt)
	if err != nil {
		return message.Message{}, err
	}

	msg := message.Message{
		Key:   []byte(fmt.Sprintf("%d", userID)),
		Value: evtValue,
		Headers: []message.Header{
			{
				Key:   "event_type",
				Value: []byte(evt.Type()),
			},
		},
	}

	return msg, nil
}

var _ IOrderEventProducer = (*OrderEventProducer)(nil)
