package consumer

import (
	"encoding/json"

	"github.com/RoyceAzure/lab/rj_kafka/kafka/consumer"
	"github.com/RoyceAzure/lab/rj_kafka/kafka/message"
	evt_model "github.com/RoyceAzure/lab/storefront/internal/domain/model/event"
	event_handler "github.com/RoyceAzure/lab/storefront/internal/handler/event"
)

type PaymentEventConsumer struct {
	*handlerAdapter
}

// topic: payment-event
// 分區: orderID
func NewPaymentEventConsumer(consumer consumer.Consumer, paymentEventHandler event_handler.Handler) IBaseConsumer {
	return newBaseConsumer(consumer, &PaymentEventConsumer{newHandlerAdapter(paymentEventHandler)})
}

func (c *PaymentEventConsumer) transformData(msg message.Message) (evt_model.Event, error) {
	var eventType evt_model.EventType
	for _, header := range msg.Headers {
		if header.Key == "event_type" {
			eventType = evt_model.EventType(header.Value)
			break
		}
	}

	switch eventType {
	case evt_model.PaymentConfirmedEventName:
		evt := &evt_model.PaymentConfirmedEvent{}
		if err := json.Unmarshal(msg.Value, evt); err != nil {
			return nil, err
		}
		return evt, nil
	default:
		return nil, ErrUnknownEventFormat
	}
}
