package consumer

import (
	"context"
	"errors"
	"sync"

	"github.com/RoyceAzure/lab/rj_kafka/kafka/consumer"
	"github.com/RoyceAzure/lab/rj_kafka/kafka/message"
	evt_model "github.com/RoyceAzure/lab/storefront/internal/domain/model/event"
	event_handler "github.com/RoyceAzure/lab/storefront/internal/handler/event"
	"github.com/rs/zerolog/log"
)

type ConsumerError error

var (
	ErrConsumerClosed     = errors.New("consumer closed")
	ErrUnknownEventFormat = errors.New("unknown event format")
)

type IBaseConsumer interface {
	Start(ctx context.Context) error
	Stop()
}

// ConsumerHandler 將kafka訊息轉為領域事件後交給event handler
type ConsumerHandler interface {
	Handle(ctx context.Context, evt evt_model.Event) error
	transformData(msg message.Message) (evt_model.Event, error)
}

// handlerAdapter 銜接consumer與event handler
type handlerAdapter struct {
	originalEVTHandler event_handler.Handler
}

func newHandlerAdapter(evtHandler event_handler.Handler) *handlerAdapter {
	return &handlerAdapter{evtHandler}
}

func (a *handlerAdapter) Handle(ctx context.Context, evt evt_model.Event) error {
	return a.originalEVTHandler.HandleEvent(ctx, evt)
}

type baseConsumer struct {
	consumer  consumer.Consumer
	handler   ConsumerHandler
	closeOnce sync.Once
	closeChan chan struct{}
}

func newBaseConsumer(consumer consumer.Consumer, consumerHandler ConsumerHandler) *baseConsumer {
	return &baseConsumer{consumer: consumer, handler: consumerHandler, closeChan: make(chan struct{})}
}

func (c *baseConsumer) checkIsClosed() bool {
	select {
	case <-c.closeChan:
		return true
	default:
		return false
	}
}

// Start 啟動消費迴圈, 非阻塞
// 單一訊息轉換或處理失敗記log後繼續, 不中斷迴圈
func (c *baseConsumer) Start(ctx context.Context) error {
	if c.checkIsClosed() {
		return ErrConsumerClosed
	}

	msgChan, errChan, err := c.consumer.Consume()
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-c.closeChan:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-msgChan:
				if !ok {
					return
				}
				evt, err := c.handler.transformData(msg)
				if err != nil {
					log.Error().Err(err).Str("topic", msg.Topic).Msg("failed to transform message")
					continue
				}

				if err = c.handler.Handle(ctx, evt); err != nil {
					log.Error().Err(err).Str("event_type", string(evt.Type())).Msg("failed to handle event")
					continue
				}
			case err, ok := <-errChan:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("consumer error")
			}
		}
	}()

	return nil
}

func (c *baseConsumer) Stop() {
	if c.checkIsClosed() {
		return
	}

	c.closeOnce.Do(func() {
		close(c.closeChan)
	})

	c.consumer.Close()
}
