package balancer

import (
	"strconv"

	"github.com/segmentio/kafka-go"
)

type OrderBalancer struct {
	BaseBalancer
}

// 訂單事件使用userid做key, 同一用戶的事件落在同一分區以保序
func NewOrderBalancer(numPartitions int) IBaseBalancer {
	return &OrderBalancer{BaseBalancer: NewBaseBalancer(numPartitions)}
}

func (c *OrderBalancer) Balance(msg kafka.Message, partitions ...int) (partition int) {
	userID, err := strconv.Atoi(string(msg.Key))
	if err != nil {
		return 0
	}

	if len(partitions) != 0 {
		return partitions[userID%len(partitions)]
	}

	return userID % c.numPartitions
}
