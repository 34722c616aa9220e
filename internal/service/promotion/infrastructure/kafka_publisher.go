package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"gusto/internal/pkg/mq"
	"gusto/internal/service/promotion/domain"
)

// RedemptionKafkaPublisher 把核销回执发布到 Kafka，供下游的会计、
// 报表与会员系统消费。
type RedemptionKafkaPublisher struct {
	writer *kafka.Writer
}

func NewRedemptionKafkaPublisher(writer *kafka.Writer) *RedemptionKafkaPublisher {
	return &RedemptionKafkaPublisher{writer: writer}
}

// PublishReceipt 以订单 ID 为分区键发布回执，同一订单的事件保序。
func (p *RedemptionKafkaPublisher) PublishReceipt(ctx context.Context, receipt *domain.CommitReceipt) error {
	payload, err := json.Marshal(receipt)
	if err != nil {
		return errors.Wrap(err, "failed to marshal redemption receipt")
	}
	return mq.ProduceMessage(ctx, p.writer, []byte(receipt.OrderID), payload)
}

// Close 关闭底层 writer。
func (p *RedemptionKafkaPublisher) Close() error {
	return p.writer.Close()
}
