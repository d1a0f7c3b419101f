package mq

import (
	"log"

	"github.com/IBM/sarama"

	"memberpay/internal/config"
)

// Producer Kafka 同步生产者封装
// 进程启动时构造一次，注入给发件箱任务使用
type Producer struct {
	producer sarama.SyncProducer
}

// NewProducer 创建 Kafka 生产者
func NewProducer(cfg *config.KafkaConfig) (*Producer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, err
	}

	log.Println("Kafka 生产者创建成功")
	return &Producer{producer: producer}, nil
}

// SendMessage 发送消息到 Kafka
func (p *Producer) SendMessage(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}

	_, _, err := p.producer.SendMessage(msg)
	return err
}

// Close 关闭生产者
func (p *Producer) Close() {
	if p.producer != nil {
		p.producer.Close()
	}
}
