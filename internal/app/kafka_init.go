package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/messaging/kafka"
)

// initKafkaProducer подключается к Kafka, если брокеры заданы.
// Без брокеров возвращает nil, nil: outbox продолжит накапливать события.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers, logger)
	if err != nil {
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer инициализирован")
	return producer, nil
}

// closeKafkaProducer закрывает producer, если он был создан.
func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("не удалось закрыть kafka producer")
		return
	}
	logger.Info("kafka producer закрыт")
}
