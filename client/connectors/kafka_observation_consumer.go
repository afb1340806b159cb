/*
 * @module KafkaObservationConsumer
 * @description Kafka观测流消费者，订阅遥感指数观测主题并交给观测服务批量入库
 * @architecture 适配器模式 - 封装第三方Kafka客户端，提供统一的接口
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 连接建立 -> 拉取消息 -> 载荷归一化 -> 批量入库 -> 提交位点
 * @rules 单条消息即一个观测批次，批内任一条目非法整批拒绝；入库失败只记日志不中断消费
 * @dependencies github.com/segmentio/kafka-go, encoding/json
 * @refs service/observation/observation_service.go
 */
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"cropwatch-service/service/observation"
)

const (
	defaultObservationTopic = "cropwatch.observations"
	defaultConsumerGroup    = "cropwatch-service"
)

// KafkaObservationConsumer Kafka观测流消费者
type KafkaObservationConsumer struct {
	reader             *kafka.Reader
	observationService *observation.ObservationService
	mutex              sync.RWMutex
	ctx                context.Context
	cancel             context.CancelFunc
	isRunning          bool
}

// NewKafkaObservationConsumer 从环境变量创建观测流消费者
// KAFKA_BROKERS 为空时返回 nil，表示未启用Kafka摄入
func NewKafkaObservationConsumer(observationService *observation.ObservationService) *KafkaObservationConsumer {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		return nil
	}

	topic := os.Getenv("KAFKA_OBSERVATION_TOPIC")
	if topic == "" {
		topic = defaultObservationTopic
	}
	groupID := os.Getenv("KAFKA_GROUP_ID")
	if groupID == "" {
		groupID = defaultConsumerGroup
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &KafkaObservationConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        strings.Split(brokers, ","),
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			MaxWait:        time.Second,
			CommitInterval: time.Second,
			StartOffset:    kafka.LastOffset,
		}),
		observationService: observationService,
		ctx:                ctx,
		cancel:             cancel,
	}
}

// Start 启动消费循环
func (kc *KafkaObservationConsumer) Start() {
	kc.mutex.Lock()
	if kc.isRunning {
		kc.mutex.Unlock()
		return
	}
	kc.isRunning = true
	kc.mutex.Unlock()

	slog.Info("Kafka观测流消费者已启动", "topic", kc.reader.Config().Topic)
	go kc.consumeLoop()
}

// consumeLoop 消费循环
func (kc *KafkaObservationConsumer) consumeLoop() {
	for {
		select {
		case <-kc.ctx.Done():
			slog.Info("Kafka观测流消费者已停止")
			return
		default:
			msg, err := kc.reader.ReadMessage(kc.ctx)
			if err != nil {
				if err == context.Canceled {
					return
				}
				slog.Warn("读取观测消息失败", "error", err)
				time.Sleep(time.Second)
				continue
			}

			if err := kc.handleMessage(msg); err != nil {
				slog.Error("处理观测消息失败", "offset", msg.Offset, "error", err)
			}
		}
	}
}

// handleMessage 解析观测批次载荷并入库
// 载荷既可以是单条观测对象，也可以是观测对象数组
func (kc *KafkaObservationConsumer) handleMessage(msg kafka.Message) error {
	var payloads []map[string]interface{}

	trimmed := strings.TrimSpace(string(msg.Value))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(msg.Value, &payloads); err != nil {
			return fmt.Errorf("解析观测批次失败: %w", err)
		}
	} else {
		var single map[string]interface{}
		if err := json.Unmarshal(msg.Value, &single); err != nil {
			return fmt.Errorf("解析观测载荷失败: %w", err)
		}
		payloads = append(payloads, single)
	}

	records := make([]observation.ObservationRecord, 0, len(payloads))
	for _, payload := range payloads {
		record, err := observation.NormalizeRecord(payload)
		if err != nil {
			return fmt.Errorf("归一化观测载荷失败: %w", err)
		}
		records = append(records, *record)
	}

	count, err := kc.observationService.IngestBatch(kc.ctx, records)
	if err != nil {
		return err
	}

	slog.Info("观测批次已入库", "count", count, "offset", msg.Offset, "key", string(msg.Key))
	return nil
}

// IsRunning 检查消费状态
func (kc *KafkaObservationConsumer) IsRunning() bool {
	kc.mutex.RLock()
	defer kc.mutex.RUnlock()
	return kc.isRunning
}

// Stop 停止消费并关闭连接
func (kc *KafkaObservationConsumer) Stop() error {
	kc.mutex.Lock()
	defer kc.mutex.Unlock()

	if !kc.isRunning {
		return nil
	}

	kc.cancel()
	kc.isRunning = false
	return kc.reader.Close()
}
