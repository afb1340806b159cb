/*
 * @module MQTTSceneNotifier
 * @description MQTT场景通知连接器，订阅影像场景处理完成通知并触发对应地块的告警补评
 * @architecture 适配器模式 - 封装第三方MQTT客户端，提供统一的接口
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 连接建立 -> 订阅场景主题 -> 解析通知 -> 回调触发告警评估
 * @rules 支持自动重连；通知里没有地块清单时仅记录日志；回调失败不影响后续通知消费
 * @dependencies github.com/eclipse/paho.mqtt.golang, encoding/json
 * @refs service/alert/alert_service.go
 */
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const defaultSceneTopic = "cropwatch/scenes/complete"

// SceneNotification 影像场景处理完成通知
type SceneNotification struct {
	SceneID     string    `json:"scene_id"`
	ParcelIDs   []string  `json:"parcel_ids"`
	CompletedAt time.Time `json:"completed_at"`
}

// SceneHandler 场景通知回调，逐地块触发后续处理
type SceneHandler func(ctx context.Context, notification *SceneNotification) error

// MQTTSceneNotifier MQTT场景通知连接器
type MQTTSceneNotifier struct {
	client      mqtt.Client
	topic       string
	handler     SceneHandler
	mutex       sync.RWMutex
	isConnected bool
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewMQTTSceneNotifier 从环境变量创建场景通知连接器
// MQTT_BROKER 为空时返回 nil，表示未启用场景通知订阅
func NewMQTTSceneNotifier(handler SceneHandler) *MQTTSceneNotifier {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		return nil
	}

	topic := os.Getenv("MQTT_SCENE_TOPIC")
	if topic == "" {
		topic = defaultSceneTopic
	}
	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" {
		clientID = fmt.Sprintf("cropwatch-service-%d", time.Now().UnixNano())
	}

	ctx, cancel := context.WithCancel(context.Background())
	notifier := &MQTTSceneNotifier{
		topic:   topic,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	if username := os.Getenv("MQTT_USERNAME"); username != "" {
		opts.SetUsername(username)
		opts.SetPassword(os.Getenv("MQTT_PASSWORD"))
	}
	opts.SetCleanSession(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(notifier.onConnected)
	opts.SetConnectionLostHandler(notifier.onConnectionLost)

	notifier.client = mqtt.NewClient(opts)
	return notifier
}

// Connect 建立MQTT连接，订阅在连接回调里完成以支持重连后自动恢复
func (mn *MQTTSceneNotifier) Connect() error {
	if token := mn.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT连接失败: %w", token.Error())
	}
	return nil
}

// onConnected 连接建立后订阅场景主题
func (mn *MQTTSceneNotifier) onConnected(client mqtt.Client) {
	mn.mutex.Lock()
	mn.isConnected = true
	mn.mutex.Unlock()

	token := client.Subscribe(mn.topic, 1, mn.messageHandler)
	if token.Wait() && token.Error() != nil {
		slog.Error("订阅场景主题失败", "topic", mn.topic, "error", token.Error())
		return
	}
	slog.Info("已订阅场景完成主题", "topic", mn.topic)
}

// onConnectionLost 连接丢失处理
func (mn *MQTTSceneNotifier) onConnectionLost(client mqtt.Client, err error) {
	mn.mutex.Lock()
	mn.isConnected = false
	mn.mutex.Unlock()

	slog.Warn("MQTT连接丢失，等待自动重连", "error", err)
}

// messageHandler 解析场景通知并触发回调
func (mn *MQTTSceneNotifier) messageHandler(client mqtt.Client, msg mqtt.Message) {
	var notification SceneNotification
	if err := json.Unmarshal(msg.Payload(), &notification); err != nil {
		slog.Error("解析场景通知失败", "topic", msg.Topic(), "error", err)
		return
	}

	slog.Info("收到场景完成通知", "scene_id", notification.SceneID, "parcels", len(notification.ParcelIDs))

	if len(notification.ParcelIDs) == 0 {
		return
	}
	if mn.handler == nil {
		return
	}

	if err := mn.handler(mn.ctx, &notification); err != nil {
		slog.Error("处理场景通知失败", "scene_id", notification.SceneID, "error", err)
	}
}

// IsConnected 检查连接状态
func (mn *MQTTSceneNotifier) IsConnected() bool {
	mn.mutex.RLock()
	defer mn.mutex.RUnlock()
	return mn.isConnected
}

// Stop 断开MQTT连接
func (mn *MQTTSceneNotifier) Stop() {
	mn.cancel()

	if mn.client != nil && mn.client.IsConnected() {
		mn.client.Unsubscribe(mn.topic)
		mn.client.Disconnect(250)
	}

	mn.mutex.Lock()
	mn.isConnected = false
	mn.mutex.Unlock()

	slog.Info("MQTT场景通知连接器已停止")
}
