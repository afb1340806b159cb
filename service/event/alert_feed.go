/*
 * @module service/event/alert_feed
 * @description 告警实时推送服务：通过PostgreSQL LISTEN/NOTIFY监听告警表插入并以SSE推送给前端
 * @architecture 事件驱动架构 - 业务服务层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 告警落库 -> 触发器pg_notify -> 监听协程解析 -> 分发到所有SSE连接
 * @rules 触发器与通知函数启动时幂等创建；客户端通道满时丢弃该条推送而不阻塞监听协程
 * @dependencies github.com/lib/pq, gorm.io/gorm
 * @refs service/alert/alert_service.go, api/controllers/alert_controller.go
 */

package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

const alertChannel = "cropwatch_alerts"

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// AlertEvent 推送给客户端的告警事件
type AlertEvent struct {
	AlertID   string                 `json:"alert_id"`
	ParcelID  string                 `json:"parcel_id"`
	AlertType string                 `json:"alert_type"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message"`
	Raw       map[string]interface{} `json:"raw,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// FeedClient SSE客户端连接
type FeedClient struct {
	ID       string
	Channel  chan *AlertEvent
	Done     chan bool
	ClientIP string
}

// AlertFeedService 告警实时推送服务
type AlertFeedService struct {
	db         *gorm.DB
	clients    map[string]*FeedClient
	mu         sync.RWMutex
	dbListener *pq.Listener
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewAlertFeedService 创建告警推送服务并启动数据库监听
func NewAlertFeedService(db *gorm.DB) *AlertFeedService {
	ctx, cancel := context.WithCancel(context.Background())

	service := &AlertFeedService{
		db:      db,
		clients: make(map[string]*FeedClient),
		ctx:     ctx,
		cancel:  cancel,
	}

	if err := service.ensureNotifyTrigger(); err != nil {
		slog.Warn("创建告警通知触发器失败，实时推送降级为不可用", "error", err)
	}

	go service.startDBListener()
	go service.runCleanup()

	return service
}

// Subscribe 添加SSE连接
func (s *AlertFeedService) Subscribe(connectionID, clientIP string) *FeedClient {
	s.mu.Lock()
	defer s.mu.Unlock()

	client := &FeedClient{
		ID:       connectionID,
		Channel:  make(chan *AlertEvent, 100),
		Done:     make(chan bool),
		ClientIP: clientIP,
	}
	s.clients[connectionID] = client

	slog.Info("告警推送连接已建立", "connection_id", connectionID, "client_ip", clientIP)
	return client
}

// Unsubscribe 移除SSE连接
func (s *AlertFeedService) Unsubscribe(connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, exists := s.clients[connectionID]; exists {
		close(client.Done)
		delete(s.clients, connectionID)
		slog.Info("告警推送连接已断开", "connection_id", connectionID)
	}
}

// Broadcast 向所有连接分发告警事件
func (s *AlertFeedService) Broadcast(event *AlertEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, client := range s.clients {
		select {
		case client.Channel <- event:
		default:
			slog.Warn("告警推送通道已满，丢弃本条事件", "connection_id", client.ID, "alert_id", event.AlertID)
		}
	}
}

// startDBListener 启动数据库监听器
func (s *AlertFeedService) startDBListener() {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "postgres")
		dbname := getEnvWithDefault("DB_NAME", "postgres")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")

		connStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	s.dbListener = pq.NewListener(connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Warn("告警监听器状态变更", "event", ev, "error", err)
		}
	})

	if err := s.dbListener.Listen(alertChannel); err != nil {
		slog.Error("监听告警通知通道失败", "channel", alertChannel, "error", err)
		return
	}

	slog.Info("告警数据库监听器已启动", "channel", alertChannel)

	for {
		select {
		case notification := <-s.dbListener.Notify:
			if notification != nil {
				s.handleNotification(notification)
			}
		case <-s.ctx.Done():
			slog.Info("告警数据库监听器已停止")
			return
		}
	}
}

// handleNotification 解析通知载荷并广播
func (s *AlertFeedService) handleNotification(notification *pq.Notification) {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(notification.Extra), &payload); err != nil {
		slog.Error("解析告警通知失败", "error", err)
		return
	}

	event := &AlertEvent{
		Raw:       payload,
		Timestamp: time.Now(),
	}
	if newData, ok := payload["new_data"].(map[string]interface{}); ok {
		event.AlertID, _ = newData["id"].(string)
		event.ParcelID, _ = newData["parcel_id"].(string)
		event.AlertType, _ = newData["alert_type"].(string)
		event.Severity, _ = newData["severity"].(string)
		event.Message, _ = newData["message"].(string)
	}

	slog.Info("收到告警插入通知", "alert_id", event.AlertID, "parcel_id", event.ParcelID, "severity", event.Severity)
	s.Broadcast(event)
}

// runCleanup 周期清理已断开的连接
func (s *AlertFeedService) runCleanup() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupClosedClients()
		case <-s.ctx.Done():
			return
		}
	}
}

// cleanupClosedClients 清理不活跃的连接
func (s *AlertFeedService) cleanupClosedClients() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for connectionID, client := range s.clients {
		select {
		case <-client.Done:
			delete(s.clients, connectionID)
			slog.Info("清理已断开的推送连接", "connection_id", connectionID)
		default:
		}
	}
}

// Stop 停止推送服务
func (s *AlertFeedService) Stop() {
	s.cancel()

	if s.dbListener != nil {
		s.dbListener.Close()
	}

	s.mu.Lock()
	for _, client := range s.clients {
		close(client.Done)
	}
	s.clients = make(map[string]*FeedClient)
	s.mu.Unlock()

	slog.Info("告警推送服务已停止")
}

// ensureNotifyTrigger 幂等创建告警表的通知函数与触发器
func (s *AlertFeedService) ensureNotifyTrigger() error {
	createFunctionSQL := `
CREATE OR REPLACE FUNCTION notify_cropwatch_alerts()
RETURNS TRIGGER AS $$
DECLARE
    payload JSON;
BEGIN
    payload := json_build_object(
        'table', TG_TABLE_NAME,
        'type', TG_OP,
        'record_id', NEW.id,
        'new_data', row_to_json(NEW),
        'timestamp', extract(epoch from now())
    );
    PERFORM pg_notify('cropwatch_alerts', payload::text);
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;`

	if err := s.db.Exec(createFunctionSQL).Error; err != nil {
		return fmt.Errorf("创建告警通知函数失败: %w", err)
	}

	createTriggerSQL := `
DROP TRIGGER IF EXISTS alerts_notify ON alerts;
CREATE TRIGGER alerts_notify
AFTER INSERT ON alerts
FOR EACH ROW
EXECUTE FUNCTION notify_cropwatch_alerts();`

	if err := s.db.Exec(createTriggerSQL).Error; err != nil {
		return fmt.Errorf("创建告警触发器失败: %w", err)
	}

	return nil
}
