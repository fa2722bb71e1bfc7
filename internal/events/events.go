// Package events は物件削除後のレビュー連鎖削除に失敗した際のイベントを
// RabbitMQ経由で受け渡す。ワーカーがキューを購読して連鎖削除を再実行する。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// CascadeQueue は連鎖削除待ちイベントの永続キュー。
	CascadeQueue = "wanderlust.review_cascade"
	// TypeCascadePending はイベント種別。
	TypeCascadePending = "review.cascade_pending"
)

// CascadePending はレビューの連鎖削除が未完了の物件を表すイベント。
type CascadePending struct {
	Type      string    `json:"type"`
	ListingID string    `json:"listing_id"`
	FailedAt  time.Time `json:"failed_at"`
}

// NewCascadePending はイベントを生成する。
func NewCascadePending(listingID string, at time.Time) CascadePending {
	return CascadePending{Type: TypeCascadePending, ListingID: listingID, FailedAt: at.UTC()}
}

// Publisher はイベント発行のインターフェース。
type Publisher interface {
	PublishCascadePending(ctx context.Context, ev CascadePending) error
}

// NopPublisher はブローカー未設定時のPublisher。何もしない。
type NopPublisher struct{}

// PublishCascadePending は何もせずnilを返す。
func (NopPublisher) PublishCascadePending(context.Context, CascadePending) error { return nil }

func declareQueue(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(CascadeQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}

// AMQPPublisher はRabbitMQへイベントを発行する。
// 接続は使い回し、チャネルが閉じていれば開き直す。
type AMQPPublisher struct {
	conn   *amqp.Connection
	logger *slog.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

// DialPublisher はブローカーに接続し、キューを宣言したPublisherを返す。
func DialPublisher(url string, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker: %w", err)
	}
	p := &AMQPPublisher{conn: conn, logger: logger}
	if _, err := p.channel(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if err := declareQueue(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	p.ch = ch
	return ch, nil
}

// PublishCascadePending はイベントを永続メッセージとして発行する。
func (p *AMQPPublisher) PublishCascadePending(ctx context.Context, ev CascadePending) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ch, err := p.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", CascadeQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	p.logger.Info("cascade event published", slog.String("listing_id", ev.ListingID))
	return nil
}

// Close は接続を閉じる。
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	return p.conn.Close()
}

var (
	_ Publisher = (*AMQPPublisher)(nil)
	_ Publisher = NopPublisher{}
)
