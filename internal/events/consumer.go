package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// CascadeHandler はイベントを受けて連鎖削除を再実行する。
type CascadeHandler func(ctx context.Context, ev CascadePending) error

// Consumer は連鎖削除キューを購読する。
// 接続や購読に失敗した場合は指数バックオフで再接続する。
type Consumer struct {
	url     string
	handler CascadeHandler
	logger  *slog.Logger

	// session は接続から購読終了までの1回分を実行する。
	// 購読を開始できた場合はstartedをtrueで返す。
	session func(ctx context.Context) (started bool, err error)

	BackoffMin time.Duration
	BackoffMax time.Duration
	Prefetch   int
}

// NewConsumer はConsumerを生成する。
func NewConsumer(url string, handler CascadeHandler, logger *slog.Logger) *Consumer {
	c := &Consumer{
		url:        url,
		handler:    handler,
		logger:     logger,
		BackoffMin: time.Second,
		BackoffMax: 30 * time.Second,
		Prefetch:   10,
	}
	c.session = c.dialAndConsume
	return c
}

// Run はctxがキャンセルされるまで購読を続ける。
// 再接続の前には必ずバックオフ分待機する。バックオフは購読を開始できた時点で初期値に戻る。
func (c *Consumer) Run(ctx context.Context) error {
	backoff := c.BackoffMin
	for {
		started, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if started {
			backoff = c.BackoffMin
		}
		c.logger.Warn("cascade consumer disconnected, reconnecting",
			slog.String("error", errString(err)),
			slog.Duration("retry_in", backoff),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff, c.BackoffMax)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (c *Consumer) dialAndConsume(ctx context.Context) (bool, error) {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return false, fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()
	return c.consume(ctx, conn)
}

func nextBackoff(cur, limit time.Duration) time.Duration {
	cur *= 2
	if cur > limit {
		return limit
	}
	return cur
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) (bool, error) {
	ch, err := conn.Channel()
	if err != nil {
		return false, fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.Prefetch, 0, false); err != nil {
		c.logger.Warn("set qos failed", slog.String("error", err.Error()))
	}
	if err := declareQueue(ch); err != nil {
		return false, err
	}
	msgs, err := ch.Consume(CascadeQueue, "", false, false, false, false, nil)
	if err != nil {
		return false, fmt.Errorf("queue consume: %w", err)
	}

	c.logger.Info("cascade consumer started", slog.String("queue", CascadeQueue))
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return true, errors.New("deliveries channel closed")
			}
			c.process(ctx, d)
		}
	}
}

// process は1件のメッセージを処理する。
// 初回の失敗は1度だけ再投入する。再配信でも失敗した場合は破棄し、
// 残ったレビューはワーカーの定期の孤立レビュー削除が消す。
func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	var ev CascadePending
	if err := json.Unmarshal(d.Body, &ev); err != nil || ev.ListingID == "" {
		c.logger.Error("discarding malformed cascade event", slog.String("body", string(d.Body)))
		_ = d.Nack(false, false)
		return
	}

	if err := c.handler(ctx, ev); err != nil {
		requeue := !d.Redelivered
		c.logger.Error("cascade retry failed",
			slog.String("listing_id", ev.ListingID),
			slog.String("error", err.Error()),
			slog.Bool("requeue", requeue),
		)
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}
