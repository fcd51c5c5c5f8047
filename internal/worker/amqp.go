package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"oneacct/internal/metrics"
	"oneacct/internal/util"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// amqpChannel 是 *amqp.Channel 中用到的方法。
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
	Close() error
}

// DialAMQP 连接消息队列，失败按退避重试。
func DialAMQP(ctx context.Context, url string, attempts int) (*amqp.Connection, error) {
	var conn *amqp.Connection
	err := util.Retry(ctx, attempts, time.Second, func() error {
		var err error
		conn, err = amqp.Dial(url)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("连接 amqp 失败: %w", err)
	}
	return conn, nil
}

func declareQueue(ch amqpChannel, queue string) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("声明队列 %s 失败: %w", queue, err)
	}
	return nil
}

// AMQPDispatcher 把批次作为持久化 JSON 消息发布到队列，由独立的 worker 进程消费。
// 每条消息带上本派发器独占的回执队列，worker 处理完后回执，
// 未收到回执的批次即视为排队中或处理中。
type AMQPDispatcher struct {
	conn       *amqp.Connection
	ch         amqpChannel
	queue      string
	replyQueue string

	mu          sync.Mutex
	outstanding map[string]struct{}
}

// NewAMQPDispatcher 在连接上打开通道，声明持久队列和回执队列。
func NewAMQPDispatcher(conn *amqp.Connection, queue string) (*AMQPDispatcher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("打开 amqp 通道失败: %w", err)
	}
	d, err := newAMQPDispatcher(ch, queue)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	d.conn = conn
	return d, nil
}

func newAMQPDispatcher(ch amqpChannel, queue string) (*AMQPDispatcher, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	if err := declareQueue(ch, queue); err != nil {
		return nil, err
	}
	// 服务端命名、独占、自动删除：随派发器连接一起消失。
	reply, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("声明回执队列失败: %w", err)
	}
	return &AMQPDispatcher{
		ch:          ch,
		queue:       queue,
		replyQueue:  reply.Name,
		outstanding: make(map[string]struct{}),
	}, nil
}

func (d *AMQPDispatcher) Submit(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("序列化批次失败: %w", err)
	}
	id := job.RunID + "-" + strconv.Itoa(job.FileNumber)
	d.mu.Lock()
	defer d.mu.Unlock()
	err = d.ch.PublishWithContext(ctx, "", d.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		ReplyTo:      d.replyQueue,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("发布批次 %d 失败: %w", job.FileNumber, err)
	}
	d.outstanding[id] = struct{}{}
	return nil
}

// QueueDepth 返回队列中待投递的消息数。
func (d *AMQPDispatcher) QueueDepth(context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ready, err := d.ready()
	if err != nil {
		return 0, err
	}
	metrics.QueueDepth.Set(float64(ready))
	return ready, nil
}

// ActiveWorkers 返回已被 worker 取走但尚未回执的本派发器批次数。
func (d *AMQPDispatcher) ActiveWorkers(context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.collectReplies(); err != nil {
		return 0, err
	}
	if len(d.outstanding) == 0 {
		return 0, nil
	}
	ready, err := d.ready()
	if err != nil {
		return 0, err
	}
	// 队列可能被多个派发器共享，ready 里可能有别人的消息。
	return max(len(d.outstanding)-ready, 0), nil
}

func (d *AMQPDispatcher) ready() (int, error) {
	q, err := d.ch.QueueDeclarePassive(d.queue, true, false, false, false, nil)
	if err != nil {
		return 0, fmt.Errorf("查询队列 %s 失败: %w", d.queue, err)
	}
	return q.Messages, nil
}

// collectReplies 取空回执队列，移除已完成的批次。
func (d *AMQPDispatcher) collectReplies() error {
	for {
		msg, ok, err := d.ch.Get(d.replyQueue, true)
		if err != nil {
			return fmt.Errorf("读取回执队列失败: %w", err)
		}
		if !ok {
			return nil
		}
		delete(d.outstanding, msg.CorrelationId)
	}
}

func (d *AMQPDispatcher) Close() error {
	err := d.ch.Close()
	if d.conn != nil {
		if cerr := d.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Consumer 从队列中逐条取出批次交给 Handler。处理失败不重投，与原有批次语义一致。
type Consumer struct {
	ch       amqpChannel
	queue    string
	prefetch int
	handler  Handler
	logger   *zap.Logger
}

// NewConsumer 在连接上打开通道并声明队列。
func NewConsumer(conn *amqp.Connection, queue string, prefetch int, handler Handler, logger *zap.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("打开 amqp 通道失败: %w", err)
	}
	c, err := newConsumer(ch, queue, prefetch, handler, logger)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return c, nil
}

func newConsumer(ch amqpChannel, queue string, prefetch int, handler Handler, logger *zap.Logger) (*Consumer, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := declareQueue(ch, queue); err != nil {
		return nil, err
	}
	return &Consumer{ch: ch, queue: queue, prefetch: prefetch, handler: handler, logger: logger}, nil
}

// Run 持续消费直到 ctx 结束或通道关闭。
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("设置 prefetch 失败: %w", err)
	}
	msgs, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("订阅队列 %s 失败: %w", c.queue, err)
	}
	c.logger.Info("waiting for batches", zap.String("queue", c.queue))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("amqp 投递通道已关闭")
			}
			c.handle(ctx, d)
		}
	}
}

// handle 处理一条投递。无论成败都先回执再 ack，派发方据此判断批次已结束。
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	status := "failed"
	defer func() {
		c.reply(ctx, d, status)
		if err := d.Ack(false); err != nil {
			c.logger.Warn("ack failed", zap.Uint64("delivery_tag", d.DeliveryTag), zap.Error(err))
		}
	}()
	var job Job
	if err := json.Unmarshal(d.Body, &job); err != nil {
		c.logger.Error("dropping malformed batch message", zap.Error(err))
		return
	}
	start := time.Now()
	if err := c.handler(ctx, job); err != nil {
		c.logger.Error("batch failed", zap.Int("file_number", job.FileNumber), zap.String("run_id", job.RunID), zap.Error(err))
		return
	}
	status = "done"
	c.logger.Info("batch done", zap.Int("file_number", job.FileNumber), zap.Duration("duration", time.Since(start)))
}

func (c *Consumer) reply(ctx context.Context, d amqp.Delivery, status string) {
	if d.ReplyTo == "" {
		return
	}
	err := c.ch.PublishWithContext(context.WithoutCancel(ctx), "", d.ReplyTo, false, false, amqp.Publishing{
		CorrelationId: d.MessageId,
		Type:          status,
		Timestamp:     time.Now(),
	})
	if err != nil {
		c.logger.Warn("batch reply failed", zap.String("message_id", d.MessageId), zap.Error(err))
	}
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}
