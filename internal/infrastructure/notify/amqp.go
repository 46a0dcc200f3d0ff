package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/reuf/lending-system/internal/core/ports"
)

// ErrNotifierClosed is returned by Notify after Close.
var ErrNotifierClosed = errors.New("amqp notifier closed")

// publisher is the subset of *amqp.Channel the notifier uses.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialFunc opens a publishing session. closed receives, or is closed, once
// the broker connection is gone.
type dialFunc func() (ch publisher, closed <-chan *amqp.Error, err error)

// AMQPNotifier publishes notifications as persistent JSON messages for the
// mail service to consume. A dropped connection is redialed on the next
// Notify.
type AMQPNotifier struct {
	mu         sync.Mutex
	dial       dialFunc
	ch         publisher
	closed     <-chan *amqp.Error
	shut       bool
	exchange   string
	routingKey string
}

// DialAMQP connects to url and declares a durable direct exchange and a
// durable queue named after routingKey, bound to it. The first connection is
// made before returning so a bad url fails at startup.
func DialAMQP(url, exchange, routingKey string) (*AMQPNotifier, error) {
	n := newAMQPNotifier(func() (publisher, <-chan *amqp.Error, error) {
		return openSession(url, exchange, routingKey)
	}, exchange, routingKey)

	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.connect(); err != nil {
		return nil, err
	}
	return n, nil
}

func newAMQPNotifier(dial dialFunc, exchange, routingKey string) *AMQPNotifier {
	return &AMQPNotifier{dial: dial, exchange: exchange, routingKey: routingKey}
}

// session owns a channel and the connection it was opened on.
type session struct {
	*amqp.Channel
	conn *amqp.Connection
}

func (s session) Close() error {
	err := s.Channel.Close()
	if cerr := s.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

func openSession(url, exchange, routingKey string) (publisher, <-chan *amqp.Error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if _, err := ch.QueueDeclare(routingKey, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("declare queue %s: %w", routingKey, err)
	}
	if err := ch.QueueBind(routingKey, routingKey, exchange, false, nil); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("bind queue %s: %w", routingKey, err)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	return session{Channel: ch, conn: conn}, closed, nil
}

// connect opens a session when there is none or the current one is gone.
// Callers hold a.mu.
func (a *AMQPNotifier) connect() error {
	if a.ch != nil {
		select {
		case <-a.closed:
			a.drop()
		default:
			return nil
		}
	}
	ch, closed, err := a.dial()
	if err != nil {
		return err
	}
	a.ch, a.closed = ch, closed
	return nil
}

// drop discards the current session. Callers hold a.mu.
func (a *AMQPNotifier) drop() {
	if a.ch != nil {
		_ = a.ch.Close()
	}
	a.ch, a.closed = nil, nil
}

// Notify publishes n. Channels are not safe for concurrent publishing, so
// calls are serialized. A failed publish discards the session and the next
// call redials.
func (a *AMQPNotifier) Notify(ctx context.Context, n ports.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.shut {
		return ErrNotifierClosed
	}
	if err := a.connect(); err != nil {
		return fmt.Errorf("publish notification %s: %w", n.ID, err)
	}

	err = a.ch.PublishWithContext(ctx, a.exchange, a.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    n.ID,
		Type:         "email",
		Body:         body,
		Timestamp:    n.CreatedAt,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		a.drop()
		return fmt.Errorf("publish notification %s: %w", n.ID, err)
	}
	return nil
}

// Close closes the current session. Later Notify calls fail.
func (a *AMQPNotifier) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.shut = true
	if a.ch == nil {
		return nil
	}
	err := a.ch.Close()
	a.ch, a.closed = nil, nil
	return err
}
