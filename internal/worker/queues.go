package worker

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	eventQueueName = "orders.events"
	dlxExchange    = "orders.dlx"
	dlqQueueName   = "orders.dlq"
)

type queueDeclarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// DeclareEventQueues makes sure the order event queue exists. Events the
// notification worker rejects are routed through the dead-letter exchange
// into a parking queue.
func DeclareEventQueues(ch queueDeclarer) error {
	if err := ch.ExchangeDeclare(dlxExchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", dlxExchange, err)
	}

	queues := []struct {
		name string
		args amqp.Table
	}{
		{dlqQueueName, nil},
		{eventQueueName, amqp.Table{
			"x-dead-letter-exchange":    dlxExchange,
			"x-dead-letter-routing-key": eventQueueName,
		}},
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	// Dead letters keep the event queue's name as routing key.
	if err := ch.QueueBind(dlqQueueName, eventQueueName, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", dlqQueueName, dlxExchange, err)
	}
	return nil
}
