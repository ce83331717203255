package worker

import (
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDeclarer struct {
	exchanges []string
	queues    map[string]amqp.Table
	bindings  [][3]string
	failQueue string
}

func (d *recordingDeclarer) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	d.exchanges = append(d.exchanges, name+":"+kind)
	return nil
}

func (d *recordingDeclarer) QueueDeclare(name string, durable, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	if name == d.failQueue {
		return amqp.Queue{}, errors.New("channel closed")
	}
	if d.queues == nil {
		d.queues = make(map[string]amqp.Table)
	}
	d.queues[name] = args
	return amqp.Queue{Name: name}, nil
}

func (d *recordingDeclarer) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	d.bindings = append(d.bindings, [3]string{name, key, exchange})
	return nil
}

func TestDeclareEventQueues(t *testing.T) {
	d := &recordingDeclarer{}
	require.NoError(t, DeclareEventQueues(d))

	assert.Equal(t, []string{"orders.dlx:direct"}, d.exchanges)
	require.Contains(t, d.queues, dlqQueueName)
	require.Contains(t, d.queues, eventQueueName)
	assert.Equal(t, dlxExchange, d.queues[eventQueueName]["x-dead-letter-exchange"])
	assert.Equal(t, eventQueueName, d.queues[eventQueueName]["x-dead-letter-routing-key"])
	assert.Equal(t, [][3]string{{dlqQueueName, eventQueueName, dlxExchange}}, d.bindings)
}

func TestDeclareEventQueues_Error(t *testing.T) {
	d := &recordingDeclarer{failQueue: eventQueueName}
	err := DeclareEventQueues(d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declare queue orders.events")
	assert.Empty(t, d.bindings)
}
