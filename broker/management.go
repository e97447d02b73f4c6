package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	rabbithole "github.com/michaelklishin/rabbit-hole/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoConsumer = errors.New("queue has no active consumer")
)

// ManagementClient talks to the RabbitMQ management HTTP API.
// rabbit-hole does not accept a context, so every call is bounded by the client's HTTP timeout instead.
type ManagementClient struct {
	rmq *rabbithole.Client
}

func NewManagementClient(url string, user string, password string, httpClient *http.Client) (*ManagementClient, error) {
	rmq, err := rabbithole.NewClient(url, user, password)
	if err != nil {
		return nil, fmt.Errorf("create rabbitmq management client: %w", err)
	}
	if httpClient != nil {
		rmq.SetTransport(httpClient.Transport)
		rmq.SetTimeout(httpClient.Timeout)
	}

	return &ManagementClient{
		rmq: rmq,
	}, nil
}

func (mc *ManagementClient) Queues(ctx context.Context) ([]QueueSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queues, err := mc.rmq.ListQueues()
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}

	snapshots := make([]QueueSnapshot, 0, len(queues))
	for _, q := range queues {
		snapshots = append(snapshots, QueueSnapshot{
			Name:          q.Name,
			Vhost:         q.Vhost,
			MessagesReady: q.MessagesReady,
			Consumers:     q.Consumers,
		})
	}
	return snapshots, nil
}

// DeleteQueue treats a queue that no longer exists as deleted.
func (mc *ManagementClient) DeleteQueue(vhost string, name string, ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	resp, err := mc.rmq.DeleteQueue(vhost, name)
	if err != nil {
		if isNotFound(err) {
			log.Info().Str("queue", name).Str("vhost", vhost).Msg("queue to delete is already gone")
			return nil
		}
		return fmt.Errorf("delete queue %s: %w", name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		log.Info().Str("queue", name).Str("vhost", vhost).Msg("queue to delete is already gone")
		return nil
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("delete queue %s: unexpected status %d", name, resp.StatusCode)
	}
	return nil
}

func isNotFound(err error) bool {
	var errResp rabbithole.ErrorResponse
	if errors.As(err, &errResp) {
		return errResp.StatusCode == http.StatusNotFound
	}
	var errRespPtr *rabbithole.ErrorResponse
	if errors.As(err, &errRespPtr) {
		return errRespPtr.StatusCode == http.StatusNotFound
	}
	return false
}

// QueueExchange returns the name of the exchange the queue is bound to, or an empty string if it has no bindings
// other than the implicit one to the default exchange.
func (mc *ManagementClient) QueueExchange(vhost string, name string, ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	bindings, err := mc.rmq.ListQueueBindings(vhost, name)
	if err != nil {
		return "", fmt.Errorf("list bindings of queue %s: %w", name, err)
	}

	for _, b := range bindings {
		// the default exchange has an empty name
		if b.Source != "" {
			return b.Source, nil
		}
	}
	return "", nil
}

// ConsumerIdentity returns the broker user the first consumer of the queue is connected as.
func (mc *ManagementClient) ConsumerIdentity(snapshot QueueSnapshot, ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	consumers, err := mc.rmq.ListConsumersIn(snapshot.Vhost)
	if err != nil {
		return "", fmt.Errorf("list consumers in vhost %s: %w", snapshot.Vhost, err)
	}

	for _, c := range consumers {
		if c.Queue.Name != snapshot.Name {
			continue
		}
		if c.ChannelDetails.User == "" {
			log.Debug().Str("queue", snapshot.Name).Str("consumer_tag", c.ConsumerTag).Msg("consumer channel has no user")
			continue
		}
		return c.ChannelDetails.User, nil
	}
	return "", ErrNoConsumer
}
