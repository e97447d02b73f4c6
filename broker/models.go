package broker

// QueueSnapshot is what a single poll cycle observed about a queue. Never persisted.
type QueueSnapshot struct {
	Name          string
	Vhost         string
	MessagesReady int
	Consumers     int
}
