// Package broker mirrors cabin broadcasts to an external message broker for
// crew and ground systems.
//
// Mirror wraps the WebSocket hub: every event still goes to the connected
// observers first, then is handed to a Publisher on a background goroutine.
// Mirroring is best-effort. A full buffer drops the event and publish
// failures are only logged; sessions never see either.
//
// Publishers:
//   - KafkaPublisher (segmentio/kafka-go): one topic, keyed by event name
//   - AMQPPublisher (rabbitmq/amqp091-go): durable topic exchange, routing
//     key is the event name
//   - Noop
package broker
