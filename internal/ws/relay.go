package ws

import (
	"context"
	"log"
)

// Relay forwards every value from feed to topic, rendered by render, until
// the feed closes or ctx is done.
func Relay[T any](ctx context.Context, hub *Hub, topic string, feed <-chan T, render func(T) any) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-feed:
			if !ok {
				return
			}
			if err := hub.Publish(topic, render(v)); err != nil {
				log.Printf("ERROR: relay %s: %v", topic, err)
			}
		}
	}
}
