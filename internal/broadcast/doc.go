// Package broadcast fans room events out to WebSocket subscribers.
//
// A Registry tracks which connections are subscribed to which room. Each room
// has its own lock and is created on the first subscriber and retired with the
// last one. The Broadcaster encodes an event once and places it on every
// subscriber's bounded outbound queue; a subscriber whose queue is full is
// closed instead of stalling the publisher. Each Connection owns one writer
// goroutine that drains its queue and keeps the socket alive with pings.
package broadcast
