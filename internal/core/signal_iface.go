package core

import "context"

// Frame is a raw payload on the session channel.
type Frame []byte

// SignalChannel abstracts the system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalChannel interface {
	TrySend(Frame) error
	Close()
}

// FrameSink receives inbound frames one at a time, in arrival order.
// The transport never invokes it concurrently for the same channel.
type FrameSink func(Frame)

// Dialer establishes the channel for one session. onFrame receives every
// inbound frame; onClosed fires once when the peer or transport closes the
// connection (not when Close is called locally first).
type Dialer interface {
	Dial(ctx context.Context, url string, onFrame FrameSink, onClosed func()) (SignalChannel, error)
}
