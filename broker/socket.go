package broker

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"go.nanomsg.org/mangos/v3/protocol"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	_ "go.nanomsg.org/mangos/v3/transport/tcp"

	"github.com/nimbusdex/matcher/logging"
	"github.com/nimbusdex/matcher/types"
)

func init() {
	gob.Register(types.OrderAccepted{})
	gob.Register(types.OrderFilled{})
	gob.Register(types.OrderCancelled{})
	gob.Register(types.MarketStatusUpdated{})
}

// SocketSink republishes every notification the broker sees over a
// mangos PUB socket (spec.md §4.10), gob-encoded, for out-of-process
// tooling such as an order-history exporter. Publish is best-effort: a
// notification dropped because no subscriber is connected never blocks
// or unwinds matching.
type SocketSink struct {
	log  *logging.Logger
	sock protocol.Socket
}

func NewSocketSink(log *logging.Logger, config *SocketConfig) (*SocketSink, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("broker: create pub socket: %w", err)
	}
	addr := fmt.Sprintf("tcp://0.0.0.0:%d", config.Port)
	if err := sock.Listen(addr); err != nil {
		return nil, fmt.Errorf("broker: listen on %s: %w", addr, err)
	}
	return &SocketSink{log: log.Named("socket-sink"), sock: sock}, nil
}

func (s *SocketSink) Publish(n types.Notification) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(n); err != nil {
		s.log.Warn("failed to encode notification for socket sink")
		return
	}
	if err := s.sock.Send(buf.Bytes()); err != nil {
		s.log.Warn("failed to publish notification on socket sink")
	}
}

func (s *SocketSink) Close() error {
	return s.sock.Close()
}
