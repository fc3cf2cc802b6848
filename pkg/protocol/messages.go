package protocol

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// Control-connection wire format: each WebSocket binary frame carries one
// message encoded as an XDR discriminated union (RFC 4506) - a big-endian
// uint32 discriminant followed by the arm body. Both sides reject unknown
// discriminants.

// Node -> hub discriminants.
const (
	nodeMsgRequestConfig uint32 = 0
	nodeMsgAckConfig     uint32 = 1
)

// Hub -> node discriminants.
const (
	hubMsgSendConfig uint32 = 0
	hubMsgError      uint32 = 1
)

// NodeMessage is a control message sent by a node to the hub.
type NodeMessage interface {
	nodeMessage()
}

// RequestConfig asks the hub for the node's current configuration.
type RequestConfig struct{}

// AckConfig confirms that the node applied the given configuration.
type AckConfig struct {
	Config NodeConfig
}

func (RequestConfig) nodeMessage() {}
func (AckConfig) nodeMessage()     {}

// HubMessage is a control message sent by the hub to a node.
type HubMessage interface {
	hubMessage()
}

// SendConfig delivers a configuration the node should apply.
type SendConfig struct {
	Config NodeConfig
}

// ErrorMessage surfaces a hub-side failure to the node. When Terminate is
// set the node must tear down its workers and reconnect.
type ErrorMessage struct {
	Msg       string
	Terminate bool
}

func (SendConfig) hubMessage()   {}
func (ErrorMessage) hubMessage() {}

// EncodeNodeMessage serializes a node->hub message into one wire frame.
func EncodeNodeMessage(msg NodeMessage) ([]byte, error) {
	var buf bytes.Buffer
	switch m := msg.(type) {
	case RequestConfig:
		if _, err := xdr.Marshal(&buf, nodeMsgRequestConfig); err != nil {
			return nil, fmt.Errorf("encode RequestConfig: %w", err)
		}
	case AckConfig:
		if _, err := xdr.Marshal(&buf, nodeMsgAckConfig); err != nil {
			return nil, fmt.Errorf("encode AckConfig discriminant: %w", err)
		}
		if _, err := xdr.Marshal(&buf, &m.Config); err != nil {
			return nil, fmt.Errorf("encode AckConfig body: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported node message type %T", msg)
	}
	return buf.Bytes(), nil
}

// DecodeNodeMessage parses one node->hub wire frame.
func DecodeNodeMessage(data []byte) (NodeMessage, error) {
	r := bytes.NewReader(data)
	var disc uint32
	if _, err := xdr.Unmarshal(r, &disc); err != nil {
		return nil, fmt.Errorf("decode node message discriminant: %w", err)
	}
	switch disc {
	case nodeMsgRequestConfig:
		return RequestConfig{}, nil
	case nodeMsgAckConfig:
		var m AckConfig
		if _, err := xdr.Unmarshal(r, &m.Config); err != nil {
			return nil, fmt.Errorf("decode AckConfig body: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown node message discriminant %d", disc)
	}
}

// EncodeHubMessage serializes a hub->node message into one wire frame.
func EncodeHubMessage(msg HubMessage) ([]byte, error) {
	var buf bytes.Buffer
	switch m := msg.(type) {
	case SendConfig:
		if _, err := xdr.Marshal(&buf, hubMsgSendConfig); err != nil {
			return nil, fmt.Errorf("encode SendConfig discriminant: %w", err)
		}
		if _, err := xdr.Marshal(&buf, &m.Config); err != nil {
			return nil, fmt.Errorf("encode SendConfig body: %w", err)
		}
	case ErrorMessage:
		if _, err := xdr.Marshal(&buf, hubMsgError); err != nil {
			return nil, fmt.Errorf("encode Error discriminant: %w", err)
		}
		if _, err := xdr.Marshal(&buf, &m); err != nil {
			return nil, fmt.Errorf("encode Error body: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported hub message type %T", msg)
	}
	return buf.Bytes(), nil
}

// DecodeHubMessage parses one hub->node wire frame.
func DecodeHubMessage(data []byte) (HubMessage, error) {
	r := bytes.NewReader(data)
	var disc uint32
	if _, err := xdr.Unmarshal(r, &disc); err != nil {
		return nil, fmt.Errorf("decode hub message discriminant: %w", err)
	}
	switch disc {
	case hubMsgSendConfig:
		var m SendConfig
		if _, err := xdr.Unmarshal(r, &m.Config); err != nil {
			return nil, fmt.Errorf("decode SendConfig body: %w", err)
		}
		return m, nil
	case hubMsgError:
		var m ErrorMessage
		if _, err := xdr.Unmarshal(r, &m); err != nil {
			return nil, fmt.Errorf("decode Error body: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown hub message discriminant %d", disc)
	}
}
