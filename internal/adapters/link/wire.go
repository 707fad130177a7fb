package link

import "github.com/bft-labs/feedrelay/internal/domain"

// Message types on the wire. Each message is one JSON object per line.
const (
	typeSend         = "send"
	typeAck          = "ack"
	typeNack         = "nack"
	typeReady        = "ready"
	typeMessage      = "message"
	typeConfigOpened = "config_opened"
	typeConfigClosed = "config_closed"
)

// wireMessage is the union of every message shape.
type wireMessage struct {
	Type     string        `json:"type"`
	Seq      uint64        `json:"seq,omitempty"`
	Fields   domain.Fields `json:"fields,omitempty"`
	Error    string        `json:"error,omitempty"`
	Response string        `json:"response,omitempty"`
}

// event converts an inbound device message to a domain event.
func (m wireMessage) event() (domain.Event, bool) {
	switch m.Type {
	case typeReady:
		return domain.Event{Kind: domain.EventReady}, true
	case typeMessage:
		return domain.Event{Kind: domain.EventMessage, Fields: m.Fields}, true
	case typeConfigOpened:
		return domain.Event{Kind: domain.EventConfigOpened}, true
	case typeConfigClosed:
		return domain.Event{Kind: domain.EventConfigClosed, Response: m.Response}, true
	default:
		return domain.Event{}, false
	}
}
