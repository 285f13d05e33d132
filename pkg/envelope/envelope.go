// Package envelope defines the wire format shared by every gridswarm client.
//
// Every message published on the transport is a JSON-encoded Envelope. The
// field set and the Kind values are a cross-implementation contract: they
// MUST stay stable so that clients written against different language
// runtimes can interoperate on the same channel namespace.
package envelope

import "encoding/json"

// Kind discriminates the wire role of an Envelope.
type Kind string

const (
	KindBroadcast  Kind = "broadcast"
	KindCast       Kind = "cast"
	KindRequest    Kind = "request"
	KindResponse   Kind = "response"
	KindBidOpen    Kind = "bid_open"
	KindBidSubmit  Kind = "bid_submit"
	KindBidAward   Kind = "bid_award"
	KindGroupMsg   Kind = "group_msg"
)

// ResponseTopic is the reserved topic used for request/response replies.
const ResponseTopic = "__response__"

// AliveTopic is the reserved topic used by the Alive liveness probe.
const AliveTopic = "__alive__"

// Envelope is the self-describing record carried on every channel.
type Envelope struct {
	Kind          Kind            `json:"kind"`
	Topic         string          `json:"topic"`
	From          string          `json:"from"`
	To            string          `json:"to,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	DeadlineMs    int64           `json:"deadline_ms,omitempty"`
}

// Metadata is what handlers receive alongside the decoded payload.
type Metadata struct {
	From          string
	Topic         string
	CorrelationID string
}

// ErrorPayload is the structured shape a HandlerError takes on the wire,
// per the spec's "exception-as-response" re-architecture guidance: a
// handler error never replays as a transport fault, it is carried inside
// a normal response envelope's payload.
type ErrorPayload struct {
	ErrorKind string `json:"__error__"`
	Message   string `json:"message"`
}

// IsError reports whether raw decodes as an ErrorPayload.
func IsError(raw json.RawMessage) (ErrorPayload, bool) {
	if len(raw) == 0 {
		return ErrorPayload{}, false
	}
	var probe struct {
		ErrorKind string `json:"__error__"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.ErrorKind == "" {
		return ErrorPayload{}, false
	}
	var ep ErrorPayload
	_ = json.Unmarshal(raw, &ep)
	return ep, true
}

// Encode marshals a value into a payload, defaulting to an empty JSON
// object when v is nil so that decode-side consumers never see a
// zero-length payload for an intentionally empty message.
func Encode(v any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage(`{}`), nil
	}
	return json.Marshal(v)
}

// Marshal encodes an Envelope to bytes for transport.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes bytes into an Envelope.
func Unmarshal(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
