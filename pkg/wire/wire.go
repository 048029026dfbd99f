// Package wire defines the JSON shapes exchanged between datahub servers,
// clients and event subscribers.
//
// Values are opaque bytes inside the hub. On the wire a value travels as a
// string with an encoding tag: "utf8" when the bytes are valid UTF-8 (the
// common case, so payloads stay readable), "base64" otherwise.
package wire

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/dyluth/datahub/pkg/hub"
)

const (
	EncodingUTF8   = "utf8"
	EncodingBase64 = "base64"
)

// Status strings carried in responses besides the hub read statuses.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// ErrMalformed is returned when a response body is not one the hub sends.
var ErrMalformed = errors.New("malformed response")

// Header names.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderClientID  = "X-Client-ID"

	// HeaderWaitTimeout carries the wait the server applied to a read, in
	// seconds, after clamping to its max_wait.
	HeaderWaitTimeout = "X-Wait-Timeout"
)

// EncodeValue returns the wire form of value and its encoding tag.
func EncodeValue(value []byte) (string, string) {
	if utf8.Valid(value) {
		return string(value), EncodingUTF8
	}
	return base64.StdEncoding.EncodeToString(value), EncodingBase64
}

// DecodeValue reverses EncodeValue. An empty encoding means utf8.
func DecodeValue(value, encoding string) ([]byte, error) {
	switch encoding {
	case "", EncodingUTF8:
		return []byte(value), nil
	case EncodingBase64:
		b, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 value: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown value encoding: %s", encoding)
	}
}

// WriteRequest is the body of PUT /v1/vars/{key}.
type WriteRequest struct {
	Value    string `json:"value"`
	Encoding string `json:"encoding,omitempty"`
}

// WriteResponse acknowledges a write.
type WriteResponse struct {
	Status   string `json:"status"`
	Key      string `json:"key"`
	Version  uint64 `json:"version"`
	Notified int    `json:"notified"`
}

// Ack converts the response into a hub acknowledgement. Anything but an OK
// status with an assigned version is rejected with ErrMalformed.
func (r WriteResponse) Ack() (hub.WriteAck, error) {
	if r.Status != StatusOK || r.Version == 0 {
		return hub.WriteAck{}, fmt.Errorf("%w: write response has status %q, version %d", ErrMalformed, r.Status, r.Version)
	}
	return hub.WriteAck{Key: r.Key, Version: r.Version, Notified: r.Notified}, nil
}

// ReadResponse answers GET /v1/vars/{key}.
// Value is only present when Status is READY, so an empty value and a
// timeout never look alike.
type ReadResponse struct {
	Status   hub.Status `json:"status"`
	Key      string     `json:"key"`
	Value    *string    `json:"value,omitempty"`
	Encoding string     `json:"encoding,omitempty"`
	Version  uint64     `json:"version,omitempty"`
}

// NewReadResponse converts a hub result.
func NewReadResponse(res hub.Result) ReadResponse {
	resp := ReadResponse{
		Status: res.Status,
		Key:    res.Key,
	}
	if res.Ready() {
		v, enc := EncodeValue(res.Value)
		resp.Value = &v
		resp.Encoding = enc
		resp.Version = res.Version
	}
	return resp
}

// Result converts the response back into a hub result. A body that does not
// carry one of the hub's read statuses is rejected with ErrMalformed.
func (r ReadResponse) Result() (hub.Result, error) {
	res := hub.Result{Key: r.Key, Status: r.Status}
	switch r.Status {
	case hub.StatusReady:
	case hub.StatusTimeout, hub.StatusCancelled, hub.StatusPending:
		return res, nil
	default:
		return hub.Result{}, fmt.Errorf("%w: read response has status %q", ErrMalformed, r.Status)
	}
	if r.Value == nil {
		return hub.Result{}, fmt.Errorf("%w: READY response for %q has no value", ErrMalformed, r.Key)
	}
	value, err := DecodeValue(*r.Value, r.Encoding)
	if err != nil {
		return hub.Result{}, err
	}
	res.Value = value
	res.Version = r.Version
	return res, nil
}

// ErrorResponse is returned with every 4xx/5xx status.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// KeysResponse answers GET /v1/vars.
type KeysResponse struct {
	Keys []hub.KeyInfo `json:"keys"`
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis,omitempty"`
	Error  string `json:"error,omitempty"`
}

// WriteEvent is published on the write-events channel after every write.
type WriteEvent struct {
	Instance    string `json:"instance"`
	Key         string `json:"key"`
	Value       string `json:"value"`
	Encoding    string `json:"encoding"`
	Version     uint64 `json:"version"`
	Notified    int    `json:"notified"`
	WrittenAtMs int64  `json:"written_at_ms"`
}

// NewWriteEvent converts a hub write event.
func NewWriteEvent(instance string, ev hub.WriteEvent) *WriteEvent {
	v, enc := EncodeValue(ev.Value)
	return &WriteEvent{
		Instance:    instance,
		Key:         ev.Key,
		Value:       v,
		Encoding:    enc,
		Version:     ev.Version,
		Notified:    ev.Notified,
		WrittenAtMs: ev.WrittenAt.UnixMilli(),
	}
}

// Validate checks that the event is well formed. Key length is not checked;
// the hub that produced the event already enforced its own limit.
func (e *WriteEvent) Validate() error {
	if err := hub.ValidateKey(e.Key, math.MaxInt); err != nil {
		return err
	}
	if e.Version == 0 {
		return fmt.Errorf("version must be >= 1")
	}
	if _, err := DecodeValue(e.Value, e.Encoding); err != nil {
		return err
	}
	return nil
}
