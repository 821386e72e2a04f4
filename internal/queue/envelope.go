package queue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const OperationAddHost = "add_host"

var (
	ErrInvalidEnvelope  = errors.New("invalid_envelope")
	ErrUnknownOperation = errors.New("unknown_operation")
)

// Envelope wraps every message on the ingress stream.
type Envelope struct {
	Operation        string                 `json:"operation"`
	PlatformMetadata map[string]interface{} `json:"platform_metadata"`
	Data             json.RawMessage        `json:"data"`
}

// ParseEnvelope decodes and checks the envelope. The payload itself is
// decoded by the handler.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	env.Operation = strings.TrimSpace(env.Operation)
	if env.Operation != OperationAddHost {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownOperation, env.Operation)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) || data[0] != '{' {
		return Envelope{}, fmt.Errorf("%w: data must be an object", ErrInvalidEnvelope)
	}
	return env, nil
}
