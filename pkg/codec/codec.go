// Package codec serializes event payloads, snapshots and query parameters.
package codec

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"google.golang.org/protobuf/proto"
)

// ErrUnsupportedType is returned when a codec cannot handle a value.
var ErrUnsupportedType = errors.New("codec: unsupported type")

// Codec converts values to and from bytes.
type Codec interface {
	// Name identifies the encoding (e.g. "json", "proto").
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var (
	// JSON encodes with sonic using the standard-library compatible config.
	// Map keys are sorted, so equal values produce equal bytes.
	JSON Codec = jsonCodec{}

	// Proto encodes proto.Message values deterministically.
	Proto Codec = protoCodec{}

	// Default is the codec used for event payloads unless overridden.
	Default = JSON
)

// ByName returns the built-in codec with the given name. An empty name selects
// Default.
func ByName(name string) (Codec, error) {
	switch name {
	case "":
		return Default, nil
	case JSON.Name():
		return JSON, nil
	case Proto.Name():
		return Proto, nil
	default:
		return nil, fmt.Errorf("%w: codec %q", ErrUnsupportedType, name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return sonic.ConfigStd.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return sonic.ConfigStd.Unmarshal(data, v)
}

type protoCodec struct{}

func (protoCodec) Name() string { return "proto" }

func (protoCodec) Marshal(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a proto.Message", ErrUnsupportedType, v)
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(msg)
}

func (protoCodec) Unmarshal(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("%w: %T is not a proto.Message", ErrUnsupportedType, v)
	}
	return proto.Unmarshal(data, msg)
}

// CanonicalKey renders v as deterministic JSON for use as a map or cache key.
func CanonicalKey(v any) (string, error) {
	data, err := JSON.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonical key: %w", err)
	}
	return string(data), nil
}
