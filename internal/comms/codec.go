package comms

import "encoding/json"

// Codec serializes application values into frame payloads and back. Codec
// failures are per-message: the connection stays up and the message is
// dropped with a log and a metric.
type Codec[T any] interface {
	Encode(msg T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// JSONCodec is the default codec.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(msg T) ([]byte, error) {
	return json.Marshal(msg)
}

func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var msg T
	err := json.Unmarshal(data, &msg)
	return msg, err
}
