// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package treerpc

import (
	"encoding/json"
	"fmt"
)

// Codec encodes/decodes RPC messages
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// JSONCodec is a JSON-based codec
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// defaultCodec is used when no codec is specified
var defaultCodec Codec = JSONCodec{}

// BinaryCodec passes bytes through unchanged (for pre-encoded data)
type BinaryCodec struct{}

func (BinaryCodec) Encode(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case *[]byte:
		return *b, nil
	}
	return json.Marshal(v)
}

func (BinaryCodec) Decode(data []byte, v any) error {
	if b, ok := v.(*[]byte); ok {
		*b = data
		return nil
	}
	return json.Unmarshal(data, v)
}

// Binary is a codec that passes bytes through unchanged
var Binary Codec = BinaryCodec{}

func codecOrDefault(c Codec) Codec {
	if c == nil {
		return defaultCodec
	}
	return c
}

// callWithCodec runs a structured call over a raw round trip.
func callWithCodec(c Codec, args, reply any, roundTrip func([]byte) ([]byte, error)) error {
	c = codecOrDefault(c)

	var payload []byte
	if args != nil {
		var err error
		if payload, err = c.Encode(args); err != nil {
			return fmt.Errorf("encode args: %w", err)
		}
	}

	resp, err := roundTrip(payload)
	if err != nil {
		return err
	}

	if reply != nil && len(resp) > 0 {
		if err := c.Decode(resp, reply); err != nil {
			return fmt.Errorf("decode reply: %w", err)
		}
	}
	return nil
}
