// Copyright 2024 The fskv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package codec converts typed keys and values to and from the bytes
// persisted in a store's .key and .value files.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
	"gopkg.in/yaml.v3"
)

var (
	ErrEncode = errors.New("encode failed")
	ErrDecode = errors.New("decode failed")
)

// Codec encodes values of type T.  Encode must be deterministic for the
// keys of a store: equal keys have to produce identical bytes, or they
// will digest to different entries.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(b []byte) (T, error)
}

// Funcs adapts a pair of functions to a Codec.
type Funcs[T any] struct {
	EncodeFunc func(T) ([]byte, error)
	DecodeFunc func([]byte) (T, error)
}

func (f Funcs[T]) Encode(v T) ([]byte, error) {
	b, err := f.EncodeFunc(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return b, nil
}

func (f Funcs[T]) Decode(b []byte) (T, error) {
	v, err := f.DecodeFunc(b)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return v, nil
}

// JSON encodes with encoding/json.  Map keys are sorted by the encoder,
// so map-typed keys are stable.
func JSON[T any]() Codec[T] {
	return Funcs[T]{
		EncodeFunc: func(v T) ([]byte, error) {
			return json.Marshal(v)
		},
		DecodeFunc: func(b []byte) (T, error) {
			var v T
			err := json.Unmarshal(b, &v)
			return v, err
		},
	}
}

// YAML encodes with gopkg.in/yaml.v3.
func YAML[T any]() Codec[T] {
	return Funcs[T]{
		EncodeFunc: func(v T) ([]byte, error) {
			return yaml.Marshal(v)
		},
		DecodeFunc: func(b []byte) (T, error) {
			var v T
			err := yaml.Unmarshal(b, &v)
			return v, err
		},
	}
}

// Proto encodes protocol buffer messages using deterministic
// marshaling.  T is a generated message pointer type such as
// *wrapperspb.StringValue.
func Proto[T proto.Message]() Codec[T] {
	opts := proto.MarshalOptions{Deterministic: true}
	return Funcs[T]{
		EncodeFunc: func(v T) ([]byte, error) {
			return opts.Marshal(v)
		},
		DecodeFunc: func(b []byte) (T, error) {
			var zero T
			// generated messages support ProtoReflect on a nil receiver
			v := zero.ProtoReflect().New().Interface().(T)
			if err := proto.Unmarshal(b, v); err != nil {
				return zero, err
			}
			return v, nil
		},
	}
}

// String stores strings as their raw bytes.
func String() Codec[string] {
	return Funcs[string]{
		EncodeFunc: func(v string) ([]byte, error) {
			return []byte(v), nil
		},
		DecodeFunc: func(b []byte) (string, error) {
			return string(b), nil
		},
	}
}

// Bytes stores byte slices verbatim.
func Bytes() Codec[[]byte] {
	return Funcs[[]byte]{
		EncodeFunc: func(v []byte) ([]byte, error) {
			return v, nil
		},
		DecodeFunc: func(b []byte) ([]byte, error) {
			return b, nil
		},
	}
}

// ByName returns a string codec for the CLI's --format flag.
func ByName(name string) (Codec[string], error) {
	switch name {
	case "json":
		return JSON[string](), nil
	case "yaml":
		return YAML[string](), nil
	case "string", "raw":
		return String(), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want json, yaml or string)", name)
	}
}
