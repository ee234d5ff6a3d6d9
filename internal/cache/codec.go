package cache

import (
	"encoding/json"
	"strings"
)

// Codec converts values to and from their on-disk payload.
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

// JSON encodes values with encoding/json.
type JSON[T any] struct{}

func (JSON[T]) Encode(v T) ([]byte, error) { return json.Marshal(v) }

func (JSON[T]) Decode(data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

// Lines stores text lines joined by newlines.
type Lines struct{}

func (Lines) Encode(lines []string) ([]byte, error) {
	return []byte(strings.Join(lines, "\n")), nil
}

func (Lines) Decode(data []byte) ([]string, error) {
	if len(data) == 0 {
		return []string{}, nil
	}
	return strings.Split(string(data), "\n"), nil
}

// Funcs adapts a pair of functions to Codec.
type Funcs[T any] struct {
	EncodeFunc func(T) ([]byte, error)
	DecodeFunc func([]byte) (T, error)
}

func (f Funcs[T]) Encode(v T) ([]byte, error)    { return f.EncodeFunc(v) }
func (f Funcs[T]) Decode(data []byte) (T, error) { return f.DecodeFunc(data) }
