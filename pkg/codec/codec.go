package codec

import (
	"encoding/json"
	"fmt"
)

// CodecError wraps an encode or decode failure
type CodecError struct {
	Op  string // "encode" or "decode"
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec: %s failed: %v", e.Op, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// Encode serializes a record to its canonical byte representation.
// encoding/json emits struct fields in declaration order and map keys
// sorted, so the same record produces the same bytes on every replica.
func Encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &CodecError{Op: "encode", Err: err}
	}
	return data, nil
}

// Decode deserializes canonical bytes into the given record.
func Decode(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &CodecError{Op: "decode", Err: err}
	}
	return nil
}
