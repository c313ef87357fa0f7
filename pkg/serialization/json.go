package serialization

import (
	"encoding/json"
	"io"
)

// Json wraps json.Decoder and json.Encoder.
type Json struct {
	dec *json.Decoder
	enc *json.Encoder
}

func (j *Json) Decode(v any) error {
	return j.dec.Decode(v)
}

func (j *Json) Encode(v any) error {
	return j.enc.Encode(v)
}

// JsonDecoder rejects fields the target does not declare so that a record
// written by an incompatible version is treated as corrupt.
func JsonDecoder(r io.Reader) Decoder {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return &Json{dec: dec}
}

func JsonEncoder(w io.Writer) Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Json{enc: enc}
}
