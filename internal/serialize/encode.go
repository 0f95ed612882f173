package serialize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Content types the handlers negotiate between.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgPack = "application/msgpack"
)

func (d *Document) JSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.WriteJSON(&buf); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// WriteJSON encodes the document value followed by a newline.
func (d *Document) WriteJSON(w io.Writer) error {
	if err := json.NewEncoder(w).Encode(d.Value); err != nil {
		return fmt.Errorf("serialize: encoding json: %w", err)
	}
	return nil
}

func (d *Document) MsgPack() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.WriteMsgPack(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteMsgPack encodes the document value as MessagePack. Map keys are
// sorted so equal documents encode to equal bytes.
func (d *Document) WriteMsgPack(w io.Writer) error {
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(d.Value); err != nil {
		return fmt.Errorf("serialize: encoding msgpack: %w", err)
	}
	return nil
}

// Write encodes in the given content type; anything other than MessagePack
// falls back to JSON. It returns the content type actually written.
func (d *Document) Write(w io.Writer, contentType string) (string, error) {
	if contentType == ContentTypeMsgPack {
		return ContentTypeMsgPack, d.WriteMsgPack(w)
	}
	return ContentTypeJSON, d.WriteJSON(w)
}
