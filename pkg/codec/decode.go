package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// FromDurable is the inverse of ToDurable: it decodes a durable value into out,
// which must be a non-nil pointer.
func FromDurable(durable any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			unmarshalerHook,
			bytesHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return fmt.Errorf("codec: %w", err)
	}
	if err := dec.Decode(durable); err != nil {
		return fmt.Errorf("codec: decode %T: %w", out, err)
	}
	return nil
}

// unmarshalerHook rebuilds Unmarshaler targets from their durable map.
func unmarshalerHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	raw, ok := data.(map[string]any)
	if !ok {
		return data, nil
	}
	if !reflect.PointerTo(to).Implements(unmarshalerType) {
		return data, nil
	}
	ptr := reflect.New(to)
	if err := ptr.Interface().(Unmarshaler).UnmarshalDurable(raw); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

// bytesHook reverses the base64 encoding ToDurable applies to byte slices.
func bytesHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.Uint8 {
		return data, nil
	}
	return base64.StdEncoding.DecodeString(reflect.ValueOf(data).String())
}

// DecodeJSON unmarshals data with numbers kept as json.Number, so a record
// read back from a store holds exactly the durable values that were saved.
func DecodeJSON(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(out)
}
