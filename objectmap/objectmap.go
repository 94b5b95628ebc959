// Package objectmap decodes flat field/value replies (HGETALL and friends)
// into Go structs and maps using mapstructure.
//
// Values arrive as raw bytes. They are converted to the target field type
// with weak typing, so "42" fills an int field and "1" fills a bool.
// time.Duration fields accept Go duration strings and time.Time fields
// accept RFC 3339 timestamps.
//
//	type Session struct {
//	    User    string        `redis:"user"`
//	    Hits    int           `redis:"hits"`
//	    TTL     time.Duration `redis:"ttl"`
//	}
//
//	var s Session
//	err := objectmap.New(objectmap.Options{}).Deserialize(fields, &s)
package objectmap

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/pior/redis/resp"
)

// DefaultTagName is the struct tag consulted when Options.TagName is empty.
const DefaultTagName = "redis"

// MatchFunc reports whether a reply field name matches a struct field name
// (or its tag value).
type MatchFunc func(field, member string) bool

// MatchExact requires the names to be identical.
func MatchExact(field, member string) bool { return field == member }

// MatchFold compares the names case-insensitively.
func MatchFold(field, member string) bool { return strings.EqualFold(field, member) }

// MatchSnake ignores case and underscores, so user_name matches UserName.
func MatchSnake(field, member string) bool {
	return strings.EqualFold(strings.ReplaceAll(field, "_", ""), strings.ReplaceAll(member, "_", ""))
}

type Options struct {
	TagName string

	// MatchName defaults to MatchFold.
	MatchName MatchFunc

	// ErrorUnused fails the decode when the reply has a field with no
	// matching member.
	ErrorUnused bool

	// ErrorUnset fails the decode when a member receives no field.
	ErrorUnset bool

	// TimeLayout is used for time.Time members. Defaults to time.RFC3339Nano.
	TimeLayout string
}

// Decoder implements resp.Deserializer.
type Decoder struct {
	opts Options
}

var _ resp.Deserializer = (*Decoder)(nil)

func New(opts Options) *Decoder {
	if opts.TagName == "" {
		opts.TagName = DefaultTagName
	}
	if opts.MatchName == nil {
		opts.MatchName = MatchFold
	}
	if opts.TimeLayout == "" {
		opts.TimeLayout = time.RFC3339Nano
	}
	return &Decoder{opts: opts}
}

// Deserialize decodes fields into dst, which must be a non-nil pointer to a
// struct or a map. Duplicate fields resolve to the last occurrence.
func (d *Decoder) Deserialize(fields resp.Pairs[[]byte], dst any) error {
	input := make(map[string]any, len(fields))
	for _, kv := range fields {
		input[kv.Key] = kv.Value
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			bytesToStringHook,
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(d.opts.TimeLayout),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      d.opts.ErrorUnused,
		ErrorUnset:       d.opts.ErrorUnset,
		TagName:          d.opts.TagName,
		MatchName:        d.opts.MatchName,
		Result:           dst,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

var bytesType = reflect.TypeOf([]byte(nil))

// bytesToStringHook lets every non-[]byte target go through the string
// conversions of the decoder.
func bytesToStringHook(from, to reflect.Type, data any) (any, error) {
	if from != bytesType || to == bytesType {
		return data, nil
	}
	return string(data.([]byte)), nil
}
