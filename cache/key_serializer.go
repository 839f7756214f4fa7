package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// MaxSegmentLength is the longest segment kept verbatim. Longer segments are
// replaced by their xxhash digest so keys stay bounded.
const MaxSegmentLength = 64

// defaultKeySerializer joins a namespace and its parts with KeySeparator.
type defaultKeySerializer struct {
	maxSegment int
}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{maxSegment: MaxSegmentLength}
}

// SerializeKey builds namespace::part1::part2. The same inputs always produce
// the same key.
func (s *defaultKeySerializer) SerializeKey(namespace string, parts ...any) string {
	if len(parts) == 0 {
		return namespace
	}

	segments := make([]string, 0, len(parts)+1)
	segments = append(segments, namespace)
	for _, part := range parts {
		segments = append(segments, s.bound(s.serializeValue(part)))
	}

	return strings.Join(segments, KeySeparator)
}

// Prefix returns the key prefix shared by every key in namespace.
func Prefix(namespace string) string {
	return namespace + KeySeparator
}

func (s *defaultKeySerializer) bound(segment string) string {
	if len(segment) <= s.maxSegment && !strings.Contains(segment, KeySeparator) {
		return segment
	}
	return fmt.Sprintf("h:%016x", xxhash.Sum64String(segment))
}

func (s *defaultKeySerializer) serializeValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return s.serializeValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "slice:nil"
		}
		items := make([]string, rv.Len())
		for i := range items {
			items[i] = s.serializeValue(rv.Index(i).Interface())
		}
		return fmt.Sprintf("[%s]", strings.Join(items, ","))
	case reflect.Func, reflect.Chan:
		return fmt.Sprintf("%s:%p", rv.Kind(), v)
	case reflect.String:
		return rv.String()
	}

	if rv.Kind() <= reflect.Complex128 {
		return fmt.Sprintf("%v", v)
	}

	return s.jsonFallback(v)
}

// jsonFallback serializes maps and structs through encoding/json, which sorts
// map keys, so equal values produce equal segments.
func (s *defaultKeySerializer) jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("fallback:%T", v)
	}
	return "json:" + string(data)
}
