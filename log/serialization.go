package log

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/reglet-dev/runnable-sdk/domain/entities"
)

// LogMessageWire is the JSON record a guest hands to the host's log_message import.
type LogMessageWire struct {
	Timestamp time.Time            `json:"timestamp"`
	Attrs     []LogAttrWire        `json:"attrs,omitempty"`
	Level     string               `json:"level"`
	Message   string               `json:"message"`
	Context   entities.ContextWire `json:"context"`
}

// LogAttrWire is one attribute, rendered to a string. Type names the slog kind it came
// from ("string", "int64", "uint64", "bool", "float64", "time", "duration", "error",
// "json" or "any").
type LogAttrWire struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// appendAttr renders attr onto dst. Groups are flattened into dotted keys under prefix;
// empty groups and empty attributes are dropped, as slog's own handlers do.
func appendAttr(dst []LogAttrWire, prefix string, attr slog.Attr) []LogAttrWire {
	v := attr.Value.Resolve()
	key := attr.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	}

	if v.Kind() == slog.KindGroup {
		group := prefix
		if attr.Key != "" {
			group = key
		}
		for _, a := range v.Group() {
			dst = appendAttr(dst, group, a)
		}
		return dst
	}
	if attr.Key == "" && v.Any() == nil {
		return dst
	}

	typ, text := renderValue(v)
	return append(dst, LogAttrWire{Key: key, Type: typ, Value: text})
}

// renderValue returns the wire type and string form of a resolved, non-group value.
func renderValue(v slog.Value) (typ, text string) {
	switch v.Kind() {
	case slog.KindString:
		return "string", v.String()
	case slog.KindInt64:
		return "int64", strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return "uint64", strconv.FormatUint(v.Uint64(), 10)
	case slog.KindBool:
		return "bool", strconv.FormatBool(v.Bool())
	case slog.KindFloat64:
		return "float64", strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case slog.KindTime:
		return "time", v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		return "duration", v.Duration().String()
	}

	switch x := v.Any().(type) {
	case nil:
		return "any", "<nil>"
	case error:
		return "error", x.Error()
	case fmt.Stringer:
		return "string", x.String()
	default:
		if data, err := json.Marshal(x); err == nil {
			return "json", string(data)
		}
		return "any", fmt.Sprintf("%v", x)
	}
}
