package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// FixedFormatWriter rewrites zerolog JSON lines into fixed-width columns,
// which are easier to follow with tail on the controller host:
//
//	2026-10-16 12:00:00.000 [INF] [fan         ] Set fan speed to 50% for CPU temperature 45°C speed=50
//	2026-10-16 12:00:10.004 [ERR] [ipmi        ] ipmitool failed exit_code=1
type FixedFormatWriter struct {
	w io.Writer
}

// NewFixedFormatWriter wraps w.
func NewFixedFormatWriter(w io.Writer) *FixedFormatWriter {
	return &FixedFormatWriter{w: w}
}

const (
	componentWidth = 12
	timestampWidth = 23
)

var levelTags = map[string]string{
	zerolog.LevelTraceValue: "TRC",
	zerolog.LevelDebugValue: "DBG",
	zerolog.LevelInfoValue:  "INF",
	zerolog.LevelWarnValue:  "WRN",
	zerolog.LevelErrorValue: "ERR",
	zerolog.LevelFatalValue: "FTL",
	zerolog.LevelPanicValue: "PNC",
}

func (f *FixedFormatWriter) Write(p []byte) (int, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(p, &fields); err != nil {
		return f.w.Write(p)
	}

	ts := formatTimestamp(take(fields, zerolog.TimestampFieldName))
	lvl, ok := levelTags[take(fields, zerolog.LevelFieldName)]
	if !ok {
		lvl = "???"
	}
	comp := take(fields, "component")
	if len(comp) > componentWidth {
		comp = comp[:componentWidth]
	}
	msg := take(fields, zerolog.MessageFieldName)
	delete(fields, zerolog.CallerFieldName)

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%-*s] %s", ts, lvl, componentWidth, comp, msg)
	if extra := formatExtra(fields); extra != "" {
		b.WriteByte(' ')
		b.WriteString(extra)
	}
	b.WriteByte('\n')

	_, err := io.WriteString(f.w, b.String())
	return len(p), err
}

// take removes key from fields and returns it as a string.
func take(fields map[string]interface{}, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	delete(fields, key)
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// formatTimestamp turns an RFC3339 timestamp into "2006-01-02 15:04:05.000"
// without the zone, padded to a fixed width.
func formatTimestamp(ts string) string {
	if len(ts) < 19 {
		return ts + strings.Repeat(" ", timestampWidth-len(ts))
	}

	out := strings.Replace(ts, "T", " ", 1)
	if idx := strings.IndexAny(out[19:], "Z+-"); idx >= 0 {
		out = out[:19+idx]
	}

	dot := strings.LastIndexByte(out, '.')
	switch {
	case dot < 0:
		out += ".000"
	case len(out)-dot-1 > 3:
		out = out[:dot+4]
	default:
		out += strings.Repeat("0", 3-(len(out)-dot-1))
	}

	if len(out) < timestampWidth {
		out += strings.Repeat(" ", timestampWidth-len(out))
	}
	return out[:timestampWidth]
}

// formatExtra renders the remaining fields as sorted key=value pairs.
func formatExtra(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		s := fmt.Sprint(fields[k])
		if strings.ContainsAny(s, " \t\n\"") {
			s = fmt.Sprintf("%q", s)
		}
		parts = append(parts, k+"="+s)
	}
	return strings.Join(parts, " ")
}
