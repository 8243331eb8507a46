package source

import (
	"strconv"
	"time"
)

// timeLayouts are the timestamp formats the two domains are known to emit.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime parses a source timestamp. Numeric values are unix
// milliseconds. Unparseable input yields the zero time.
func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}

	return time.Time{}
}

// Timestamp decodes a JSON string or unix-millisecond number into a time.
type Timestamp time.Time

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*t = Timestamp{}
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	*t = Timestamp(ParseTime(s))
	return nil
}

// Time returns the decoded time.
func (t Timestamp) Time() time.Time { return time.Time(t) }
