package chat

import (
	"bytes"
	"encoding/json"
)

// WireTime is a timestamp as sent by the chat backend. Depending on the
// producer it arrives as a JSON string ("10:00") or a number (epoch millis);
// both are kept as their text so equal deliveries compare equal.
type WireTime string

func (t *WireTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = WireTime(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*t = WireTime(n.String())
	return nil
}
