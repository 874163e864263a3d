package history

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Marshal encodes h in the persisted layout: a pretty-printed JSON array
// with a trailing newline. A nil history encodes as [].
func Marshal(h History) ([]byte, error) {
	if h == nil {
		h = History{}
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	return append(data, '\n'), nil
}

// Unmarshal decodes a persisted history document. Empty input is an empty history.
func Unmarshal(data []byte) (History, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return History{}, nil
	}
	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	if h == nil {
		h = History{}
	}
	return h, nil
}
