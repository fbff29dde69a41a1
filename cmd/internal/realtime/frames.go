package realtime

import "encoding/json"

// Frame types.
const (
	TypeMessageSend = "message.send"
	TypeMessageNew  = "message.new"
	TypeError       = "error"
)

// inboundFrame is what clients send.
type inboundFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Frame is what the server sends.
type Frame struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func encodeFrame(f Frame) []byte {
	b, err := json.Marshal(f)
	if err != nil {
		return nil
	}
	return b
}
