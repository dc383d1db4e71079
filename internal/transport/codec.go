package transport

import "encoding/json"

// envelope mirrors the teacher's internal.Message[json.RawMessage]: decode
// the type eagerly, leave the payload raw until a handler knows what type
// to unmarshal it into.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func decodeEnvelope(raw []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, err
	}
	return env, nil
}
