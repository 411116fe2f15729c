package middleware

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Tk21111/whiteboard_sync/config"
)

var ErrNoType = errors.New("envelope has no type")

func DecodeEnvelope(msg []byte) (config.Envelope, error) {
	var env config.Envelope

	if err := json.Unmarshal(msg, &env); err != nil {
		return config.Envelope{}, err
	}
	if env.Type == "" {
		return config.Envelope{}, ErrNoType
	}

	return env, nil
}

// EncodeEnvelope marshals data as the payload of a typ frame. A nil data
// produces a frame without a data field.
func EncodeEnvelope(typ string, data any) ([]byte, error) {
	env := config.Envelope{Type: typ}

	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", typ, err)
		}
		env.Data = b
	}

	return json.Marshal(env)
}

// DecodeData unmarshals an envelope payload into v.
func DecodeData(env config.Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s: missing data", env.Type)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%s: %w", env.Type, err)
	}
	return nil
}
