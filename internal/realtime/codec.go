package realtime

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/spec-kit/isp-support/internal/events"
)

// encMode writes Core Deterministic CBOR (RFC 8949 §4.2) so that the same
// event always produces the same bytes on the relay channel.
var encMode cbor.EncMode

// decMode accepts standard CBOR and ignores unknown fields. Deltas decode into
// map[string]any because the receiving instance only re-serialises them.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("realtime: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("realtime: CBOR decoder initialization failed: " + err.Error())
	}
}

// envelope is the unit written to the relay channel.
type envelope struct {
	Origin string       `cbor:"origin"`
	Event  events.Event `cbor:"event"`
}

func encodeEnvelope(origin string, event events.Event) ([]byte, error) {
	return encMode.Marshal(envelope{Origin: origin, Event: event})
}

func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	err := decMode.Unmarshal(data, &env)
	return env, err
}
