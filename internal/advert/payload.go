package advert

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/danielpatrickdp/ccs-cadence/internal/mode"
	"github.com/danielpatrickdp/ccs-cadence/internal/pipeline"
)

// ErrMalformedPayload is returned by Decode for truncated or invalid bytes.
var ErrMalformedPayload = errors.New("malformed advertisement payload")

// #region payload

// Field numbers of the manufacturer-data payload.
const (
	fieldMode       protowire.Number = 1
	fieldIntervalMs protowire.Number = 2
	fieldCCSMilli   protowire.Number = 3
	fieldLastClass  protowire.Number = 4
	fieldT          protowire.Number = 5
	fieldErr        protowire.Number = 6
)

// Payload is the compact snapshot carried in the advertisement.
type Payload struct {
	Mode       mode.Mode
	IntervalMs int64
	CCSMilli   uint32 // CCS × 1000, rounded
	LastClass  int    // external id, 12 = Unknown
	T          int64
	Err        string // fault name; encoded as a small code
}

// PayloadFromSnapshot quantizes a snapshot.
func PayloadFromSnapshot(s pipeline.Snapshot) Payload {
	return Payload{
		Mode:       s.Mode,
		IntervalMs: s.IntervalMs,
		CCSMilli:   uint32(math.Round(s.CCS * 1000)),
		LastClass:  s.LastClass.ID(),
		T:          s.T,
		Err:        string(s.Err),
	}
}

// Encode writes p in protobuf wire format. Zero fields are omitted.
func (p Payload) Encode() []byte {
	var b []byte
	b = appendVarint(b, fieldMode, uint64(p.Mode))
	b = appendVarint(b, fieldIntervalMs, uint64(p.IntervalMs))
	b = appendVarint(b, fieldCCSMilli, uint64(p.CCSMilli))
	b = appendVarint(b, fieldLastClass, uint64(p.LastClass))
	b = appendVarint(b, fieldT, protowire.EncodeZigZag(p.T))
	b = appendVarint(b, fieldErr, uint64(mode.Fault(p.Err).Code()))
	return b
}

// Decode parses a payload. Unknown fields are skipped.
func Decode(b []byte) (Payload, error) {
	var p Payload
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Payload{}, fmt.Errorf("%w: tag: %v", ErrMalformedPayload, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType && num <= fieldErr:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Payload{}, fmt.Errorf("%w: field %d: %v", ErrMalformedPayload, num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldMode:
				p.Mode = mode.Mode(v)
			case fieldIntervalMs:
				p.IntervalMs = int64(v)
			case fieldCCSMilli:
				p.CCSMilli = uint32(v)
			case fieldLastClass:
				p.LastClass = int(v)
			case fieldT:
				p.T = protowire.DecodeZigZag(v)
			case fieldErr:
				f, ok := mode.FaultFromCode(v)
				if !ok {
					return Payload{}, fmt.Errorf("%w: fault code %d", ErrMalformedPayload, v)
				}
				p.Err = string(f)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Payload{}, fmt.Errorf("%w: field %d: %v", ErrMalformedPayload, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if p.Mode > mode.Fallback {
		return Payload{}, fmt.Errorf("%w: mode %d", ErrMalformedPayload, p.Mode)
	}
	return p, nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// #endregion payload
