package dri

import (
	"fmt"
	"time"

	"github.com/dronetag/rider-connect-demo/pkg/odid"
)

const (
	DecoderODID = "odid"
	DecoderRaw  = "raw"
)

// Decoder turns one complete DriMessage payload into a Record. A nil Record
// with a nil error means the message carried nothing to report.
type Decoder interface {
	Decode(payload []byte) (*Record, error)
}

func NewDecoder(kind string) (Decoder, error) {
	switch kind {
	case DecoderODID, "":
		return ODIDDecoder{}, nil
	case DecoderRaw:
		return RawDecoder{}, nil
	default:
		return nil, fmt.Errorf("dri: unknown decoder %q", kind)
	}
}

// ODIDDecoder reports messages with an ODID payload and decodes the payload.
// A payload that fails to decode is still reported with its raw bytes.
type ODIDDecoder struct{}

func (ODIDDecoder) Decode(payload []byte) (*Record, error) {
	m, err := Unmarshal(payload)
	if err != nil {
		return nil, err
	}
	if !m.HasODIDPayload() {
		return nil, nil
	}

	info, err := m.ReaderInfo()
	if err != nil {
		return nil, err
	}

	encoded := m.EncodedMessage()
	rec := newRecord(info, encoded)
	if msg, err := odid.Decode(encoded); err != nil {
		rec.ODIDError = err.Error()
	} else {
		rec.ODID = msg
	}
	return rec, nil
}

// RawDecoder reports every message as its JSON dump without decoding the
// ODID payload.
type RawDecoder struct{}

func (RawDecoder) Decode(payload []byte) (*Record, error) {
	m, err := Unmarshal(payload)
	if err != nil {
		return nil, err
	}

	dump, err := m.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("dri: marshal json: %w", err)
	}

	rec := &Record{ReceivedAt: time.Now(), ReceiverID: m.ReceiverID(), MessageType: odid.MessageTypeInvalid}
	if info, err := m.ReaderInfo(); err == nil {
		rec = newRecord(info, m.EncodedMessage())
	}
	rec.Message = dump
	return rec, nil
}
