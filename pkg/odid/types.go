package odid

import (
	"fmt"
	"time"
)

// MessageSize is the length of every single ODID message.
const MessageSize = 25

// MessageType is the high nibble of a message's first byte.
type MessageType uint8

const (
	MessageTypeBasicID    MessageType = 0x0
	MessageTypeLocation   MessageType = 0x1
	MessageTypeAuth       MessageType = 0x2
	MessageTypeSelfID     MessageType = 0x3
	MessageTypeSystem     MessageType = 0x4
	MessageTypeOperatorID MessageType = 0x5
	MessageTypePacked     MessageType = 0xF
	MessageTypeInvalid    MessageType = 0xFF
)

// TypeOf returns the message type announced by header, the first byte of a
// message. Nibbles without a defined message map to MessageTypeInvalid.
func TypeOf(header byte) MessageType {
	switch t := MessageType(header >> 4); t {
	case MessageTypeBasicID, MessageTypeLocation, MessageTypeAuth, MessageTypeSelfID,
		MessageTypeSystem, MessageTypeOperatorID, MessageTypePacked:
		return t
	default:
		return MessageTypeInvalid
	}
}

func (t MessageType) String() string {
	switch t {
	case MessageTypeBasicID:
		return "BASIC_ID"
	case MessageTypeLocation:
		return "LOCATION"
	case MessageTypeAuth:
		return "AUTH"
	case MessageTypeSelfID:
		return "SELF_ID"
	case MessageTypeSystem:
		return "SYSTEM"
	case MessageTypeOperatorID:
		return "OPERATOR_ID"
	case MessageTypePacked:
		return "PACKED"
	default:
		return "INVALID"
	}
}

func (t MessageType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Epoch is the zero of every 32 bit ODID timestamp.
var Epoch = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)

type enum struct {
	value uint8
	names []string
}

func (e enum) String() string {
	if int(e.value) < len(e.names) {
		return e.names[e.value]
	}
	return fmt.Sprintf("Unknown(%d)", e.value)
}

var (
	idTypeNames = []string{"None", "SerialNumber", "CAARegistrationID", "UTMAssignedUUID", "SpecificSessionID"}
	uaTypeNames = []string{"None", "Aeroplane", "HelicopterOrMultirotor", "Gyroplane", "HybridLift", "Ornithopter",
		"Glider", "Kite", "FreeBalloon", "CaptiveBalloon", "Airship", "FreeFallParachute", "Rocket",
		"TetheredPoweredAircraft", "GroundObstacle", "Other"}
	statusNames        = []string{"Undeclared", "Ground", "Airborne", "Emergency", "RemoteIDSystemFailure"}
	heightTypeNames    = []string{"AboveTakeoff", "AGL"}
	authTypeNames      = []string{"None", "UASIDSignature", "OperatorIDSignature", "MessageSetSignature", "NetworkRemoteID", "SpecificMethod"}
	descTypeNames      = []string{"Text", "Emergency", "ExtendedStatus"}
	operatorLocNames   = []string{"TakeOff", "LiveGNSS", "Fixed"}
	classificationName = []string{"Undeclared", "EU"}
)

type IDType uint8

func (v IDType) String() string               { return enum{uint8(v), idTypeNames}.String() }
func (v IDType) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

type UAType uint8

func (v UAType) String() string               { return enum{uint8(v), uaTypeNames}.String() }
func (v UAType) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

type Status uint8

func (v Status) String() string               { return enum{uint8(v), statusNames}.String() }
func (v Status) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

type HeightType uint8

func (v HeightType) String() string               { return enum{uint8(v), heightTypeNames}.String() }
func (v HeightType) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

type AuthType uint8

func (v AuthType) String() string               { return enum{uint8(v), authTypeNames}.String() }
func (v AuthType) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

type DescType uint8

func (v DescType) String() string               { return enum{uint8(v), descTypeNames}.String() }
func (v DescType) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

type OperatorLocationType uint8

func (v OperatorLocationType) String() string { return enum{uint8(v), operatorLocNames}.String() }
func (v OperatorLocationType) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

type ClassificationType uint8

func (v ClassificationType) String() string { return enum{uint8(v), classificationName}.String() }
func (v ClassificationType) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}
