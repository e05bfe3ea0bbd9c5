// Package odid decodes ASTM F3411 / ASD-STAN 4709-002 Open Drone ID messages
// as broadcast over Bluetooth and Wi-Fi.
package odid

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrShortMessage = errors.New("odid: message shorter than 25 bytes")
	ErrUnknownType  = errors.New("odid: unknown message type")
	ErrBadPack      = errors.New("odid: malformed message pack")
)

// Message is any decoded ODID message.
type Message interface {
	Type() MessageType
}

// Header is shared by every message.
type Header struct {
	MessageType     MessageType `json:"message_type"`
	ProtocolVersion uint8       `json:"protocol_version"`
}

func (h Header) Type() MessageType { return h.MessageType }

type BasicID struct {
	Header
	IDType IDType `json:"id_type"`
	UAType UAType `json:"ua_type"`
	UASID  string `json:"uas_id"`
}

// Location is the position and vector of the aircraft. TimeStamp counts
// seconds after the full hour.
type Location struct {
	Header
	Status          Status     `json:"status"`
	HeightType      HeightType `json:"height_type"`
	Direction       float64    `json:"direction"`
	SpeedHorizontal float64    `json:"speed_horizontal"`
	SpeedVertical   float64    `json:"speed_vertical"`
	Latitude        float64    `json:"latitude"`
	Longitude       float64    `json:"longitude"`
	AltitudeBaro    float64    `json:"altitude_baro"`
	AltitudeGeo     float64    `json:"altitude_geo"`
	Height          float64    `json:"height"`
	HorizAccuracy   uint8      `json:"horiz_accuracy"`
	VertAccuracy    uint8      `json:"vert_accuracy"`
	BaroAccuracy    uint8      `json:"baro_accuracy"`
	SpeedAccuracy   uint8      `json:"speed_accuracy"`
	TimeStamp       float64    `json:"timestamp"`
	TSAccuracy      float64    `json:"timestamp_accuracy"`
}

type Auth struct {
	Header
	AuthType      AuthType   `json:"auth_type"`
	DataPage      uint8      `json:"data_page"`
	LastPageIndex uint8      `json:"last_page_index,omitempty"`
	Length        uint8      `json:"length,omitempty"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
	AuthData      []byte     `json:"auth_data"`
}

type SelfID struct {
	Header
	DescType DescType `json:"desc_type"`
	Desc     string   `json:"desc"`
}

type System struct {
	Header
	OperatorLocationType OperatorLocationType `json:"operator_location_type"`
	ClassificationType   ClassificationType   `json:"classification_type"`
	OperatorLatitude     float64              `json:"operator_latitude"`
	OperatorLongitude    float64              `json:"operator_longitude"`
	AreaCount            uint16               `json:"area_count"`
	AreaRadius           uint16               `json:"area_radius"`
	AreaCeiling          float64              `json:"area_ceiling"`
	AreaFloor            float64              `json:"area_floor"`
	CategoryEU           uint8                `json:"category_eu"`
	ClassEU              uint8                `json:"class_eu"`
	OperatorAltitudeGeo  float64              `json:"operator_altitude_geo"`
	Timestamp            time.Time            `json:"timestamp"`
}

type OperatorID struct {
	Header
	OperatorIDType uint8  `json:"operator_id_type"`
	OperatorID     string `json:"operator_id"`
}

type MessagePack struct {
	Header
	Messages []Message `json:"messages"`
}

// Decode decodes one message, or a message pack and everything inside it.
func Decode(b []byte) (Message, error) {
	if len(b) < MessageSize {
		return nil, fmt.Errorf("%w: got %d", ErrShortMessage, len(b))
	}
	h := Header{MessageType: TypeOf(b[0]), ProtocolVersion: b[0] & 0x0F}

	switch h.MessageType {
	case MessageTypeBasicID:
		return decodeBasicID(h, b), nil
	case MessageTypeLocation:
		return decodeLocation(h, b), nil
	case MessageTypeAuth:
		return decodeAuth(h, b), nil
	case MessageTypeSelfID:
		return SelfID{Header: h, DescType: DescType(b[1]), Desc: text(b[2:25])}, nil
	case MessageTypeSystem:
		return decodeSystem(h, b), nil
	case MessageTypeOperatorID:
		return OperatorID{Header: h, OperatorIDType: b[1], OperatorID: text(b[2:22])}, nil
	case MessageTypePacked:
		pack, err := decodePack(h, b)
		if err != nil {
			return nil, err
		}
		return pack, nil
	default:
		return nil, fmt.Errorf("%w: 0x%X", ErrUnknownType, b[0]>>4)
	}
}

func decodeBasicID(h Header, b []byte) BasicID {
	return BasicID{
		Header: h,
		IDType: IDType(b[1] >> 4),
		UAType: UAType(b[1] & 0x0F),
		UASID:  text(b[2:22]),
	}
}

func decodeLocation(h Header, b []byte) Location {
	ewDirection := (b[1] >> 1) & 0x01
	speedMult := b[1] & 0x01

	direction := float64(b[2])
	if ewDirection == 1 {
		direction += 180
	}

	speed := float64(b[3]) * 0.25
	if speedMult == 1 {
		speed = float64(b[3])*0.75 + 255*0.25
	}

	return Location{
		Header:          h,
		Status:          Status(b[1] >> 4),
		HeightType:      HeightType((b[1] >> 2) & 0x01),
		Direction:       direction,
		SpeedHorizontal: speed,
		SpeedVertical:   float64(int8(b[4])) * 0.5,
		Latitude:        latLon(b[5:9]),
		Longitude:       latLon(b[9:13]),
		AltitudeBaro:    altitude(b[13:15]),
		AltitudeGeo:     altitude(b[15:17]),
		Height:          altitude(b[17:19]),
		VertAccuracy:    b[19] >> 4,
		HorizAccuracy:   b[19] & 0x0F,
		BaroAccuracy:    b[20] >> 4,
		SpeedAccuracy:   b[20] & 0x0F,
		TimeStamp:       float64(binary.LittleEndian.Uint16(b[21:23])) / 10,
		TSAccuracy:      float64(b[23]&0x0F) / 10,
	}
}

func decodeAuth(h Header, b []byte) Auth {
	a := Auth{
		Header:   h,
		AuthType: AuthType(b[1] >> 4),
		DataPage: b[1] & 0x0F,
	}
	if a.DataPage == 0 {
		ts := timestamp(b[4:8])
		a.LastPageIndex = b[2]
		a.Length = b[3]
		a.Timestamp = &ts
		a.AuthData = append([]byte(nil), b[8:25]...)
	} else {
		a.AuthData = append([]byte(nil), b[2:25]...)
	}
	return a
}

func decodeSystem(h Header, b []byte) System {
	return System{
		Header:               h,
		OperatorLocationType: OperatorLocationType(b[1] & 0x03),
		ClassificationType:   ClassificationType((b[1] >> 2) & 0x07),
		OperatorLatitude:     latLon(b[2:6]),
		OperatorLongitude:    latLon(b[6:10]),
		AreaCount:            binary.LittleEndian.Uint16(b[10:12]),
		AreaRadius:           uint16(b[12]) * 10,
		AreaCeiling:          altitude(b[13:15]),
		AreaFloor:            altitude(b[15:17]),
		CategoryEU:           b[17] >> 4,
		ClassEU:              b[17] & 0x0F,
		OperatorAltitudeGeo:  altitude(b[18:20]),
		Timestamp:            timestamp(b[20:24]),
	}
}

func decodePack(h Header, b []byte) (MessagePack, error) {
	size, count := int(b[1]), int(b[2])
	if size != MessageSize {
		return MessagePack{}, fmt.Errorf("%w: message size %d", ErrBadPack, size)
	}
	if len(b) < 3+count*size {
		return MessagePack{}, fmt.Errorf("%w: %d messages need %d bytes, got %d", ErrBadPack, count, 3+count*size, len(b))
	}

	pack := MessagePack{Header: h, Messages: make([]Message, 0, count)}
	for i := 0; i < count; i++ {
		off := 3 + i*size
		sub := b[off : off+size]
		if TypeOf(sub[0]) == MessageTypePacked {
			return MessagePack{}, fmt.Errorf("%w: nested pack at %d", ErrBadPack, i)
		}
		msg, err := Decode(sub)
		if err != nil {
			return MessagePack{}, fmt.Errorf("pack message %d: %w", i, err)
		}
		pack.Messages = append(pack.Messages, msg)
	}
	return pack, nil
}

func latLon(b []byte) float64 {
	return float64(int32(binary.LittleEndian.Uint32(b))) * 1e-7
}

func altitude(b []byte) float64 {
	return float64(binary.LittleEndian.Uint16(b))/2 - 1000
}

func timestamp(b []byte) time.Time {
	return Epoch.Add(time.Duration(binary.LittleEndian.Uint32(b)) * time.Second)
}

func text(b []byte) string {
	return strings.TrimRight(string(b), "\x00 ")
}
