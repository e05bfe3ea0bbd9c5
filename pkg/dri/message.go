// Package dri decodes the receiver's DriMessage protobufs, each describing one
// Remote ID broadcast the receiver picked up, into output records.
package dri

import (
	"errors"
	"fmt"
	"net"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/dronetag/rider-connect-demo/pkg/odid"
)

// Tech is the radio technology and format a broadcast was received with.
type Tech string

const (
	TechBluetooth4 Tech = "B4"
	TechBluetooth5 Tech = "B5"
	TechWiFiNAN    Tech = "WN"
	TechWiFiBeacon Tech = "WB"
)

var techFields = map[Tech]protoreflect.Name{
	TechWiFiBeacon: "wifi_beacon_info",
	TechWiFiNAN:    "wifi_nan_info",
	TechBluetooth4: "bluetooth_legacy_info",
	TechBluetooth5: "bluetooth_long_range_info",
}

var ErrNoTransmissionInfo = errors.New("dri: transmission_info is none of " +
	"wifi_beacon_info, wifi_nan_info, bluetooth_legacy_info, bluetooth_long_range_info")

// ReaderInfo describes how and by which receiver chip a broadcast was seen.
type ReaderInfo struct {
	MAC         net.HardwareAddr
	Tech        Tech
	MessageType odid.MessageType
	RSSI        int32
	// Counter deduplicates repeated broadcasts. Technologies without a
	// counter report -1.
	Counter    int32
	ReceiverID uint32
}

// Message is a decoded DriMessage.
type Message struct {
	msg *dynamicpb.Message
}

func Unmarshal(payload []byte) (*Message, error) {
	m := dynamicpb.NewMessage(driMessageDesc)
	if err := proto.Unmarshal(payload, m); err != nil {
		return nil, fmt.Errorf("dri: unmarshal DriMessage: %w", err)
	}
	return &Message{msg: m}, nil
}

// ReceiverID combines the receiving component and receiver type.
func (m *Message) ReceiverID() uint32 {
	rd := m.msg.Get(driMessageDesc.Fields().ByName("receiver_data")).Message()
	component := uint32(rd.Get(receiverDataDesc.Fields().ByName("component_id")).Uint())
	receiverType := uint32(rd.Get(receiverDataDesc.Fields().ByName("receiver_type")).Uint())
	return component<<4 | receiverType
}

func (m *Message) HasODIDPayload() bool {
	return m.msg.Has(driMessageDesc.Fields().ByName("odid_payload"))
}

func (m *Message) odidPayload() protoreflect.Message {
	return m.msg.Get(driMessageDesc.Fields().ByName("odid_payload")).Message()
}

// EncodedMessage returns the raw ODID message bytes, or nil.
func (m *Message) EncodedMessage() []byte {
	if !m.HasODIDPayload() {
		return nil
	}
	return m.odidPayload().Get(odidPayloadDesc.Fields().ByName("encoded_message")).Bytes()
}

// ReaderInfo extracts the reception metadata of the ODID payload.
func (m *Message) ReaderInfo() (ReaderInfo, error) {
	if !m.HasODIDPayload() {
		return ReaderInfo{}, errors.New("dri: message has no odid_payload")
	}
	payload := m.odidPayload()

	info := ReaderInfo{
		MessageType: odid.MessageTypeInvalid,
		Counter:     int32(payload.Get(odidPayloadDesc.Fields().ByName("counter")).Int()),
		ReceiverID:  m.ReceiverID(),
	}
	if encoded := m.EncodedMessage(); len(encoded) > 0 {
		info.MessageType = odid.TypeOf(encoded[0])
	}

	oneof := odidPayloadDesc.Oneofs().ByName("transmission_info")
	field := payload.WhichOneof(oneof)
	if field == nil {
		return ReaderInfo{}, ErrNoTransmissionInfo
	}
	for tech, name := range techFields {
		if field.Name() == name {
			info.Tech = tech
		}
	}

	ti := payload.Get(field).Message()
	info.MAC = net.HardwareAddr(ti.Get(transmissionInfoDesc.Fields().ByName("mac")).Bytes())
	info.RSSI = int32(ti.Get(transmissionInfoDesc.Fields().ByName("rssi")).Int())
	return info, nil
}

// MarshalJSON dumps the message with its proto field names.
func (m *Message) MarshalJSON() ([]byte, error) {
	return protojson.MarshalOptions{UseProtoNames: true}.Marshal(m.msg)
}

// Observation is the content of a DriMessage carrying an ODID payload.
type Observation struct {
	ComponentID  uint32
	ReceiverType uint32
	Tech         Tech
	MAC          []byte
	RSSI         int32
	Counter      int32
	Encoded      []byte
}

// Marshal encodes o the way the receiver does.
func (o Observation) Marshal() ([]byte, error) {
	name, ok := techFields[o.Tech]
	if !ok {
		return nil, fmt.Errorf("dri: unknown tech %q", o.Tech)
	}

	rd := dynamicpb.NewMessage(receiverDataDesc)
	rd.Set(receiverDataDesc.Fields().ByName("component_id"), protoreflect.ValueOfUint32(o.ComponentID))
	rd.Set(receiverDataDesc.Fields().ByName("receiver_type"), protoreflect.ValueOfUint32(o.ReceiverType))

	ti := dynamicpb.NewMessage(transmissionInfoDesc)
	ti.Set(transmissionInfoDesc.Fields().ByName("mac"), protoreflect.ValueOfBytes(o.MAC))
	ti.Set(transmissionInfoDesc.Fields().ByName("rssi"), protoreflect.ValueOfInt32(o.RSSI))

	payload := dynamicpb.NewMessage(odidPayloadDesc)
	payload.Set(odidPayloadDesc.Fields().ByName("encoded_message"), protoreflect.ValueOfBytes(o.Encoded))
	payload.Set(odidPayloadDesc.Fields().ByName("counter"), protoreflect.ValueOfInt32(o.Counter))
	payload.Set(odidPayloadDesc.Fields().ByName(name), protoreflect.ValueOfMessage(ti))

	m := dynamicpb.NewMessage(driMessageDesc)
	m.Set(driMessageDesc.Fields().ByName("receiver_data"), protoreflect.ValueOfMessage(rd))
	m.Set(driMessageDesc.Fields().ByName("odid_payload"), protoreflect.ValueOfMessage(payload))

	return proto.Marshal(m)
}
