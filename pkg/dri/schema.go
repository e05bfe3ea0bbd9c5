package dri

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// The receiver wraps every observed broadcast in a DriMessage:
//
//	message ReceiverData { uint32 component_id = 1; uint32 receiver_type = 2; }
//	message TransmissionInfo { bytes mac = 1; int32 rssi = 2; }
//	message OdidPayload {
//	  bytes encoded_message = 1;
//	  int32 counter = 2;
//	  oneof transmission_info {
//	    TransmissionInfo wifi_beacon_info = 3;
//	    TransmissionInfo wifi_nan_info = 4;
//	    TransmissionInfo bluetooth_legacy_info = 5;
//	    TransmissionInfo bluetooth_long_range_info = 6;
//	  }
//	}
//	message DriMessage { ReceiverData receiver_data = 1; OdidPayload odid_payload = 2; }
const schemaPackage = "dtproto.receiver"

var (
	driMessageDesc       protoreflect.MessageDescriptor
	receiverDataDesc     protoreflect.MessageDescriptor
	odidPayloadDesc      protoreflect.MessageDescriptor
	transmissionInfoDesc protoreflect.MessageDescriptor
)

func init() {
	fd, err := protodesc.NewFile(schemaFile(), nil)
	if err != nil {
		panic(err)
	}
	msgs := fd.Messages()
	driMessageDesc = msgs.ByName("DriMessage")
	receiverDataDesc = msgs.ByName("ReceiverData")
	odidPayloadDesc = msgs.ByName("OdidPayload")
	transmissionInfoDesc = msgs.ByName("TransmissionInfo")
}

func schemaFile() *descriptorpb.FileDescriptorProto {
	scalar := func(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(name),
			Number: proto.Int32(number),
			Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
			Type:   typ.Enum(),
		}
	}
	message := func(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
		f := scalar(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
		f.TypeName = proto.String("." + schemaPackage + "." + typeName)
		return f
	}
	transmission := func(name string, number int32) *descriptorpb.FieldDescriptorProto {
		f := message(name, number, "TransmissionInfo")
		f.OneofIndex = proto.Int32(0)
		return f
	}

	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("dri_message.proto"),
		Package: proto.String(schemaPackage),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("ReceiverData"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("component_id", 1, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
					scalar("receiver_type", 2, descriptorpb.FieldDescriptorProto_TYPE_UINT32),
				},
			},
			{
				Name: proto.String("TransmissionInfo"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("mac", 1, descriptorpb.FieldDescriptorProto_TYPE_BYTES),
					scalar("rssi", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				},
			},
			{
				Name: proto.String("OdidPayload"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalar("encoded_message", 1, descriptorpb.FieldDescriptorProto_TYPE_BYTES),
					scalar("counter", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					transmission("wifi_beacon_info", 3),
					transmission("wifi_nan_info", 4),
					transmission("bluetooth_legacy_info", 5),
					transmission("bluetooth_long_range_info", 6),
				},
				OneofDecl: []*descriptorpb.OneofDescriptorProto{
					{Name: proto.String("transmission_info")},
				},
			},
			{
				Name: proto.String("DriMessage"),
				Field: []*descriptorpb.FieldDescriptorProto{
					message("receiver_data", 1, "ReceiverData"),
					message("odid_payload", 2, "OdidPayload"),
				},
			},
		},
	}
}
