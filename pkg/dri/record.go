package dri

import (
	"encoding/json"
	"time"

	"github.com/dronetag/rider-connect-demo/pkg/odid"
)

// Record is one decoded broadcast as handed to the outputs.
type Record struct {
	ReceivedAt  time.Time        `json:"received_at"`
	MAC         string           `json:"mac,omitempty"`
	Counter     int32            `json:"counter"`
	RSSI        int32            `json:"rssi"`
	Tech        Tech             `json:"tech,omitempty"`
	ReceiverID  uint32           `json:"recv_id"`
	MessageType odid.MessageType `json:"msg_type"`
	ODID        odid.Message     `json:"odid"`
	ODIDRaw     []byte           `json:"odid_raw,omitempty"`
	ODIDError   string           `json:"odid_error,omitempty"`
	Message     json.RawMessage  `json:"message,omitempty"`
}

func newRecord(info ReaderInfo, encoded []byte) *Record {
	return &Record{
		ReceivedAt:  time.Now(),
		MAC:         info.MAC.String(),
		Counter:     info.Counter,
		RSSI:        info.RSSI,
		Tech:        info.Tech,
		ReceiverID:  info.ReceiverID,
		MessageType: info.MessageType,
		ODIDRaw:     encoded,
	}
}
