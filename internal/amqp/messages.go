package amqp

import (
	"encoding/json"
	"time"
)

// ScanJobMessage asks the scan worker to extract receipt fields from a
// photo. It carries only the receipt id and photo location; the worker
// fetches current state from the backend before patching.
type ScanJobMessage struct {
	ReceiptID string    `json:"receipt_id"`
	PhotoURL  string    `json:"photo_url"`
	Timestamp time.Time `json:"timestamp"`
}

func NewScanJobMessage(receiptID, photoURL string) *ScanJobMessage {
	return &ScanJobMessage{
		ReceiptID: receiptID,
		PhotoURL:  photoURL,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ScanJobMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ScanJobMessageFromJSON creates a message from JSON bytes.
func ScanJobMessageFromJSON(data []byte) (*ScanJobMessage, error) {
	var msg ScanJobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
