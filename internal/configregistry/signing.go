package configregistry

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/aristath/titan-brain/internal/brain"
)

// canonicalPayload is the exact shape signed: a canonical JSON of
// {id,key,previous_value,new_value,operator_id,action,timestamp}.
// Field order is fixed by struct field order plus Go's stable json.Marshal
// output for a struct (unlike a map, this never reorders keys between
// runs), which is what makes the signature reproducible.
type canonicalPayload struct {
	ID            string      `json:"id"`
	Key           string      `json:"key"`
	PreviousValue interface{} `json:"previous_value"`
	NewValue      interface{} `json:"new_value"`
	OperatorID    string      `json:"operator_id"`
	Action        string      `json:"action"`
	Timestamp     int64       `json:"timestamp"`
}

// sign computes HMAC_SHA256(secret, canonical(receipt\signature)) and
// returns it hex-encoded.
func sign(secret []byte, rc brain.Receipt) (string, error) {
	payload := canonicalPayload{
		ID:            rc.ID,
		Key:           rc.Key,
		PreviousValue: rc.PreviousValue,
		NewValue:      rc.NewValue,
		OperatorID:    rc.OperatorID,
		Action:        string(rc.Action),
		Timestamp:     rc.Timestamp,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal canonical receipt payload: %w", err)
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(raw)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether a receipt's signature matches the secret. Exposed
// so any observer holding the secret can independently verify the audit
// trail — the receipt is the only audit source for a config change.
func Verify(secret []byte, rc brain.Receipt) (bool, error) {
	expected, err := sign(secret, rc)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(rc.Signature)), nil
}
