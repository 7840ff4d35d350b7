package checkout

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/Niiaks/ticketcore/pkg/constants"
)

const qrMACLength = 16

func qrMAC(secret, orderID, ticketID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + ticketID))
	return hex.EncodeToString(mac.Sum(nil))[:qrMACLength]
}

// SignQR builds the payload encoded in the ticket QR code.
func SignQR(secret, orderID, ticketID string) string {
	return strings.Join([]string{constants.QRPrefix, orderID, ticketID, qrMAC(secret, orderID, ticketID)}, "|")
}

// VerifyQR checks a scanned payload and returns the order and ticket it names.
func VerifyQR(secret, payload string) (orderID, ticketID string, ok bool) {
	parts := strings.Split(payload, "|")
	if len(parts) != 4 || parts[0] != constants.QRPrefix {
		return "", "", false
	}
	want := qrMAC(secret, parts[1], parts[2])
	if !hmac.Equal([]byte(want), []byte(parts[3])) {
		return "", "", false
	}
	return parts[1], parts[2], true
}
