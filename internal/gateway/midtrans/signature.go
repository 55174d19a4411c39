package midtrans

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// ComputeSignature returns hex(SHA512(orderID + statusCode + grossAmount +
// serverKey)), the signature scheme Midtrans uses for notification payloads.
// The three payload fields must be used verbatim as delivered.
func ComputeSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature compares the supplied signature against the recomputed
// one in constant time.
func VerifySignature(orderID, statusCode, grossAmount, serverKey, signature string) bool {
	expected := ComputeSignature(orderID, statusCode, grossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
