// Package crypto provides operator credential headers, webhook signature
// verification, and at-rest encryption of operator secrets.
package crypto

import (
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/syamai/crypto-payment-mcp/internal/domain"
)

// OperatorAuth holds the credentials used to authenticate direct
// operator-to-platform calls.
type OperatorAuth struct {
	OperatorID string
	Secret     string
}

// NewOperatorAuth validates and returns operator credentials.
func NewOperatorAuth(operatorID, secret string) (*OperatorAuth, error) {
	if operatorID == "" || secret == "" {
		return nil, domain.ErrMissingCredentials
	}
	return &OperatorAuth{OperatorID: operatorID, Secret: secret}, nil
}

// Header returns the X-Operator-Authorization value. It is recomputed on
// every call.
func (a *OperatorAuth) Header() (string, error) {
	return BuildAuthorizationHeader(a.OperatorID, a.Secret)
}

// BuildAuthorizationHeader returns
//
//	"Basic " + base64(hex(sha512(operatorID + ":" + secret)))
//
// The base64 step encodes the lowercase hex text, not the raw digest.
func BuildAuthorizationHeader(operatorID, secret string) (string, error) {
	if operatorID == "" || secret == "" {
		return "", domain.ErrMissingCredentials
	}

	sum := sha512.Sum512([]byte(operatorID + ":" + secret))
	hexDigest := hex.EncodeToString(sum[:])
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(hexDigest)), nil
}

// String returns a redacted representation suitable for logging.
func (a *OperatorAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("OperatorAuth{id=%s, secret=%s}", a.OperatorID, redact(a.Secret))
}
