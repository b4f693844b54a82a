package crypto

import (
	"bytes"
	stdcrypto "crypto"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"strings"
)

// VerifyWebhookSignature reports whether signatureB64 is a valid
// RSA-SHA512 (PKCS#1 v1.5) signature over the canonical JSON form of payload.
// Every failure, including malformed keys or signatures, yields false.
func VerifyWebhookSignature(publicKeyPEM, signatureB64 string, payload any) bool {
	pub, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return false
	}
	return verifyWithKey(pub, signatureB64, payload)
}

func verifyWithKey(pub *rsa.PublicKey, signatureB64 string, payload any) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signatureB64))
	if err != nil || len(sig) == 0 {
		return false
	}

	msg, err := CanonicalPayload(payload)
	if err != nil {
		return false
	}

	digest := sha512.Sum512(msg)
	return rsa.VerifyPKCS1v15(pub, stdcrypto.SHA512, digest[:], sig) == nil
}

// CanonicalPayload returns the bytes the platform signs for a webhook body.
// Raw JSON ([]byte, json.RawMessage or string) is compacted with key order
// preserved. A string that is not JSON is signed as a JSON string literal.
// Other values are marshalled without HTML escaping.
func CanonicalPayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return compactJSON(v)
	case json.RawMessage:
		return compactJSON(v)
	case string:
		if json.Valid([]byte(v)) {
			return compactJSON([]byte(v))
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("crypto: marshal payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func compactJSON(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("crypto: compact payload: %w", err)
	}
	return buf.Bytes(), nil
}

// ParsePublicKey decodes an RSA public key from PEM. PKIX ("PUBLIC KEY"),
// PKCS#1 ("RSA PUBLIC KEY") and certificate blocks are accepted. Keys stored
// in env vars with literal "\n" sequences are unescaped first.
func ParsePublicKey(pemText string) (*rsa.PublicKey, error) {
	pemText = strings.ReplaceAll(pemText, `\n`, "\n")

	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("crypto: no PEM block found in public key")
	}

	switch block.Type {
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("crypto: parse pkcs1 public key: %w", err)
		}
		return key, nil
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("crypto: parse certificate: %w", err)
		}
		key, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("crypto: expected RSA public key, got %T", cert.PublicKey)
		}
		return key, nil
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		// Try PKCS1 as fallback.
		pkcs1Key, pkcs1Err := x509.ParsePKCS1PublicKey(block.Bytes)
		if pkcs1Err != nil {
			return nil, fmt.Errorf("crypto: parse public key: %w (pkcs1: %v)", err, pkcs1Err)
		}
		return pkcs1Key, nil
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("crypto: expected RSA public key, got %T", parsed)
	}
	return key, nil
}

// WebhookVerifier holds a parsed public key so repeated verifications skip
// PEM decoding.
type WebhookVerifier struct {
	key *rsa.PublicKey
}

// NewWebhookVerifier parses publicKeyPEM once.
func NewWebhookVerifier(publicKeyPEM string) (*WebhookVerifier, error) {
	key, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}
	return &WebhookVerifier{key: key}, nil
}

// Verify has the same contract as VerifyWebhookSignature.
func (v *WebhookVerifier) Verify(signatureB64 string, payload any) bool {
	if v == nil || v.key == nil {
		return false
	}
	return verifyWithKey(v.key, signatureB64, payload)
}
