package dsl

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainRequest = "esfilter/request/v1"
	DomainQuery   = "esfilter/query/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// canonical renders q and NFC-normalizes the text so visually identical
// field names and literals hash the same regardless of composition form.
func canonical(q Query) ([]byte, error) {
	b, err := Marshal(q)
	if err != nil {
		return nil, err
	}
	return norm.NFC.Bytes(b), nil
}

// QueryFingerprint identifies a single query node.
func QueryFingerprint(q Query) (string, error) {
	b, err := canonical(q)
	if err != nil {
		return "", fmt.Errorf("QueryFingerprint: %w", err)
	}
	return hashWithDomain(DomainQuery, b), nil
}

// Fingerprint identifies a compiled (query, post filter) pair.
// Equal pairs always produce equal fingerprints across processes.
func Fingerprint(query, postFilter Query) (string, error) {
	q, err := canonical(query)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: query: %w", err)
	}
	f, err := canonical(postFilter)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: post filter: %w", err)
	}
	data := make([]byte, 0, len(q)+len(f)+1)
	data = append(data, q...)
	data = append(data, 0x00)
	data = append(data, f...)
	return hashWithDomain(DomainRequest, data), nil
}
