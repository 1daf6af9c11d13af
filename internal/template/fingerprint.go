// Tilegate - CARTO Map Tile API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tilegate

package template

import (
	"encoding/hex"
	"fmt"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/blake2b"
)

// shortHashLen is the length of the short, human-visible hash used in
// surrogate keys and cache-busting identifiers.
const shortHashLen = 8

// Fingerprint computes a deterministic content hash of a document: stable
// JSON serialization (struct fields in declaration order, map keys sorted)
// followed by BLAKE2b-256, hex encoded.
//
// The store uses fingerprints to detect no-op updates; the HTTP layer embeds
// the short form in generated layergroup identifiers so every template
// version gets a distinct, cache-busting id.
func Fingerprint(doc interface{}) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ShortFingerprint returns the first shortHashLen characters of the
// document's fingerprint.
func ShortFingerprint(doc interface{}) (string, error) {
	fp, err := Fingerprint(doc)
	if err != nil {
		return "", err
	}
	return fp[:shortHashLen], nil
}

// ShortHash hashes an arbitrary string to the short hex form. Surrogate keys
// for a named map are derived from "owner:name" through this function.
func ShortHash(s string) string {
	sum := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:shortHashLen]
}
