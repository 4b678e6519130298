// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Campus Diaries Contributors

package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"io"

	"github.com/samber/oops"
)

// SealedCodec turns session documents into the opaque payload a Store keeps,
// encrypting them with AES-GCM. The store key is bound as
// additional data, so a payload copied under another key fails to open.
type SealedCodec struct {
	aead cipher.AEAD
}

// NewSealedCodec builds a codec from a 16, 24 or 32 byte AES key.
func NewSealedCodec(key []byte) (*SealedCodec, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, oops.Code("SESSION_CODEC_INIT_FAILED").With("operation", "new cipher").Wrap(err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, oops.Code("SESSION_CODEC_INIT_FAILED").With("operation", "new gcm").Wrap(err)
	}
	return &SealedCodec{aead: aead}, nil
}

// Encode returns nonce || ciphertext of the JSON document.
func (c *SealedCodec) Encode(key string, doc document) ([]byte, error) {
	plaintext, err := json.Marshal(doc)
	if err != nil {
		return nil, oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, oops.Code("SESSION_ENCODE_FAILED").With("operation", "read nonce").Wrap(err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, []byte(key)), nil
}

// Decode opens a payload produced by Encode under the same key.
func (c *SealedCodec) Decode(key string, payload []byte) (document, error) {
	nonceSize := c.aead.NonceSize()
	if len(payload) < nonceSize {
		return document{}, oops.Code("SESSION_DECODE_FAILED").Errorf("sealed payload is too short")
	}

	plaintext, err := c.aead.Open(nil, payload[:nonceSize], payload[nonceSize:], []byte(key))
	if err != nil {
		return document{}, oops.Code("SESSION_DECODE_FAILED").With("operation", "decrypt").Wrap(err)
	}

	var doc document
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return document{}, oops.Code("SESSION_DECODE_FAILED").With("operation", "unmarshal").Wrap(err)
	}
	return doc, nil
}
