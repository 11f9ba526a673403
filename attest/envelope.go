package attest

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/settleline/earnout/crypto"
)

// Signed provides authentication for service documents exchanged over HTTP,
// such as the identity report.
// Note: the signature covers the serialized object plus the public key to
// prevent key substitution.
type Signed[T any] struct {
	PublicKey crypto.PublicKey `json:"public_key"`
	Signature crypto.Signature `json:"signature"`
	Object    *T               `json:"object"`
}

// NewSigned wraps an object in a signed envelope under the given identity.
func NewSigned[T any](identity *SigningIdentity, obj *T) (*Signed[T], error) {
	if identity == nil {
		return nil, errors.New("signing identity is required")
	}

	serialized, err := SerializeMessage(obj)
	if err != nil {
		return nil, err
	}

	signature, err := identity.Sign(append(serialized, identity.PublicKey()...))
	if err != nil {
		return nil, err
	}

	return &Signed[T]{
		PublicKey: identity.PublicKey(),
		Signature: signature,
		Object:    obj,
	}, nil
}

// UnsafeObject returns the object without signature verification.
func (s *Signed[T]) UnsafeObject() *T {
	return s.Object
}

// Recover verifies the signature and returns the object and signer's public key.
func (s *Signed[T]) Recover() (*T, crypto.PublicKey, error) {
	serialized, err := SerializeMessage(s.Object)
	if err != nil {
		return nil, nil, err
	}

	ok := s.Signature.Verify(s.PublicKey, append(serialized, s.PublicKey...))
	if !ok {
		return nil, nil, errors.New("signature not valid")
	}

	return s.Object, s.PublicKey, nil
}

// DecodeMessage deserializes a message from a JSON reader.
func DecodeMessage[T any](reader io.Reader) (*T, error) {
	var msg T
	err := json.NewDecoder(reader).Decode(&msg)
	return &msg, err
}

// SerializeMessage serializes a message to JSON bytes.
func SerializeMessage[T any](msg *T) ([]byte, error) {
	return json.Marshal(msg)
}
