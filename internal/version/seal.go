package version

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/cockroachdb/errors"
	"github.com/mr-tron/base58"

	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/model"
)

var (
	// ErrNotSealed is returned by VerifySeal for a node without a human signature.
	ErrNotSealed = errors.New("node is not sealed")
	// ErrSealBroken means the content changed after it was signed.
	ErrSealBroken = errors.New("seal broken: content changed after signing")
	// ErrSignatureInvalid means a cryptographic seal does not verify.
	ErrSignatureInvalid = errors.New("seal signature invalid")
)

// ComputeSealHash returns the stable hash of {id, type, content}.
// Metadata is excluded so pinning or re-stamping keeps a seal intact.
func ComputeSealHash(n model.Node) (string, error) {
	if n.Content == nil {
		return "", errors.Newf("node %s has no content", n.ID)
	}
	h, err := ir.ComputeStableHash(map[string]any{
		"id":      n.ID,
		"type":    string(n.Type()),
		"content": n.Content,
	})
	if err != nil {
		return "", errors.Wrapf(err, "seal hash for node %s", n.ID)
	}
	return h, nil
}

// Seal attaches an organic signature by signerID and re-stamps n as its successor.
func (f *Factory) Seal(n model.Node, signerID string) (model.Node, error) {
	if signerID == "" {
		return model.Node{}, errors.New("signer id is required")
	}
	h, err := ComputeSealHash(n)
	if err != nil {
		return model.Node{}, err
	}
	out := n.Clone()
	out.Metadata.HumanSignature = &model.HumanSignature{
		SignerID:      signerID,
		Timestamp:     f.now().UTC(),
		HashAtSigning: h,
		Method:        model.SignatureOrganic,
	}
	return f.Revise(out)
}

// SealCryptographic signs the seal hash with key and records the signer as a did:key.
func (f *Factory) SealCryptographic(n model.Node, key ed25519.PrivateKey) (model.Node, error) {
	if len(key) != ed25519.PrivateKeySize {
		return model.Node{}, errors.Newf("ed25519 private key has length %d", len(key))
	}
	h, err := ComputeSealHash(n)
	if err != nil {
		return model.Node{}, err
	}
	pub := key.Public().(ed25519.PublicKey)
	out := n.Clone()
	out.Metadata.HumanSignature = &model.HumanSignature{
		SignerID:      EncodeDIDKey(pub),
		Timestamp:     f.now().UTC(),
		HashAtSigning: h,
		Method:        model.SignatureCryptographic,
		Signature:     hex.EncodeToString(ed25519.Sign(key, []byte(h))),
	}
	return f.Revise(out)
}

// VerifySeal checks that n's seal still matches its content and, for
// cryptographic seals, that the signature verifies against the signer's key.
// Repair is never attempted.
func VerifySeal(n model.Node) error {
	sig := n.Metadata.HumanSignature
	if sig == nil {
		return ErrNotSealed
	}
	h, err := ComputeSealHash(n)
	if err != nil {
		return err
	}
	if h != sig.HashAtSigning {
		return errors.Wrapf(ErrSealBroken, "node %s signed by %s", n.ID, sig.SignerID)
	}
	if sig.Method != model.SignatureCryptographic {
		return nil
	}

	pub, err := DecodeDIDKey(sig.SignerID)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "node %s", n.ID), ErrSignatureInvalid)
	}
	raw, err := hex.DecodeString(sig.Signature)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "decode signature on node %s", n.ID), ErrSignatureInvalid)
	}
	if !ed25519.Verify(pub, []byte(sig.HashAtSigning), raw) {
		return errors.Wrapf(ErrSignatureInvalid, "node %s from %s", n.ID, sig.SignerID)
	}
	return nil
}

const didKeyPrefix = "did:key:z"

// EncodeDIDKey renders pub as did:key:z + base58btc(0xed 0x01 + pubkey).
func EncodeDIDKey(pub ed25519.PublicKey) string {
	buf := make([]byte, 2+len(pub))
	buf[0] = 0xed
	buf[1] = 0x01
	copy(buf[2:], pub)
	return didKeyPrefix + base58.Encode(buf)
}

// DecodeDIDKey extracts the ed25519 public key from a did:key:z identifier.
func DecodeDIDKey(did string) (ed25519.PublicKey, error) {
	if len(did) < len(didKeyPrefix) || did[:len(didKeyPrefix)] != didKeyPrefix {
		return nil, errors.Newf("invalid did:key format: %s", did)
	}
	decoded, err := base58.Decode(did[len(didKeyPrefix):])
	if err != nil {
		return nil, errors.Wrapf(err, "base58-decode did:key %s", did)
	}
	if len(decoded) != 2+ed25519.PublicKeySize {
		return nil, errors.Newf("unexpected decoded length %d for did:key %s", len(decoded), did)
	}
	if decoded[0] != 0xed || decoded[1] != 0x01 {
		return nil, errors.Newf("unexpected multicodec prefix [%x %x] for did:key %s", decoded[0], decoded[1], did)
	}
	return ed25519.PublicKey(decoded[2:]), nil
}
