package api

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// Headers of a signed request. The signature is a 65-byte secp256k1 signature over RequestDigest
// made by the key behind CallerHeader.
const (
	SignatureHeader = "X-Caller-Signature"
	TimestampHeader = "X-Caller-Timestamp"
	NonceHeader     = "X-Caller-Nonce"
)

const (
	signatureWindow = 5 * time.Minute
	maxSignedBody   = 1 << 20
)

var (
	errMissingSignature = errors.New("missing or malformed caller signature")
	errStaleRequest     = errors.New("request timestamp outside the accepted window")
	errReplayedRequest  = errors.New("request nonce already used")
	errSignerMismatch   = errors.New("signature does not match caller")
)

// RequestDigest is the hash a caller signs: method, path, timestamp and nonce, then the body hash
func RequestDigest(method, path, timestamp, nonce string, body []byte) common.Hash {
	head := strings.Join([]string{method, path, timestamp, nonce}, "\n")
	return crypto.Keccak256Hash([]byte(head), crypto.Keccak256(body))
}

// SignRequest sets the caller headers on req. body must be exactly what req sends.
func SignRequest(req *http.Request, key *ecdsa.PrivateKey, body []byte, now time.Time) error {
	timestamp := strconv.FormatInt(now.Unix(), 10)
	nonce := uuid.New().String()

	sig, err := crypto.Sign(RequestDigest(req.Method, req.URL.Path, timestamp, nonce, body).Bytes(), key)
	if err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	req.Header.Set(CallerHeader, crypto.PubkeyToAddress(key.PublicKey).Hex())
	req.Header.Set(SignatureHeader, hexutil.Encode(sig))
	req.Header.Set(TimestampHeader, timestamp)
	req.Header.Set(NonceHeader, nonce)
	return nil
}

// verifyCaller returns the address that signed r. The nonce is only consumed once the signature checks out.
func (s *Server) verifyCaller(r *http.Request, body []byte, now time.Time) (common.Address, error) {
	claimed := r.Header.Get(CallerHeader)
	if !common.IsHexAddress(claimed) {
		return common.Address{}, fmt.Errorf("%s must be a hex address", CallerHeader)
	}

	sig, err := hexutil.Decode(r.Header.Get(SignatureHeader))
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, errMissingSignature
	}
	// Wallets produce v as 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	timestamp := r.Header.Get(TimestampHeader)
	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return common.Address{}, errStaleRequest
	}
	if skew := now.Sub(time.Unix(unix, 0)); skew > signatureWindow || skew < -signatureWindow {
		return common.Address{}, errStaleRequest
	}

	nonce := r.Header.Get(NonceHeader)
	if nonce == "" {
		return common.Address{}, errMissingSignature
	}

	digest := RequestDigest(r.Method, r.URL.Path, timestamp, nonce, body)
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, errMissingSignature
	}
	signer := crypto.PubkeyToAddress(*pub)
	if signer != common.HexToAddress(claimed) {
		return common.Address{}, errSignerMismatch
	}

	if !s.nonces.claim(signer, nonce, now) {
		return common.Address{}, errReplayedRequest
	}
	return signer, nil
}

// nonceCache remembers used nonces until their request could no longer pass the timestamp check
type nonceCache struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func newNonceCache() *nonceCache {
	return &nonceCache{seen: make(map[string]time.Time)}
}

// claim records the nonce and reports whether it was unused
func (c *nonceCache) claim(caller common.Address, nonce string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, expires := range c.seen {
		if now.After(expires) {
			delete(c.seen, key)
		}
	}

	key := caller.Hex() + "/" + nonce
	if _, used := c.seen[key]; used {
		return false
	}
	c.seen[key] = now.Add(2 * signatureWindow)
	return true
}
