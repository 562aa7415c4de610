package oracle

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"megayield/service"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	log "github.com/sirupsen/logrus"
)

// Subjects shared with the remote randomness provider
const (
	SubjectFee      = "oracle.randomness.fee"
	SubjectRequest  = "oracle.randomness.request"
	SubjectCallback = "oracle.randomness.callback"

	CallbackStream = "oracle_callbacks"
)

// MessageBus is the slice of the NATS client the port needs
type MessageBus interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
	Subscribe(subject string, handler func([]byte) error) error
	EnsureStream(streamName string, subjects []string, description string) error
}

type feeReply struct {
	Fee   int64  `json:"fee"`
	Error string `json:"error,omitempty"`
}

type randomnessRequest struct {
	CallerEntropy common.Hash `json:"caller_entropy"`
	Fee           int64       `json:"fee"`
}

type randomnessReply struct {
	RequestID uint64 `json:"request_id"`
	Error     string `json:"error,omitempty"`
	// InsufficientFee is set when the provider refused the fee
	InsufficientFee bool `json:"insufficient_fee,omitempty"`
}

// CallbackMessage is what the provider publishes once a value is ready.
// Signature is the provider's secp256k1 signature over CallbackDigest.
type CallbackMessage struct {
	RequestID   uint64        `json:"request_id"`
	RandomValue common.Hash   `json:"random_value"`
	Signature   hexutil.Bytes `json:"signature"`
}

// CallbackDigest is keccak256(requestID as 32 big-endian bytes ‖ randomValue)
func CallbackDigest(requestID uint64, randomValue common.Hash) common.Hash {
	var id [32]byte
	binary.BigEndian.PutUint64(id[24:], requestID)
	return crypto.Keccak256Hash(id[:], randomValue.Bytes())
}

// SignCallback builds a callback message signed with the provider's key
func SignCallback(key *ecdsa.PrivateKey, requestID uint64, randomValue common.Hash) (CallbackMessage, error) {
	digest := CallbackDigest(requestID, randomValue)
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return CallbackMessage{}, fmt.Errorf("failed to sign callback %d: %w", requestID, err)
	}
	return CallbackMessage{RequestID: requestID, RandomValue: randomValue, Signature: sig}, nil
}

// Signer recovers the address that signed the message
func (m CallbackMessage) Signer() (common.Address, error) {
	if len(m.Signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(m.Signature))
	}
	pub, err := crypto.SigToPub(CallbackDigest(m.RequestID, m.RandomValue).Bytes(), m.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover callback signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// NATSPort talks to a remote randomness provider over NATS.
// Fee and request go through request/reply; results arrive on a durable JetStream subscription
// and are attributed to the address that signed them.
type NATSPort struct {
	bus      MessageBus
	provider common.Address

	mu      sync.RWMutex
	handler service.RandomnessCallback
}

// NewNATSPort creates a port for the provider at the given address
func NewNATSPort(bus MessageBus, provider common.Address) *NATSPort {
	return &NATSPort{bus: bus, provider: provider}
}

func (p *NATSPort) Provider() common.Address {
	return p.provider
}

func (p *NATSPort) OnCallback(handler service.RandomnessCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = handler
}

func (p *NATSPort) RequiredFee(ctx context.Context) (int64, error) {
	data, err := p.bus.Request(ctx, SubjectFee, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to query oracle fee: %w", err)
	}

	var reply feeReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return 0, fmt.Errorf("failed to decode fee reply: %w", err)
	}
	if reply.Error != "" {
		return 0, fmt.Errorf("oracle refused fee query: %s", reply.Error)
	}
	return reply.Fee, nil
}

func (p *NATSPort) Request(ctx context.Context, callerEntropy common.Hash, fee int64) (uint64, error) {
	payload, err := json.Marshal(randomnessRequest{CallerEntropy: callerEntropy, Fee: fee})
	if err != nil {
		return 0, fmt.Errorf("failed to encode randomness request: %w", err)
	}

	data, err := p.bus.Request(ctx, SubjectRequest, payload)
	if err != nil {
		return 0, fmt.Errorf("failed to send randomness request: %w", err)
	}

	var reply randomnessReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return 0, fmt.Errorf("failed to decode randomness reply: %w", err)
	}
	if reply.InsufficientFee {
		return 0, fmt.Errorf("oracle rejected fee %d: %w", fee, service.ErrInsufficientFee)
	}
	if reply.Error != "" {
		return 0, fmt.Errorf("oracle rejected request: %s", reply.Error)
	}

	log.WithFields(log.Fields{
		"requestID": reply.RequestID,
		"fee":       fee,
	}).Debug("Randomness requested over NATS")
	return reply.RequestID, nil
}

// Start ensures the callback stream exists and begins consuming results
func (p *NATSPort) Start() error {
	if err := p.bus.EnsureStream(CallbackStream, []string{SubjectCallback}, "Randomness provider callbacks"); err != nil {
		return fmt.Errorf("failed to ensure callback stream: %w", err)
	}
	if err := p.bus.Subscribe(SubjectCallback, p.handleCallback); err != nil {
		return fmt.Errorf("failed to subscribe to callbacks: %w", err)
	}
	return nil
}

// handleCallback forwards one result. Rejections are final and acked;
// anything else is returned so the message is redelivered.
func (p *NATSPort) handleCallback(data []byte) error {
	var msg CallbackMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.WithError(err).Warn("Dropping malformed randomness callback")
		return nil
	}

	// The caller is whoever signed the result, never a field the sender chose
	signer, err := msg.Signer()
	if err != nil {
		recordDelivery(service.ErrUnauthorizedCallback)
		log.WithFields(log.Fields{
			"requestID": msg.RequestID,
			"error":     err,
		}).Warn("Dropping unsigned randomness callback")
		return nil
	}

	p.mu.RLock()
	handler := p.handler
	p.mu.RUnlock()
	if handler == nil {
		return ErrNoCallbackHandler
	}

	err = handler(context.Background(), signer, msg.RequestID, msg.RandomValue)
	recordDelivery(err)
	if err == nil {
		return nil
	}

	if errors.Is(err, service.ErrUnknownRequestID) ||
		errors.Is(err, service.ErrUnauthorizedCallback) ||
		errors.Is(err, service.ErrAlreadyDrawnForDay) {
		log.WithFields(log.Fields{
			"requestID": msg.RequestID,
			"signer":    signer.Hex(),
			"error":     err,
		}).Warn("Randomness callback rejected")
		return nil
	}
	return err
}
