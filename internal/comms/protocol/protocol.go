// Package protocol owns the application-level message schema carried inside
// frame payloads.
//
// Ownership boundary:
// - message header and agent identity
// - message kind and priority enums
// - concrete message bodies and the tagged envelope
//
// The framing layer never inspects any of this; versioning travels in the
// header, not on the wire prefix.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ProtocolVersion is stamped into every message header.
const ProtocolVersion uint16 = 1

var (
	ErrUnknownKind     = errors.New("protocol: unknown message kind")
	ErrVersionMismatch = errors.New("protocol: unsupported protocol version")
)

// Priority orders messages of differing urgency at the application layer.
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// Kind discriminates message bodies.
type Kind uint16

const (
	KindPing              Kind = 0
	KindPong              Kind = 1
	KindStateUpdate       Kind = 2
	KindCommand           Kind = 3
	KindEvent             Kind = 4
	KindConsensusProposal Kind = 5
	KindConsensusVote     Kind = 6
	KindDiscovery         Kind = 7
	KindError             Kind = 100
)

func (k Kind) Valid() bool {
	switch k {
	case KindPing, KindPong, KindStateUpdate, KindCommand, KindEvent,
		KindConsensusProposal, KindConsensusVote, KindDiscovery, KindError:
		return true
	}
	return false
}

// AgentID identifies one agent process across the platform.
type AgentID uuid.UUID

func NewAgentID() AgentID {
	return AgentID(uuid.New())
}

func ParseAgentID(s string) (AgentID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return AgentID{}, fmt.Errorf("protocol: parse agent id: %w", err)
	}
	return AgentID(id), nil
}

func (id AgentID) String() string {
	return uuid.UUID(id).String()
}

func (id AgentID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *AgentID) UnmarshalText(data []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(data)
}

// MessageHeader is the base header included in all messages.
type MessageHeader struct {
	Version     uint16   `json:"version"`
	Kind        Kind     `json:"kind"`
	ID          uint64   `json:"id"`
	Priority    Priority `json:"priority"`
	TimestampMS uint64   `json:"timestamp_ms"`
	Sender      AgentID  `json:"sender"`
	Sequence    uint32   `json:"sequence"`
}

func (h MessageHeader) Validate() error {
	if h.Version != ProtocolVersion {
		return fmt.Errorf("%w: got %d want %d", ErrVersionMismatch, h.Version, ProtocolVersion)
	}
	if !h.Kind.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, h.Kind)
	}
	return nil
}

// HeaderSource stamps headers for one sender: monotonic message ids and
// per-sender sequence numbers. Safe for concurrent use.
type HeaderSource struct {
	sender AgentID
	nextID atomic.Uint64
	seq    atomic.Uint32
}

func NewHeaderSource(sender AgentID) *HeaderSource {
	return &HeaderSource{sender: sender}
}

func (s *HeaderSource) Sender() AgentID {
	return s.sender
}

func (s *HeaderSource) Next(kind Kind, priority Priority) MessageHeader {
	return MessageHeader{
		Version:     ProtocolVersion,
		Kind:        kind,
		ID:          s.nextID.Add(1),
		Priority:    priority,
		TimestampMS: uint64(time.Now().UnixMilli()),
		Sender:      s.sender,
		Sequence:    s.seq.Add(1),
	}
}

// Ping checks connectivity.
type Ping struct {
	Header  MessageHeader `json:"header"`
	Payload string        `json:"payload,omitempty"`
}

// Pong answers a Ping, echoing its payload.
type Pong struct {
	Header         MessageHeader `json:"header"`
	Echo           string        `json:"echo,omitempty"`
	ResponseTimeMS uint64        `json:"response_time_ms"`
}

// ErrorMessage reports a failure back to a sender.
type ErrorMessage struct {
	Header     MessageHeader `json:"header"`
	Code       uint16        `json:"code"`
	Message    string        `json:"message"`
	OriginalID uint64        `json:"original_id,omitempty"`
}

// StateUpdate notifies peers of a new state version.
type StateUpdate struct {
	Header        MessageHeader `json:"header"`
	StateVersion  uint64        `json:"state_version"`
	StateData     []byte        `json:"state_data"`
	PrevStateHash []byte        `json:"prev_state_hash"`
	StateHash     []byte        `json:"state_hash"`
}

// Command requests an action from a peer.
type Command struct {
	Header     MessageHeader `json:"header"`
	CommandID  uint32        `json:"command_id"`
	Parameters []byte        `json:"parameters,omitempty"`
	ResponseTo uint64        `json:"response_to,omitempty"`
}

// ConsensusProposal opens a consensus round.
type ConsensusProposal struct {
	Header       MessageHeader `json:"header"`
	Round        uint64        `json:"round"`
	ProposalData []byte        `json:"proposal_data"`
	ProposalHash []byte        `json:"proposal_hash"`
}

// ConsensusVote accepts or rejects a proposal.
type ConsensusVote struct {
	Header       MessageHeader `json:"header"`
	Round        uint64        `json:"round"`
	Vote         bool          `json:"vote"`
	ProposalHash []byte        `json:"proposal_hash"`
	Signature    []byte        `json:"signature"`
}

// Discovery announces an agent and its capabilities to peers.
type Discovery struct {
	Header            MessageHeader `json:"header"`
	Capabilities      uint64        `json:"capabilities"`
	ListenAddr        string        `json:"listen_addr,omitempty"`
	SupportedVersions []uint16      `json:"supported_versions"`
}

// Envelope carries one message of any kind over a shared connection. The
// kind discriminant tells receivers which body type to decode into.
type Envelope struct {
	Kind Kind            `json:"kind"`
	Body json.RawMessage `json:"body"`
}

func Seal(kind Kind, msg any) (Envelope, error) {
	if !kind.Valid() {
		return Envelope{}, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("protocol: seal %d: %w", kind, err)
	}
	return Envelope{Kind: kind, Body: body}, nil
}

func (e Envelope) Open(out any) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, e.Kind)
	}
	if err := json.Unmarshal(e.Body, out); err != nil {
		return fmt.Errorf("protocol: open %d: %w", e.Kind, err)
	}
	return nil
}
