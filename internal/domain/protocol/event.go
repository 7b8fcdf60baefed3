// Package protocol parses and validates PSS scoring-system datagrams.
//
// Parse never fails: malformed or unknown input downgrades to KindRaw with
// StatusUnknown and zero confidence. Recognized codes with field violations
// keep their kind, become StatusPartial and record each violation.
package protocol

import (
	"fmt"
	"strings"
	"time"
)

// DefaultVersion is the protocol version events are validated against.
const DefaultVersion = "2.3"

// Kind identifies the shape of an event payload.
type Kind string

// Event kinds.
const (
	KindPoint        Kind = "point"
	KindHitLevel     Kind = "hit_level"
	KindWarnings     Kind = "warnings"
	KindScore        Kind = "score"
	KindInjury       Kind = "injury"
	KindChallenge    Kind = "challenge"
	KindClock        Kind = "clock"
	KindBreak        Kind = "break"
	KindRound        Kind = "round"
	KindMatchConfig  Kind = "match_config"
	KindAthletes     Kind = "athletes"
	KindWinner       Kind = "winner"
	KindWinnerRounds Kind = "winner_rounds"
	KindFightLoaded  Kind = "fight_loaded"
	KindFightReady   Kind = "fight_ready"
	KindDeprecated   Kind = "deprecated"
	KindRaw          Kind = "raw"
)

var allKinds = []Kind{
	KindPoint, KindHitLevel, KindWarnings, KindScore, KindInjury, KindChallenge,
	KindClock, KindBreak, KindRound, KindMatchConfig, KindAthletes, KindWinner,
	KindWinnerRounds, KindFightLoaded, KindFightReady, KindDeprecated, KindRaw,
}

// Kinds returns every event kind in a stable order.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range allKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Status is the recognition status of an event.
type Status string

// Recognition statuses.
const (
	StatusRecognized Status = "recognized"
	StatusUnknown    Status = "unknown"
	StatusPartial    Status = "partial"
	StatusDeprecated Status = "deprecated"
)

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusRecognized:
		return StatusRecognized, nil
	case StatusUnknown:
		return StatusUnknown, nil
	case StatusPartial:
		return StatusPartial, nil
	case StatusDeprecated:
		return StatusDeprecated, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// Athlete identifies the side an event refers to. Referee covers ij0/ch0.
type Athlete uint8

const (
	Referee Athlete = iota
	Blue
	Red
)

func (a Athlete) String() string {
	switch a {
	case Blue:
		return "blue"
	case Red:
		return "red"
	default:
		return "referee"
	}
}

// MarshalText renders the athlete as its lowercase name.
func (a Athlete) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Event is the result of parsing one datagram.
type Event struct {
	Kind             Kind      `json:"kind"`
	Code             string    `json:"code"`
	Payload          Payload   `json:"payload,omitempty"`
	Status           Status    `json:"status"`
	Confidence       float64   `json:"confidence"`
	ValidationErrors []string  `json:"validation_errors,omitempty"`
	Raw              string    `json:"raw"`
	SubCategory      string    `json:"sub_category,omitempty"`
	ProtocolVersion  string    `json:"protocol_version"`
	ReceivedAt       time.Time `json:"received_at"`
}

// Recognized reports whether the event fully conforms to the protocol.
func (e Event) Recognized() bool { return e.Status == StatusRecognized }

// Athlete returns the side a point or hit-level event belongs to.
func (e Event) Athlete() (Athlete, bool) {
	switch p := e.Payload.(type) {
	case Point:
		return p.Athlete, true
	case HitLevel:
		return p.Athlete, true
	default:
		return Referee, false
	}
}
