package emotion

import (
	"errors"
	"strings"
)

var (
	ErrUnknownKind   = errors.New("unknown emotion kind")
	ErrUnknownWord   = errors.New("unknown magnet word")
	ErrUnknownEntity = errors.New("unknown entity kind")
)

// Kind identifies one emotion channel.
type Kind uint8

const (
	Fear Kind = iota
	Abandonment
	Denial
	Anger

	NumKinds = int(Anger) + 1
)

var kindNames = [NumKinds]string{"FEAR", "ABANDONMENT", "DENIAL", "ANGER"}

// Kinds lists every kind in declaration order.
func Kinds() []Kind { return []Kind{Fear, Abandonment, Denial, Anger} }

func (k Kind) Valid() bool { return int(k) < NumKinds }

func (k Kind) String() string {
	if !k.Valid() {
		return "UNKNOWN"
	}
	return kindNames[k]
}

func ParseKind(s string) (Kind, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range kindNames {
		if n == s {
			return Kind(i), nil
		}
	}
	return 0, ErrUnknownKind
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Word is the identity tag printed on a magnet tile.
type Word uint8

const (
	Warmth Word = iota
	Help
	Sorry
	Stay
	Safe
	Together
	Quiet
	Please
	HoldMe
	DontLeave

	NumWords = int(DontLeave) + 1
)

var wordNames = [NumWords]string{
	"WARMTH", "HELP", "SORRY", "STAY", "SAFE", "TOGETHER", "QUIET", "PLEASE", "HOLD_ME", "DONT_LEAVE",
}

func (w Word) Valid() bool { return int(w) < NumWords }

func (w Word) String() string {
	if !w.Valid() {
		return "UNKNOWN"
	}
	return wordNames[w]
}

func ParseWord(s string) (Word, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range wordNames {
		if n == s {
			return Word(i), nil
		}
	}
	return 0, ErrUnknownWord
}

func (w Word) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

func (w *Word) UnmarshalText(b []byte) error {
	v, err := ParseWord(string(b))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// EntityKind is the simulated body class an emotion can apply to.
type EntityKind uint8

const (
	Box EntityKind = iota
	Player
)

func (e EntityKind) String() string {
	switch e {
	case Box:
		return "BOX"
	case Player:
		return "PLAYER"
	default:
		return "UNKNOWN"
	}
}

func ParseEntityKind(s string) (EntityKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BOX":
		return Box, nil
	case "PLAYER":
		return Player, nil
	}
	return 0, ErrUnknownEntity
}

func (e EntityKind) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *EntityKind) UnmarshalText(b []byte) error {
	v, err := ParseEntityKind(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// EntitySet is a bitset of entity kinds.
type EntitySet uint8

func SetOf(kinds ...EntityKind) EntitySet {
	var s EntitySet
	for _, k := range kinds {
		s |= 1 << k
	}
	return s
}

func (s EntitySet) Has(k EntityKind) bool { return s&(1<<k) != 0 }

// Role tags which side of the replication link a replica lives on.
type Role uint8

const (
	RoleObserver Role = iota
	RoleAuthority
)

func (r Role) String() string {
	if r == RoleAuthority {
		return "AUTHORITY"
	}
	return "OBSERVER"
}
