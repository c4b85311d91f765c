package magnet

import "fmt"

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "FREE":
		*s = Free
	case "ATTACHED":
		*s = Attached
	default:
		return fmt.Errorf("unknown magnet state %q", b)
	}
	return nil
}

func (o Op) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Op) UnmarshalText(b []byte) error {
	for v := OpAttach; v <= OpDrop; v++ {
		if v.String() == string(b) {
			*o = v
			return nil
		}
	}
	return fmt.Errorf("unknown magnet op %q", b)
}

func (r Result) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Result) UnmarshalText(b []byte) error {
	for v := OK; v <= Stale; v++ {
		if v.String() == string(b) {
			*r = v
			return nil
		}
	}
	return fmt.Errorf("unknown transition result %q", b)
}
