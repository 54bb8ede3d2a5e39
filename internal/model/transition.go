package model

import "fmt"

// TransitionPolicy decides which current statuses may move to a target status.
type TransitionPolicy string

const (
	// PolicyUnrestricted accepts any valid target regardless of the current
	// status, so corrections such as served -> ordered go through.
	PolicyUnrestricted TransitionPolicy = "unrestricted"
	// PolicyForward accepts only strictly later statuses.
	PolicyForward TransitionPolicy = "forward"
)

func ParseTransitionPolicy(s string) (TransitionPolicy, error) {
	switch p := TransitionPolicy(s); p {
	case PolicyUnrestricted, PolicyForward:
		return p, nil
	case "":
		return PolicyUnrestricted, nil
	default:
		return "", fmt.Errorf("unknown transition policy %q", s)
	}
}

// Sources returns the statuses an order must currently be in to move to
// target. A nil result means any status is accepted.
func (p TransitionPolicy) Sources(target Status) []Status {
	if p != PolicyForward {
		return nil
	}
	r := target.rank()
	if r <= 0 {
		return []Status{}
	}
	return append([]Status(nil), Lifecycle[:r]...)
}

func (p TransitionPolicy) Allows(from, to Status) bool {
	src := p.Sources(to)
	if src == nil {
		return to.Valid()
	}
	for _, s := range src {
		if s == from {
			return true
		}
	}
	return false
}
