package overlay

import "fmt"

// State is what the pill currently shows.
type State int

const (
	StateLoading State = iota
	StateActive
	StateInactive
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Label is the text shown inside the pill.
func (s State) Label() string {
	switch s {
	case StateActive:
		return "Active"
	case StateInactive:
		return "Inactive"
	case StateError:
		return "Error"
	default:
		return "Checking..."
	}
}

func (s State) pillClass() string {
	switch s {
	case StateActive:
		return "lenus-ab-pill lenus-ab-pill-enabled"
	case StateInactive, StateError:
		return "lenus-ab-pill lenus-ab-pill-disabled"
	default:
		return "lenus-ab-pill lenus-ab-pill-loading"
	}
}

func (s State) icon() string {
	switch s {
	case StateActive:
		return iconCheck
	case StateInactive:
		return iconCross
	case StateError:
		return iconError
	default:
		return iconSpinner
	}
}
