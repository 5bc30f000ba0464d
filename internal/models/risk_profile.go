package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RiskProfile selects how aggressively a strategy trades yield for risk.
// The numeric values are the on-chain enum discriminants.
type RiskProfile uint8

const (
	Conservative RiskProfile = iota
	Moderate
	Aggressive
)

func (r RiskProfile) String() string {
	switch r {
	case Conservative:
		return "conservative"
	case Moderate:
		return "moderate"
	case Aggressive:
		return "aggressive"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(r))
	}
}

// Valid reports whether r is one of the three defined profiles.
func (r RiskProfile) Valid() bool {
	return r <= Aggressive
}

// ParseRiskProfile accepts the lower-case profile name.
func ParseRiskProfile(s string) (RiskProfile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "conservative":
		return Conservative, nil
	case "moderate":
		return Moderate, nil
	case "aggressive":
		return Aggressive, nil
	}
	return 0, fmt.Errorf("unknown risk profile %q", s)
}

func (r RiskProfile) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *RiskProfile) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseRiskProfile(name)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
