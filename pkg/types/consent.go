package types

import "time"

// Consent is the immutable snapshot of the data-processing acceptance a
// customer gave at checkout. It is written once at order creation and never
// edited afterward.
type Consent struct {
	AcceptedAt    time.Time `json:"accepted_at"`
	PolicyVersion string    `json:"policy_version"`
	IP            string    `json:"ip,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
}
