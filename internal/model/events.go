package model

import "time"

// Decision is the outcome recorded against an issued access token.
type Decision string

const (
	DecisionGranted Decision = "GRANTED"
	DecisionDenied  Decision = "DENIED"
)

// AttemptStatus classifies an authentication attempt by its status code.
type AttemptStatus string

const (
	StatusSuccess AttemptStatus = "SUCCESS"
	StatusFailed  AttemptStatus = "FAILED"
	StatusBlocked AttemptStatus = "BLOCKED"
)

// Sentinels substituted when an optional relation is missing on a raw row.
const (
	UnknownAgent    = "Unknown Agent"
	UnknownResource = "Unknown Resource"
	UnknownMethod   = "UNKNOWN"
	UnknownSubject  = "unknown"
)

// OutputLimit caps the rows and bytes a token may return.
type OutputLimit struct {
	MaxRows  int `json:"max_rows"`
	MaxBytes int `json:"max_bytes"`
}

// MaskRule masks a single column in token output.
type MaskRule struct {
	Column string `json:"column"`
	Rule   string `json:"rule"`
}

// RateLimit bounds the call rate of a single token.
type RateLimit struct {
	RPM   int `json:"rpm"`
	Burst int `json:"burst"`
}

// ReplayProtection carries the one-time nonce attached to a token.
type ReplayProtection struct {
	Nonce   string `json:"nonce"`
	OneTime bool   `json:"one_time"`
}

// NetworkPolicy restricts where a token may be exercised from.
type NetworkPolicy struct {
	CIDRAllow []string `json:"cidr_allow,omitempty"`
	GeoAllow  []string `json:"geo_allow,omitempty"`
}

// ScopeDescriptor is the structured constraint set attached to a token.
type ScopeDescriptor struct {
	Action           string            `json:"action"`
	ResourceType     string            `json:"resource_type"`
	ResourceID       string            `json:"resource_id"`
	Justification    string            `json:"justification,omitempty"`
	Scope            string            `json:"scope,omitempty"`
	Columns          []string          `json:"columns,omitempty"`
	RowFilter        string            `json:"row_filter,omitempty"`
	OutputLimit      *OutputLimit      `json:"output_limit,omitempty"`
	MaskRules        []MaskRule        `json:"mask_rules,omitempty"`
	RateLimit        *RateLimit        `json:"rate_limit,omitempty"`
	IdempotencyKey   string            `json:"idempotency_key,omitempty"`
	ReplayProtection *ReplayProtection `json:"replay_protection,omitempty"`
	Network          *NetworkPolicy    `json:"network,omitempty"`
	AuditTags        []string          `json:"audit_tags,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// AccessEvent is the canonical form of a token-issuance record. Immutable
// after normalization; superseded only by a fresh snapshot load.
type AccessEvent struct {
	ID            string          `json:"id"`
	IssuedAt      time.Time       `json:"ts"`
	AgentName     string          `json:"agent"`
	TTLSeconds    int64           `json:"ttl_sec"`
	Decision      Decision        `json:"decision"`
	Revoked       bool            `json:"revoked"`
	Reason        string          `json:"reason"`
	SourceAddress string          `json:"ip"`
	Scope         ScopeDescriptor `json:"token"`
}

// AuditEvent is the canonical form of an access-attempt record.
type AuditEvent struct {
	ID             string        `json:"id"`
	OccurredAt     time.Time     `json:"ts"`
	Subject        string        `json:"subject"`
	Method         string        `json:"method"`
	Status         AttemptStatus `json:"status"`
	Reason         string        `json:"reason"`
	SourceAddress  string        `json:"ip"`
	DurationMillis int64         `json:"duration_ms,omitempty"`
}

// Agent is a registered automated principal.
type Agent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"is_active"`
}

// TrafficBucket is one fixed-width time slot of granted/denied counts.
// Start orders buckets chronologically; Label is presentation only.
type TrafficBucket struct {
	Start   time.Time `json:"-"`
	Label   string    `json:"t"`
	Granted int       `json:"granted"`
	Denied  int       `json:"denied"`
}

// UsageEntry counts token issuances observed for one scope value.
type UsageEntry struct {
	Resource string `json:"resource"`
	Calls    int    `json:"calls"`
}
