package model

import "time"

// Raw rows mirror the backend's wire shape. Optional columns and relations
// are pointers so a failed join decodes to nil instead of a zero value the
// normalizer cannot tell apart from real data.

// RawAgentRow is one row of the registered-principal table.
type RawAgentRow struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	BaseURL  string `json:"base_url,omitempty"`
	IsActive bool   `json:"is_active"`
}

// RawTokenRow is one row of the ephemeral-token table, with the owning
// principal joined in when the relation resolves.
type RawTokenRow struct {
	ID            string            `json:"id"`
	CreatedAt     time.Time         `json:"created_at"`
	ExpiresAt     *time.Time        `json:"expires_at"`
	Scope         string            `json:"scope"`
	Justification string            `json:"justification"`
	IsRevoked     bool              `json:"is_revoked"`
	Decision      *string           `json:"decision"`
	SourceIP      *string           `json:"source_ip"`
	Metadata      map[string]string `json:"metadata"`
	DataSource    *RawAgentRow      `json:"data_sources"`
}

// RawAuditRow is one row of the access-attempt log.
type RawAuditRow struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	UserID         *string           `json:"user_id"`
	Method         *string           `json:"method"`
	Path           string            `json:"path"`
	Action         *string           `json:"action"`
	StatusCode     int               `json:"status_code"`
	IPAddress      *string           `json:"ip_address"`
	DurationMillis int64             `json:"duration_ms"`
	Metadata       map[string]string `json:"metadata"`
}

// RawUsageRow is one server-side usage aggregate, when the backend computes
// them itself.
type RawUsageRow struct {
	Resource string `json:"resource"`
	Calls    int    `json:"calls"`
}

// RawTrafficRow is one server-side traffic aggregate.
type RawTrafficRow struct {
	Start   time.Time `json:"bucket_start"`
	Granted int       `json:"granted"`
	Denied  int       `json:"denied"`
}
