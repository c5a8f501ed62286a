// Package normalize maps raw backend rows into canonical dashboard events.
// Both functions are pure and total: a row with missing optional columns or
// a failed relation join normalizes to sentinel values, never to an error.
package normalize

import (
	"fmt"

	"github.com/agentidp/agentwatch/internal/model"
)

const defaultTokenReason = "Generated for data access"

// AccessEvent normalizes one token-issuance row.
func AccessEvent(raw model.RawTokenRow) model.AccessEvent {
	agentName := model.UnknownAgent
	resourceID := model.UnknownResource
	if raw.DataSource != nil && raw.DataSource.Name != "" {
		agentName = raw.DataSource.Name
		resourceID = raw.DataSource.Name
	}

	reason := raw.Justification
	if reason == "" {
		reason = defaultTokenReason
	}

	action := raw.Scope
	if action == "" {
		action = "ACCESS"
	}

	sourceAddr := "N/A"
	if raw.SourceIP != nil && *raw.SourceIP != "" {
		sourceAddr = *raw.SourceIP
	}

	return model.AccessEvent{
		ID:            raw.ID,
		IssuedAt:      raw.CreatedAt,
		AgentName:     agentName,
		TTLSeconds:    ttlSeconds(raw),
		Decision:      decision(raw),
		Revoked:       raw.IsRevoked,
		Reason:        reason,
		SourceAddress: sourceAddr,
		Scope: model.ScopeDescriptor{
			Action:        action,
			ResourceType:  "data-source",
			ResourceID:    resourceID,
			Justification: raw.Justification,
			Scope:         raw.Scope,
			ReplayProtection: &model.ReplayProtection{
				Nonce:   nonce(raw.ID),
				OneTime: true,
			},
			AuditTags: []string{"ephemeral-token"},
			Metadata:  raw.Metadata,
		},
	}
}

// AuditEvent normalizes one access-attempt row.
func AuditEvent(raw model.RawAuditRow) model.AuditEvent {
	subject := model.UnknownSubject
	if raw.UserID != nil && *raw.UserID != "" {
		subject = *raw.UserID
	}

	method := model.UnknownMethod
	if raw.Method != nil && *raw.Method != "" {
		method = *raw.Method
	}

	reason := ""
	if raw.Action != nil && *raw.Action != "" {
		reason = *raw.Action
	} else if raw.Path != "" {
		reason = fmt.Sprintf("%s %s", method, raw.Path)
	}

	sourceAddr := ""
	if raw.IPAddress != nil {
		sourceAddr = *raw.IPAddress
	}

	return model.AuditEvent{
		ID:             raw.ID,
		OccurredAt:     raw.Timestamp,
		Subject:        subject,
		Method:         method,
		Status:         StatusFromCode(raw.StatusCode),
		Reason:         reason,
		SourceAddress:  sourceAddr,
		DurationMillis: raw.DurationMillis,
	}
}

// Agent normalizes one registered-principal row.
func Agent(raw model.RawAgentRow) model.Agent {
	return model.Agent{
		ID:     raw.ID,
		Name:   raw.Name,
		Active: raw.IsActive,
	}
}

// StatusFromCode classifies a numeric status code: 2xx is SUCCESS, 4xx is
// FAILED, everything else (5xx, 3xx, garbage) is BLOCKED.
func StatusFromCode(code int) model.AttemptStatus {
	switch {
	case code >= 200 && code < 300:
		return model.StatusSuccess
	case code >= 400 && code < 500:
		return model.StatusFailed
	default:
		return model.StatusBlocked
	}
}

// decision prefers the explicit decision column when the backend records one.
// Older rows only carry the revocation flag, which doubles as a denied-at-
// issuance marker.
func decision(raw model.RawTokenRow) model.Decision {
	if raw.Decision != nil {
		switch *raw.Decision {
		case string(model.DecisionGranted):
			return model.DecisionGranted
		case string(model.DecisionDenied):
			return model.DecisionDenied
		}
	}
	if raw.IsRevoked {
		return model.DecisionDenied
	}
	return model.DecisionGranted
}

// ttlSeconds floors expiry minus issuance to whole seconds, clamped at zero.
func ttlSeconds(raw model.RawTokenRow) int64 {
	if raw.ExpiresAt == nil {
		return 0
	}
	ttl := int64(raw.ExpiresAt.Sub(raw.CreatedAt).Seconds())
	if ttl < 0 {
		return 0
	}
	return ttl
}

func nonce(id string) string {
	if len(id) < 6 {
		return id
	}
	return id[:6]
}
