// Package fixture carries the fixed demonstration dataset served in mock
// mode. Timestamps are generated relative to the caller's clock so the demo
// always looks current.
package fixture

import (
	"time"

	"github.com/agentidp/agentwatch/internal/model"
)

func minutesAgo(now time.Time, m int) time.Time {
	return now.Add(-time.Duration(m) * time.Minute)
}

// Agents returns the demo principal roster.
func Agents() []model.Agent {
	return []model.Agent{
		{ID: "a-1", Name: "OrderSummarizer", Active: true},
		{ID: "a-2", Name: "BillingReconciler", Active: true},
		{ID: "a-3", Name: "SupportAutoResponder", Active: true},
		{ID: "a-4", Name: "HR-OfferGenerator", Active: true},
	}
}

// AccessEvents returns the demo token-issuance log, newest first.
func AccessEvents(now time.Time) []model.AccessEvent {
	return []model.AccessEvent{
		{
			ID:            "r-1101",
			IssuedAt:      minutesAgo(now, 1),
			AgentName:     "OrderSummarizer",
			TTLSeconds:    30,
			Decision:      model.DecisionGranted,
			Reason:        "meets least-privilege; row/column constraints applied",
			SourceAddress: "35.166.17.10",
			Scope: model.ScopeDescriptor{
				Action:        "READ",
				ResourceType:  "table",
				ResourceID:    "db.orders",
				Justification: "Summarize last order for vendor 42 to reply to user",
				Scope:         "db.orders",
				Columns:       []string{"order_id", "created_at", "vendor_id", "total", "currency"},
				RowFilter:     "vendor_id = 42 AND order_id = 981233",
				OutputLimit:   &model.OutputLimit{MaxRows: 1, MaxBytes: 32768},
				MaskRules:     []model.MaskRule{{Column: "total", Rule: "round(2)"}},
				ReplayProtection: &model.ReplayProtection{Nonce: "8fd1e8", OneTime: true},
				Network:       &model.NetworkPolicy{CIDRAllow: []string{"35.0.0.0/8"}},
				AuditTags:     []string{"summary-reply"},
			},
		},
		{
			ID:            "r-1100",
			IssuedAt:      minutesAgo(now, 4),
			AgentName:     "SupportAutoResponder",
			TTLSeconds:    30,
			Decision:      model.DecisionDenied,
			Reason:        "attachment scope too broad (requested wildcard)",
			SourceAddress: "34.101.2.9",
			Scope: model.ScopeDescriptor{
				Action:        "READ",
				ResourceType:  "object-store",
				ResourceID:    "gdrive:/support/attachments/*",
				Justification: "Scan all attachments for ticket 5531",
				Scope:         "gdrive:/support/attachments",
				RowFilter:     "*",
				ReplayProtection: &model.ReplayProtection{Nonce: "b771c2", OneTime: true},
				Network:       &model.NetworkPolicy{CIDRAllow: []string{"34.0.0.0/8"}},
				AuditTags:     []string{"overscope"},
			},
		},
		{
			ID:            "r-1099",
			IssuedAt:      minutesAgo(now, 12),
			AgentName:     "BillingReconciler",
			TTLSeconds:    30,
			Decision:      model.DecisionGranted,
			Reason:        "write allowed to idempotent endpoint with per-token rate-limit",
			SourceAddress: "18.211.95.1",
			Scope: model.ScopeDescriptor{
				Action:         "POST",
				ResourceType:   "api",
				ResourceID:     "api://erp/journals:create",
				Justification:  "Create one reversing journal entry for txn 771",
				Scope:          "api://erp/journals",
				IdempotencyKey: "rev-771-2024-10-26T09:14:00Z",
				RateLimit:      &model.RateLimit{RPM: 2, Burst: 1},
				ReplayProtection: &model.ReplayProtection{Nonce: "7c19aa", OneTime: true},
				Network:        &model.NetworkPolicy{CIDRAllow: []string{"18.0.0.0/8"}},
				AuditTags:      []string{"journal-reverse"},
			},
		},
		{
			ID:            "r-1098",
			IssuedAt:      minutesAgo(now, 20),
			AgentName:     "HR-OfferGenerator",
			TTLSeconds:    30,
			Decision:      model.DecisionGranted,
			Reason:        "column-level masking + geo restriction",
			SourceAddress: "104.28.8.2",
			Scope: model.ScopeDescriptor{
				Action:        "READ",
				ResourceType:  "sheet",
				ResourceID:    "sheet://hr/comp_bands",
				Justification: "Generate offer for role SWE-2 in CA region",
				Scope:         "sheet://hr/comp_bands",
				Columns:       []string{"role", "level", "min", "max", "currency"},
				RowFilter:     "region = 'US-CA' AND level IN ('SWE-2')",
				MaskRules:     []model.MaskRule{{Column: "max", Rule: "percentile_mask(80)"}},
				ReplayProtection: &model.ReplayProtection{Nonce: "1f22ab", OneTime: true},
				Network:       &model.NetworkPolicy{GeoAllow: []string{"US-CA"}},
				AuditTags:     []string{"offer-gen"},
			},
		},
	}
}

// AuditEvents returns the demo access-attempt log, newest first.
func AuditEvents(now time.Time) []model.AuditEvent {
	return []model.AuditEvent{
		{
			ID:            "s-001",
			OccurredAt:    minutesAgo(now, 1),
			Subject:       "SupportAutoResponder",
			Method:        "mTLS",
			Status:        model.StatusFailed,
			Reason:        "cert revoked",
			SourceAddress: "34.101.2.9",
		},
		{
			ID:            "s-002",
			OccurredAt:    minutesAgo(now, 7),
			Subject:       "OrderSummarizer",
			Method:        "OIDC client-cred",
			Status:        model.StatusSuccess,
			SourceAddress: "35.166.17.10",
		},
		{
			ID:            "s-003",
			OccurredAt:    minutesAgo(now, 31),
			Subject:       "ExternalAgent-X",
			Method:        "OIDC",
			Status:        model.StatusBlocked,
			Reason:        "unregistered client_id",
			SourceAddress: "203.0.113.7",
		},
	}
}

// Usage returns the demo resource-usage tallies.
func Usage() []model.UsageEntry {
	return []model.UsageEntry{
		{Resource: "db.orders", Calls: 42},
		{Resource: "api://erp/journals", Calls: 13},
		{Resource: "gdrive:/support/attachments", Calls: 5},
		{Resource: "sheet://hr/comp_bands", Calls: 9},
	}
}

// Traffic returns a one-hour demo series of twelve 5-minute buckets ending
// at now, with a gentle hump in granted counts and sparse denials.
func Traffic(now time.Time) []model.TrafficBucket {
	buckets := make([]model.TrafficBucket, 0, 12)
	base := now.Add(-time.Hour).Truncate(5 * time.Minute)
	for i := 0; i < 12; i++ {
		start := base.Add(time.Duration(i) * 5 * time.Minute)
		granted := 6 - abs(6-i)
		if granted < 0 {
			granted = 0
		}
		if i%3 == 0 {
			granted++
		}
		denied := 0
		if i%4 == 0 {
			denied = 1
		}
		buckets = append(buckets, model.TrafficBucket{
			Start:   start,
			Label:   start.Format("3:04 PM"),
			Granted: granted,
			Denied:  denied,
		})
	}
	return buckets
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
