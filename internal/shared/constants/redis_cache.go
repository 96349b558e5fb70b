package constants

import "time"

// Redis cache keys and TTLs
// Pattern: boxoffice:{module}:{entity}:{identifier}

// ================== CACHE TTL DURATIONS ==================

const (
	TTL_EVENT_DETAIL = 15 * time.Minute // event status changes rarely
	TTL_FEE_SETTINGS = 15 * time.Minute
	TTL_BALANCE      = 30 * time.Second // display only, never used to approve payouts
	TTL_EVENT_REPORT = 2 * time.Minute
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "boxoffice"

	CACHE_KEY_EVENT_DETAIL = CACHE_PREFIX + ":events:detail:"   // + event-id
	CACHE_KEY_FEE_SETTINGS = CACHE_PREFIX + ":events:fees:"     // + event-id
	CACHE_KEY_EVENT_REPORT = CACHE_PREFIX + ":analytics:event:" // + event-id
	CACHE_KEY_ORG_BALANCE  = CACHE_PREFIX + ":settlement:balance:"
)

// ================== HELPER FUNCTIONS ==================

func BuildEventDetailKey(eventID string) string {
	return CACHE_KEY_EVENT_DETAIL + eventID
}

func BuildFeeSettingsKey(eventID string) string {
	return CACHE_KEY_FEE_SETTINGS + eventID
}

func BuildEventReportKey(eventID string) string {
	return CACHE_KEY_EVENT_REPORT + eventID
}

// BuildBalanceKey scopes a balance snapshot to an organization and, optionally, one event.
// Example: boxoffice:settlement:balance:org:<org-id>:event:all
func BuildBalanceKey(organizationID, eventID string) string {
	if eventID == "" {
		eventID = "all"
	}
	return CACHE_KEY_ORG_BALANCE + "org:" + organizationID + ":event:" + eventID
}
