// Package policelog defines the core types shared across the ingestion subsystems.
package policelog

import (
	"time"
)

// CallTypeCategory classifies a call reason.
type CallTypeCategory string

// Call type categories, listed in match-priority order.
const (
	CallTypeTraffic         CallTypeCategory = "TRAFFIC"
	CallTypeMedical         CallTypeCategory = "MEDICAL"
	CallTypeFireSafety      CallTypeCategory = "FIRE_SAFETY"
	CallTypeDisturbance     CallTypeCategory = "DISTURBANCE"
	CallTypeDomestic        CallTypeCategory = "DOMESTIC"
	CallTypeTheftProperty   CallTypeCategory = "THEFT_PROPERTY"
	CallTypeAssistService   CallTypeCategory = "ASSIST_SERVICE"
	CallTypeSuspicious      CallTypeCategory = "SUSPICIOUS"
	CallTypeEmergencyCall   CallTypeCategory = "EMERGENCY_CALL"
	CallTypeInvestigation   CallTypeCategory = "INVESTIGATION"
	CallTypeThreatsViolence CallTypeCategory = "THREATS_VIOLENCE"
	CallTypeMissingPerson   CallTypeCategory = "MISSING_PERSON"
	CallTypeOther           CallTypeCategory = "OTHER"
)

// ActionCategory classifies the disposition of a call.
type ActionCategory string

// Action categories, listed in match-priority order.
const (
	ActionNoAction          ActionCategory = "NO_ACTION"
	ActionServicesRendered  ActionCategory = "SERVICES_RENDERED"
	ActionReport            ActionCategory = "REPORT"
	ActionWarning           ActionCategory = "WARNING"
	ActionArrest            ActionCategory = "ARREST"
	ActionSummons           ActionCategory = "SUMMONS"
	ActionReferred          ActionCategory = "REFERRED"
	ActionGoneOnArrival     ActionCategory = "GONE_ON_ARRIVAL"
	ActionUnableToLocate    ActionCategory = "UNABLE_TO_LOCATE"
	ActionProtectiveCustody ActionCategory = "PROTECTIVE_CUSTODY"
	ActionUnfounded         ActionCategory = "UNFOUNDED"
	ActionInvestigated      ActionCategory = "INVESTIGATED"
	ActionOther             ActionCategory = "OTHER"
)

// LogEntry is one parsed police-log record.
type LogEntry struct {
	CallNumber       string           `json:"call_number"`
	LogDate          time.Time        `json:"log_date"`
	Time24h          string           `json:"time_24h"`
	Timestamp        time.Time        `json:"timestamp"`
	CallReason       string           `json:"call_reason"`
	CallTypeCategory CallTypeCategory `json:"call_type_category"`
	Action           string           `json:"action"`
	ActionCategory   ActionCategory   `json:"action_category"`
	LocationCode     *string          `json:"location_code,omitempty"`
	LocationAddress  *string          `json:"location_address,omitempty"`
	LocationStreet   *string          `json:"location_street,omitempty"`
	RawEntry         []string         `json:"raw_entry"`
	SourceURL        string           `json:"source_url"`
}

// SyncStatus is the ingestion state of a single calendar date.
type SyncStatus string

// Sync status values persisted in the status ledger.
const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// Valid reports whether s is a known status.
func (s SyncStatus) Valid() bool {
	switch s {
	case SyncStatusPending, SyncStatusSuccess, SyncStatusFailed:
		return true
	default:
		return false
	}
}

// SyncStatusRecord is the ledger row for one calendar date.
type SyncStatusRecord struct {
	SyncDate     time.Time  `json:"sync_date"`
	Status       SyncStatus `json:"status"`
	RecordsAdded int        `json:"records_added"`
	SourceURL    *string    `json:"source_url,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	SyncedAt     time.Time  `json:"synced_at"`
}

// DiscoveredLog is one published PDF found on the index page.
type DiscoveredLog struct {
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	PDFURL       string    `json:"pdf_url"`
	PageURL      string    `json:"page_url"`
	DateRangeStr string    `json:"date_range_str"`
}

// EntryQuery filters ListEntries calls. Zero values disable a filter.
type EntryQuery struct {
	From     time.Time
	To       time.Time
	Category CallTypeCategory
	Limit    int
	Offset   int
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
