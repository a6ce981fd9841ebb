package types

import "time"

// AccessType enumerates the ways a memory can be touched (spec §3).
type AccessType string

const (
	AccessSearch        AccessType = "search"
	AccessDirect        AccessType = "direct"
	AccessBriefing      AccessType = "briefing"
	AccessConsolidation AccessType = "consolidation"
	AccessMaintenance   AccessType = "maintenance"
	AccessHook          AccessType = "hook"
	AccessPredicted     AccessType = "predicted"
)

var validAccessTypes = map[AccessType]bool{
	AccessSearch: true, AccessDirect: true, AccessBriefing: true,
	AccessConsolidation: true, AccessMaintenance: true, AccessHook: true,
	AccessPredicted: true,
}

// IsValidAccessType reports whether t is a recognised access type.
func IsValidAccessType(t AccessType) bool { return validAccessTypes[t] }

// AccessEvent is a single append-only log entry recording that a memory
// was touched (spec §3, §4.F).
type AccessEvent struct {
	MemoryID      string
	AccessType    AccessType
	Timestamp     time.Time
	QueryContext  string
	SessionID     string
}
