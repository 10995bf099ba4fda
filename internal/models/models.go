package models

import "time"

// Operation is one row of the dispatch audit trail. It records the outcome
// of an action, never the vendor resource itself: the vendor stays the sole
// source of truth for instance and bucket state.
type Operation struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Time     time.Time `gorm:"index" json:"time"`
	Provider string    `json:"provider"`
	Action   string    `json:"action"`
	Region   string    `json:"region"`
	Target   string    `json:"target"`
	Success  bool      `json:"success"`
	Code     string    `json:"code"`
	Message  string    `json:"message"`
}

// Persistent observability models

type LogEntry struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	Time   time.Time `json:"time"`
	Level  string    `json:"level"`
	Msg    string    `json:"msg"`
	Fields string    `json:"fields"` // JSON string of fields
}

type TraceRow struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	UserAgent  string    `json:"userAgent"`
	RemoteIP   string    `json:"remoteIp"`
	ReqBytes   int64     `json:"reqBytes"`
	RespBytes  int64     `json:"respBytes"`
	Started    time.Time `json:"started"`
	Ended      time.Time `json:"ended"`
	DurationNs int64     `json:"durationNs"`
}

type TraceEventRow struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	TraceID string    `gorm:"index" json:"traceId"`
	Time    time.Time `json:"time"`
	Name    string    `json:"name"`
	Fields  string    `json:"fields"` // JSON string of fields
}
