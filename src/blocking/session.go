// Package blocking resolves a snapshot of SQL Server sessions into the forest of blocking chains
package blocking

import (
	"time"

	"github.com/newrelic/nri-mssql-lockwait/src/args"
)

// Session is one row of the session snapshot. BlockedBy is 0 when the session is not blocked.
type Session struct {
	SessionID        int64      `db:"session_id" json:"session_id"`
	BlockedBy        int64      `db:"blocked_by" json:"blocked_by"`
	LoginTime        *time.Time `db:"login_time" json:"login_time,omitempty"`
	HostName         *string    `db:"host_name" json:"host_name,omitempty"`
	ProgramName      *string    `db:"program_name" json:"program_name,omitempty"`
	LoginName        *string    `db:"login_name" json:"login_name,omitempty"`
	DatabaseName     *string    `db:"database_name" json:"database_name,omitempty"`
	Status           *string    `db:"status" json:"status,omitempty"`
	Command          *string    `db:"command" json:"command,omitempty"`
	WaitType         *string    `db:"wait_type" json:"wait_type,omitempty"`
	WaitTimeMs       *int64     `db:"wait_time_ms" json:"wait_time_ms,omitempty"`
	WaitResource     *string    `db:"wait_resource" json:"wait_resource,omitempty"`
	OpenTransactions int64      `db:"open_transaction_count" json:"open_transaction_count"`
	SQLText          *string    `db:"sql_text" json:"-"`
	BlockingDuration float64    `db:"blocking_duration_seconds" json:"blocking_duration_seconds"`
}

// Blocked reports whether the session waits on another session. Self blocking is not blocking.
func (s Session) Blocked() bool {
	return s.BlockedBy != 0 && s.BlockedBy != s.SessionID
}

// idle reports whether the session is sleeping or dormant
func (s Session) idle() bool {
	if s.Status == nil {
		return false
	}
	switch *s.Status {
	case "sleeping", "dormant":
		return true
	}
	return false
}

func (s Session) database() string {
	if s.DatabaseName == nil || *s.DatabaseName == "" {
		return unknownDatabase
	}
	return *s.DatabaseName
}

const unknownDatabase = "<unknown>"

// Defaults applied by Options.withDefaults
const (
	DefaultSystemSessionFloor = 50
	DefaultMaxDepth           = 32767
	SQLPreviewLength          = 100
)

// Options controls filtering and rendering of a Resolve call
type Options struct {
	// IncludeSQLText keeps the full statement text instead of a preview
	IncludeSQLText bool
	// MinBlockingDuration drops sessions blocked for less than this many seconds
	MinBlockingDuration float64
	Format              string
	// ActiveOnly drops sleeping sessions unless they block someone
	ActiveOnly bool
	MaxDepth   int
	// SystemSessionFloor is the highest session id reserved for system sessions
	SystemSessionFloor int64
	Classifier         *WaitClassifier
	// AnonymizeSQL replaces literals in statement text
	AnonymizeSQL bool
}

func (o Options) withDefaults() Options {
	if o.Format == "" {
		o.Format = args.FormatTree
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.SystemSessionFloor <= 0 {
		o.SystemSessionFloor = DefaultSystemSessionFloor
	}
	if o.Classifier == nil {
		c := DefaultClassifier()
		o.Classifier = &c
	}
	return o
}
