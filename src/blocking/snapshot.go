package blocking

import (
	"context"
	"fmt"

	"github.com/newrelic/infra-integrations-sdk/v3/log"
	"github.com/newrelic/nri-mssql-lockwait/src/connection"
)

const snapshotQuery = `SELECT
	s.session_id AS session_id,
	CAST(ISNULL(r.blocking_session_id, 0) AS BIGINT) AS blocked_by,
	s.login_time AS login_time,
	s.host_name AS host_name,
	s.program_name AS program_name,
	s.login_name AS login_name,
	DB_NAME(COALESCE(r.database_id, s.database_id)) AS database_name,
	COALESCE(r.status, s.status) AS status,
	r.command AS command,
	r.wait_type AS wait_type,
	CAST(r.wait_time AS BIGINT) AS wait_time_ms,
	NULLIF(r.wait_resource, '') AS wait_resource,
	CAST(s.open_transaction_count AS BIGINT) AS open_transaction_count,
	t.text AS sql_text,
	CAST(COALESCE(r.wait_time / 1000.0, DATEDIFF(SECOND, s.last_request_end_time, SYSDATETIME())) AS FLOAT) AS blocking_duration_seconds
FROM sys.dm_exec_sessions AS s WITH (NOLOCK)
LEFT JOIN sys.dm_exec_requests AS r WITH (NOLOCK)
	ON r.session_id = s.session_id
LEFT JOIN sys.dm_exec_connections AS c WITH (NOLOCK)
	ON c.session_id = s.session_id
OUTER APPLY sys.dm_exec_sql_text(COALESCE(r.sql_handle, c.most_recent_sql_handle)) AS t
WHERE s.session_id <> @@SPID
ORDER BY s.session_id`

// SnapshotSource captures the session snapshot a Resolve call works on
type SnapshotSource interface {
	Snapshot(ctx context.Context) ([]Session, error)
}

// SQLSource reads the snapshot from the session DMVs with a single query
type SQLSource struct {
	con *connection.SQLConnection
}

// NewSQLSource creates a SQLSource over a server level connection
func NewSQLSource(con *connection.SQLConnection) *SQLSource {
	return &SQLSource{con: con}
}

// Snapshot returns every session of the instance except the caller's own
func (s *SQLSource) Snapshot(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if err := s.con.QueryContext(ctx, &sessions, snapshotQuery); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshot, err)
	}
	log.Debug("Captured snapshot of %d sessions", len(sessions))
	return sessions, nil
}
