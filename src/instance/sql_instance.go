// Package instance contains helper methods for the monitored SQL Server instance
package instance

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/blang/semver/v4"
	"github.com/newrelic/infra-integrations-sdk/v3/integration"
	"github.com/newrelic/infra-integrations-sdk/v3/log"
	"github.com/newrelic/nri-mssql-lockwait/src/connection"
)

const (
	// instanceNameQuery gets the instance name
	instanceNameQuery = "select COALESCE( @@SERVERNAME, SERVERPROPERTY('ServerName'), SERVERPROPERTY('MachineName')) as instance_name"

	serverVersionQuery = "SELECT @@VERSION AS server_version"
)

var (
	ErrExpectedOneRow = errors.New("expected 1 row for instance name")
	ErrServerVersion  = errors.New("could not determine server version")
	versionRegex      = regexp.MustCompile(`\b(\d+\.\d+\.\d+)\b`)
)

// NameRow is a row result in the instanceNameQuery
type NameRow struct {
	Name sql.NullString `db:"instance_name"`
}

// CreateInstanceEntity runs a query to get the instance
func CreateInstanceEntity(i *integration.Integration, con *connection.SQLConnection) (*integration.Entity, error) {
	instanceRows := make([]*NameRow, 0)
	if err := con.Query(&instanceRows, instanceNameQuery); err != nil {
		return nil, err
	}

	if length := len(instanceRows); length != 1 {
		return nil, fmt.Errorf("%w, but got %d", ErrExpectedOneRow, length)
	}

	if instanceRows[0].Name.Valid {
		instanceNameIDAttr := integration.NewIDAttribute("instance", instanceRows[0].Name.String)
		return i.EntityReportedVia(con.Host, instanceRows[0].Name.String, "ms-instance", instanceNameIDAttr)
	}

	return i.EntityReportedVia(con.Host, con.Host, "ms-instance")
}

// ServerVersion parses the engine version out of @@VERSION
func ServerVersion(con *connection.SQLConnection) (semver.Version, error) {
	var serverVersion string
	if err := con.Connection.Get(&serverVersion, serverVersionQuery); err != nil {
		return semver.Version{}, fmt.Errorf("%w: %w", ErrServerVersion, err)
	}
	log.Debug("Server version: %s", serverVersion)

	versionStr := versionRegex.FindString(serverVersion)
	if versionStr == "" {
		return semver.Version{}, fmt.Errorf("%w: no version number in %q", ErrServerVersion, serverVersion)
	}

	version, err := semver.ParseTolerant(versionStr)
	if err != nil {
		return semver.Version{}, fmt.Errorf("%w: %w", ErrServerVersion, err)
	}
	log.Debug("Parsed semantic version: %s", version)
	return version, nil
}
