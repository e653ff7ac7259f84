// Package validation checks that the monitoring login can read what the integration needs
package validation

import (
	"github.com/newrelic/infra-integrations-sdk/v3/log"
	"github.com/newrelic/nri-mssql-lockwait/src/catalog"
	"github.com/newrelic/nri-mssql-lockwait/src/connection"
)

// ValidatePreConditions checks the login may read the session DMVs
func ValidatePreConditions(sqlConnection *connection.SQLConnection) bool {
	log.Debug("Starting pre-requisite validation")

	hasPerms, err := checkPermissions(sqlConnection)
	if err != nil {
		log.Error("Error checking permissions: %s", err.Error())
		return false
	}
	if !hasPerms {
		log.Error("Missing VIEW SERVER STATE permission needed to read sys.dm_exec_requests. Obtain permissions: https://docs.newrelic.com/install/microsoft-sql/")
		return false
	}

	log.Debug("Pre-requisite validation completed successfully")
	return true
}

// PageInspectionMode downgrades mode when the login cannot use it. DBCC PAGE is
// restricted to sysadmin.
func PageInspectionMode(sqlConnection *connection.SQLConnection, mode catalog.PageInspectionMode) catalog.PageInspectionMode {
	if mode != catalog.PageDBCC {
		return mode
	}

	isSysadmin, err := checkSysadmin(sqlConnection)
	if err != nil {
		log.Warn("Could not check sysadmin membership, page inspection disabled: %s", err.Error())
		return catalog.PageDisabled
	}
	if !isSysadmin {
		log.Info("DBCC PAGE requires sysadmin, page inspection disabled")
		return catalog.PageDisabled
	}
	return mode
}
