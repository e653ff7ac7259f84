// Package inventory contains all the code used to collect inventory items from the target
package inventory

import (
	"github.com/newrelic/infra-integrations-sdk/v3/integration"
	"github.com/newrelic/infra-integrations-sdk/v3/log"
	"github.com/newrelic/nri-mssql-lockwait/src/connection"
)

// lockConfigQuery reads the server options that shape lock waits and blocking
const lockConfigQuery = `select name, CAST(value_in_use AS INT) AS value from sys.configurations
	where name in ('locks', 'blocked process threshold (s)', 'query wait (s)', 'remote query timeout (s)')`

// ConfigQueryRow represents a row in the table returned by lockConfigQuery
type ConfigQueryRow struct {
	Name  string `db:"name"`
	Value int    `db:"value"`
}

// Settings describes how this run decodes and resolves
type Settings struct {
	ServerVersion       string
	PageInspection      string
	OutputFormat        string
	MaxChainDepth       int
	MinBlockingDuration int
	ActiveBlockingOnly  bool
	IncludeSQLText      bool
}

// PopulateInventory records the server version, run settings and lock related
// configuration on the instance entity
func PopulateInventory(instanceEntity *integration.Entity, connection *connection.SQLConnection, settings Settings) {
	populateSettings(instanceEntity, settings)

	if err := populateLockConfigItems(instanceEntity, connection); err != nil {
		log.Error("Error collecting inventory items from sys.configurations: %s", err.Error())
	}
}

func populateSettings(instanceEntity *integration.Entity, settings Settings) {
	if settings.ServerVersion != "" {
		setItemOrLog(instanceEntity, "server/version", settings.ServerVersion)
	}
	setItemOrLog(instanceEntity, "lockwait/page_inspection", settings.PageInspection)
	setItemOrLog(instanceEntity, "lockwait/output_format", settings.OutputFormat)
	setItemOrLog(instanceEntity, "lockwait/max_chain_depth", settings.MaxChainDepth)
	setItemOrLog(instanceEntity, "lockwait/min_blocking_duration", settings.MinBlockingDuration)
	setItemOrLog(instanceEntity, "lockwait/active_blocking_only", settings.ActiveBlockingOnly)
	setItemOrLog(instanceEntity, "lockwait/include_sql_text", settings.IncludeSQLText)
}

// populateLockConfigItems collect inventory items from sys.configurations
func populateLockConfigItems(instanceEntity *integration.Entity, connection *connection.SQLConnection) error {
	configRows := make([]*ConfigQueryRow, 0)
	if err := connection.Query(&configRows, lockConfigQuery); err != nil {
		return err
	}

	for _, row := range configRows {
		itemName := row.Name + "/config_value"
		setItemOrLog(instanceEntity, itemName, row.Value)
	}

	return nil
}

// setItemOrLog attempts to set and inventory item. If there
// is an error it is logged as such
func setItemOrLog(instanceEntity *integration.Entity, key string, value interface{}) {
	if err := instanceEntity.SetInventoryItem(key, "value", value); err != nil {
		log.Error("Error setting inventory item '%s': %s", key, err.Error())
	}
}
