// Package database contains helper methods for reporting data about individual databases
package database

import (
	"reflect"

	"github.com/newrelic/infra-integrations-sdk/v3/data/attribute"
	"github.com/newrelic/infra-integrations-sdk/v3/data/metric"
	"github.com/newrelic/infra-integrations-sdk/v3/integration"
)

// DataModeler represents a data model that belongs to one database
type DataModeler interface {
	GetDBName() string
}

// CreateDatabaseEntities instantiates an entity for each named database
func CreateDatabaseEntities(i *integration.Integration, host, instanceName string, dbNames []string) ([]*integration.Entity, error) {
	instanceIDAttr := integration.NewIDAttribute("instance", instanceName)
	dbEntities := make([]*integration.Entity, 0, len(dbNames))
	for _, dbName := range dbNames {
		databaseIDAttr := integration.NewIDAttribute("database", dbName)
		dbEntity, err := i.EntityReportedVia(host, dbName, "ms-database", instanceIDAttr, databaseIDAttr)
		if err != nil {
			return nil, err
		}

		dbEntities = append(dbEntities, dbEntity)
	}

	return dbEntities, nil
}

// DBMetricSetLookup represents a cache of Database entitiy names
// to their corresponding metric set
type DBMetricSetLookup map[string]*metric.Set

// MetricSetFromModel given a data model that implements DataModeler
// retrieve the metric set associated with the database.
//
// ok will be false in two cases, either model does not implement DataModeler
// or a metric set does not exist for the database.
func (l DBMetricSetLookup) MetricSetFromModel(model interface{}) (set *metric.Set, ok bool) {
	dbName := l.getDatabaseName(model)

	if dbName != "" {
		set, ok = l[dbName]
	}

	return
}

// GetDBNames retrieves all names of databases in lookup
func (l DBMetricSetLookup) GetDBNames() []string {
	dbNames := make([]string, 0, len(l))
	for name := range l {
		dbNames = append(dbNames, name)
	}

	return dbNames
}

// getDatabaseName takes in a model and if it implements DataModeler
// then retrieve the name of the database from that model
func (l DBMetricSetLookup) getDatabaseName(model interface{}) string {
	v := reflect.ValueOf(model)
	if !v.IsValid() {
		return ""
	}
	modeler, ok := v.Interface().(DataModeler)
	if !ok {
		return ""
	}

	return modeler.GetDBName()
}

// CreateDBEntitySetLookup creates a look up of Database entity name to a metric.Set of eventType
func CreateDBEntitySetLookup(dbEntities []*integration.Entity, eventType, instanceName, hostname, runID string) DBMetricSetLookup {
	entitySetLookup := make(DBMetricSetLookup)
	for _, dbEntity := range dbEntities {
		set := dbEntity.NewMetricSet(eventType,
			attribute.Attribute{Key: "displayName", Value: dbEntity.Metadata.Name},
			attribute.Attribute{Key: "entityName", Value: dbEntity.Metadata.Namespace + ":" + dbEntity.Metadata.Name},
			attribute.Attribute{Key: "instance", Value: instanceName},
			attribute.Attribute{Key: "host", Value: hostname},
			attribute.Attribute{Key: "runId", Value: runID},
		)

		entitySetLookup[dbEntity.Metadata.Name] = set
	}

	return entitySetLookup
}
