package metrics

import (
	"strings"

	"github.com/newrelic/infra-integrations-sdk/v3/data/attribute"
	"github.com/newrelic/infra-integrations-sdk/v3/log"
	"github.com/newrelic/nri-mssql-lockwait/src/blocking"
	"github.com/newrelic/nri-mssql-lockwait/src/database"
	"github.com/newrelic/nri-mssql-lockwait/src/waitresource"
)

// Event types
const (
	WaitResourceSample    = "MssqlWaitResourceSample"
	BlockingChainSample   = "MssqlBlockingChainSample"
	BlockingSummarySample = "MssqlBlockingSummarySample"
	BlockingWaitSample    = "MssqlBlockingWaitTypeSample"
	BlockingDBSample      = "MssqlBlockingDatabaseSample"
)

// PopulateWaitResources adds one MssqlWaitResourceSample per decoded resource
func (p *Publisher) PopulateWaitResources(resources []waitresource.DecodedResource) error {
	for _, r := range resources {
		ms, err := p.instanceSample(WaitResourceSample,
			attribute.Attribute{Key: "waitResource", Value: r.WaitResource},
			attribute.Attribute{Key: "resourceType", Value: r.ResourceType},
		)
		if err != nil {
			return err
		}

		setIDAttribute(ms, "databaseId", r.DatabaseID)
		setAttribute(ms, "databaseName", r.DatabaseName)
		setAttribute(ms, "schemaName", r.SchemaName)
		setAttribute(ms, "objectName", r.ObjectName)
		setAttribute(ms, "indexName", r.IndexName)
		setAttribute(ms, "objectType", r.ObjectType)
		setIDAttribute(ms, "objectId", r.ObjectID)
		setIDAttribute(ms, "indexId", r.IndexID)
		setAttribute(ms, "pageType", r.PageType)
		setIDAttribute(ms, "fileId", r.FileID)
		setIDAttribute(ms, "pageId", r.PageID)
		setIDAttribute(ms, "slotId", r.SlotID)
		setIDAttribute(ms, "hobtId", r.HobtID)
		setIDAttribute(ms, "partitionId", r.PartitionID)
		setAttribute(ms, "info", r.Info)
		setAttribute(ms, "errorMessage", r.ErrorMessage)

		if err := p.added(); err != nil {
			return err
		}
	}
	return nil
}

// PopulateBlocking adds the summary, one chain sample per placed or orphaned session,
// the wait type breakdown and the per database breakdown
func (p *Publisher) PopulateBlocking(r blocking.Result) error {
	summary, err := p.instanceSample(BlockingSummarySample)
	if err != nil {
		return err
	}
	if err := summary.MarshalMetrics(r.Summary); err != nil {
		log.Error("Could not set blocking summary metrics: %s", err.Error())
	}
	if err := p.added(); err != nil {
		return err
	}

	for _, n := range r.Flat() {
		if err := p.populateChainNode(n); err != nil {
			return err
		}
	}

	for _, stat := range r.WaitTypes {
		ms, err := p.instanceSample(BlockingWaitSample)
		if err != nil {
			return err
		}
		if err := ms.MarshalMetrics(stat); err != nil {
			log.Error("Could not set metrics for wait type '%s': %s", stat.WaitType, err.Error())
		}
		if err := p.added(); err != nil {
			return err
		}
	}

	return p.populateDatabases(r.Databases)
}

func (p *Publisher) populateChainNode(n *blocking.Node) error {
	ms, err := p.instanceSample(BlockingChainSample)
	if err != nil {
		return err
	}

	setGauge(ms, "sessionId", n.SessionID)
	setGauge(ms, "blockedBy", n.BlockedBy)
	setGauge(ms, "blockingLevel", n.Level)
	setGauge(ms, "blockingDurationInSeconds", n.BlockingDuration)
	setGauge(ms, "openTransactionCount", n.OpenTransactions)
	if n.WaitTimeMs != nil {
		setGauge(ms, "waitTimeInMilliseconds", *n.WaitTimeMs)
	}

	role := "blocked"
	switch {
	case n.Head:
		role = "head"
	case n.Orphan():
		role = "orphan"
		reason := string(n.OrphanReason)
		setAttribute(ms, "orphanReason", &reason)
	}
	setAttribute(ms, "role", &role)
	if n.Path != "" {
		setAttribute(ms, "chainPath", &n.Path)
	}
	if n.LoginTime != nil {
		loginTime := n.LoginTime.UTC().Format("2006-01-02T15:04:05Z")
		setAttribute(ms, "loginTime", &loginTime)
	}
	setAttribute(ms, "hostName", n.HostName)
	setAttribute(ms, "programName", n.ProgramName)
	setAttribute(ms, "loginName", n.LoginName)
	setAttribute(ms, "databaseName", n.DatabaseName)
	setAttribute(ms, "status", n.Status)
	setAttribute(ms, "command", n.Command)
	setAttribute(ms, "waitType", n.WaitType)
	setAttribute(ms, "waitResource", n.WaitResource)
	if n.SQL != "" {
		setAttribute(ms, "sqlText", &n.SQL)
	}

	return p.added()
}

// populateDatabases reports each database breakdown on its ms-database entity
func (p *Publisher) populateDatabases(stats []blocking.DatabaseStat) error {
	dbNames := make([]string, 0, len(stats))
	for _, stat := range stats {
		if stat.KnownDatabase() {
			dbNames = append(dbNames, stat.DatabaseName)
		}
	}

	// entities are recreated after every flush, so each stat builds its own lookup
	for _, stat := range stats {
		if !stat.KnownDatabase() {
			log.Debug("Skipping database breakdown without a database name: %d blocked sessions", stat.BlockedSessions)
			continue
		}

		dbEntities, err := database.CreateDatabaseEntities(p.integration, p.host, p.instanceName, []string{stat.DatabaseName})
		if err != nil {
			return err
		}
		lookup := database.CreateDBEntitySetLookup(dbEntities, BlockingDBSample, p.instanceName, p.host, p.runID)

		ms, ok := lookup.MetricSetFromModel(stat)
		if !ok {
			log.Error("Unable to determine database entity for %+v", stat)
			continue
		}
		if err := ms.MarshalMetrics(stat); err != nil {
			log.Error("Error setting database metrics: %s", err.Error())
		}
		if err := p.added(); err != nil {
			return err
		}
	}

	log.Debug("Reported blocking breakdown for databases [%s]", strings.Join(dbNames, ", "))
	return nil
}
