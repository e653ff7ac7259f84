package metrics

import (
	"bytes"
	"strings"
	"testing"

	"github.com/newrelic/infra-integrations-sdk/v3/data/metric"
	"github.com/newrelic/infra-integrations-sdk/v3/integration"
	"github.com/newrelic/nri-mssql-lockwait/src/blocking"
	"github.com/newrelic/nri-mssql-lockwait/src/waitresource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

func createTestPublisher(t *testing.T) (*Publisher, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	i, err := integration.New("test", "1.0.0", integration.Writer(buf))
	require.NoError(t, err)

	instanceIDAttr := integration.NewIDAttribute("instance", "testinstance")
	e, err := i.EntityReportedVia("testhost", "testinstance", "ms-instance", instanceIDAttr)
	require.NoError(t, err)

	return NewPublisher(i, e, "testhost"), buf
}

func samplesOf(e *integration.Entity, eventType string) []*metric.Set {
	var sets []*metric.Set
	for _, ms := range e.Metrics {
		if ms.Metrics["event_type"] == eventType {
			sets = append(sets, ms)
		}
	}
	return sets
}

func entityByNamespace(i *integration.Integration, namespace string) *integration.Entity {
	for _, e := range i.Entities {
		if e.Metadata != nil && e.Metadata.Namespace == namespace {
			return e
		}
	}
	return nil
}

func TestNewPublisher(t *testing.T) {
	p, _ := createTestPublisher(t)

	assert.NotEmpty(t, p.RunID())
	assert.Equal(t, DefaultBatchSize, p.batchSize)

	e, err := p.InstanceEntity()
	require.NoError(t, err)
	assert.Equal(t, "testinstance", e.Metadata.Name)
	assert.Equal(t, "ms-instance", e.Metadata.Namespace)

	other, _ := createTestPublisher(t)
	assert.NotEqual(t, p.RunID(), other.RunID())
}

func TestPopulateWaitResources(t *testing.T) {
	p, _ := createTestPublisher(t)

	resources := []waitresource.DecodedResource{
		{
			WaitResource: "KEY: 5:72057594038321152 (8194443284a0)",
			ResourceType: "KEY",
			DatabaseID:   int64Ptr(5),
			DatabaseName: strPtr("Sales"),
			SchemaName:   strPtr("dbo"),
			ObjectName:   strPtr("Orders"),
			IndexName:    strPtr("PK_Orders"),
			ObjectID:     int64Ptr(245575913),
			IndexID:      int64Ptr(1),
			HobtID:       int64Ptr(72057594038321152),
		},
		{
			WaitResource: "KEY: 9:1 (ab)",
			ResourceType: "KEY",
			DatabaseID:   int64Ptr(9),
			ErrorMessage: strPtr("database not found"),
		},
	}

	require.NoError(t, p.PopulateWaitResources(resources))

	e, err := p.InstanceEntity()
	require.NoError(t, err)
	sets := samplesOf(e, WaitResourceSample)
	require.Len(t, sets, 2)

	key := sets[0].Metrics
	assert.Equal(t, "KEY: 5:72057594038321152 (8194443284a0)", key["waitResource"])
	assert.Equal(t, "KEY", key["resourceType"])
	assert.Equal(t, "Sales", key["databaseName"])
	assert.Equal(t, "Orders", key["objectName"])
	assert.Equal(t, "PK_Orders", key["indexName"])
	assert.Equal(t, "72057594038321152", key["hobtId"])
	assert.Equal(t, "245575913", key["objectId"])
	assert.Equal(t, "testinstance", key["instance"])
	assert.Equal(t, p.RunID(), key["runId"])
	assert.NotContains(t, key, "pageType")
	assert.NotContains(t, key, "errorMessage")

	failed := sets[1].Metrics
	assert.Equal(t, "database not found", failed["errorMessage"])
	assert.NotContains(t, failed, "databaseName")
}

func blockingFixture() blocking.Result {
	return blocking.Resolve([]blocking.Session{
		{SessionID: 60, DatabaseName: strPtr("Sales"), Status: strPtr("sleeping"), SQLText: strPtr("COMMIT")},
		{
			SessionID:        61,
			BlockedBy:        60,
			DatabaseName:     strPtr("Sales"),
			WaitType:         strPtr("LCK_M_X"),
			WaitTimeMs:       int64Ptr(12000),
			WaitResource:     strPtr("KEY: 5:72057594038321152 (8194443284a0)"),
			BlockingDuration: 12,
		},
		{SessionID: 62, BlockedBy: 9999, BlockingDuration: 4},
	}, blocking.Options{})
}

func TestPopulateBlocking(t *testing.T) {
	p, _ := createTestPublisher(t)

	require.NoError(t, p.PopulateBlocking(blockingFixture()))

	e, err := p.InstanceEntity()
	require.NoError(t, err)

	summary := samplesOf(e, BlockingSummarySample)
	require.Len(t, summary, 1)
	assert.Equal(t, float64(2), summary[0].Metrics["blocking.totalBlockedSessions"])
	assert.Equal(t, float64(1), summary[0].Metrics["blocking.heads"])
	assert.Equal(t, float64(1), summary[0].Metrics["blocking.orphanSessions"])
	assert.Equal(t, float64(1), summary[0].Metrics["blocking.maxDepth"])

	chain := samplesOf(e, BlockingChainSample)
	require.Len(t, chain, 3)
	assert.Equal(t, "head", chain[0].Metrics["role"])
	assert.Equal(t, float64(60), chain[0].Metrics["sessionId"])
	assert.Equal(t, "00060", chain[0].Metrics["chainPath"])
	assert.Equal(t, "COMMIT", chain[0].Metrics["sqlText"])

	assert.Equal(t, "blocked", chain[1].Metrics["role"])
	assert.Equal(t, float64(60), chain[1].Metrics["blockedBy"])
	assert.Equal(t, float64(1), chain[1].Metrics["blockingLevel"])
	assert.Equal(t, "00060/00061", chain[1].Metrics["chainPath"])
	assert.Equal(t, "LCK_M_X", chain[1].Metrics["waitType"])
	assert.Equal(t, float64(12000), chain[1].Metrics["waitTimeInMilliseconds"])

	assert.Equal(t, "orphan", chain[2].Metrics["role"])
	assert.Equal(t, "blocker_not_found", chain[2].Metrics["orphanReason"])
	assert.NotContains(t, chain[2].Metrics, "chainPath")

	waits := samplesOf(e, BlockingWaitSample)
	require.Len(t, waits, 1)
	assert.Equal(t, "LCK_M_X", waits[0].Metrics["waitType"])
	assert.Equal(t, float64(1), waits[0].Metrics["blocking.sessions"])

	dbEntity := entityByNamespace(p.integration, "ms-database")
	require.NotNil(t, dbEntity)
	assert.Equal(t, "Sales", dbEntity.Metadata.Name)
	dbSets := samplesOf(dbEntity, BlockingDBSample)
	require.Len(t, dbSets, 1)
	assert.Equal(t, float64(1), dbSets[0].Metrics["blocking.blockedSessions"])
	assert.Equal(t, p.RunID(), dbSets[0].Metrics["runId"])
}

func TestPopulateBlocking_IncludeSQLText(t *testing.T) {
	p, _ := createTestPublisher(t)

	r := blocking.Resolve([]blocking.Session{
		{SessionID: 60, SQLText: strPtr("UPDATE t SET a = 1")},
		{SessionID: 61, BlockedBy: 60},
	}, blocking.Options{IncludeSQLText: true})
	require.NoError(t, p.PopulateBlocking(r))

	e, err := p.InstanceEntity()
	require.NoError(t, err)
	chain := samplesOf(e, BlockingChainSample)
	require.Len(t, chain, 2)
	assert.Equal(t, "UPDATE t SET a = 1", chain[0].Metrics["sqlText"])
}

func TestPublisher_Batches(t *testing.T) {
	p, buf := createTestPublisher(t)
	p.batchSize = 2

	resources := make([]waitresource.DecodedResource, 5)
	for i := range resources {
		resources[i] = waitresource.DecodedResource{WaitResource: "OBJECT: 5:245575913:0", ResourceType: "OBJECT"}
	}
	require.NoError(t, p.PopulateWaitResources(resources))
	assert.Equal(t, 2, strings.Count(buf.String(), "protocol_version"))

	e, err := p.InstanceEntity()
	require.NoError(t, err)
	assert.Len(t, samplesOf(e, WaitResourceSample), 1)

	require.NoError(t, p.Flush())
	assert.Equal(t, 3, strings.Count(buf.String(), "protocol_version"))
	assert.Equal(t, 0, p.pending)
}
