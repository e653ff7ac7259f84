// Package metrics turns decoded wait resources and blocking chains into samples
package metrics

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/newrelic/infra-integrations-sdk/v3/data/attribute"
	"github.com/newrelic/infra-integrations-sdk/v3/data/metric"
	"github.com/newrelic/infra-integrations-sdk/v3/integration"
	"github.com/newrelic/infra-integrations-sdk/v3/log"
)

// DefaultBatchSize keeps every payload well below the SDK limit of 1000 metric sets per publish
const DefaultBatchSize = 100

// Publisher writes samples on the instance entity and publishes them in batches.
// Every sample of one Publisher carries the same runId.
type Publisher struct {
	integration  *integration.Integration
	host         string
	instanceName string
	idAttrs      []integration.IDAttribute
	runID        string
	batchSize    int
	pending      int
}

// NewPublisher creates a Publisher for the entity returned by instance.CreateInstanceEntity
func NewPublisher(i *integration.Integration, instanceEntity *integration.Entity, host string) *Publisher {
	return &Publisher{
		integration:  i,
		host:         host,
		instanceName: instanceEntity.Metadata.Name,
		idAttrs:      instanceEntity.Metadata.IDAttrs,
		runID:        uuid.NewString(),
		batchSize:    DefaultBatchSize,
	}
}

// RunID identifies the samples of this run
func (p *Publisher) RunID() string {
	return p.runID
}

// InstanceEntity returns the instance entity of the current batch
func (p *Publisher) InstanceEntity() (*integration.Entity, error) {
	return p.integration.EntityReportedVia(p.host, p.instanceName, "ms-instance", p.idAttrs...)
}

// Flush publishes everything collected since the last publish
func (p *Publisher) Flush() error {
	if err := p.integration.Publish(); err != nil {
		return err
	}
	p.integration.Clear()
	p.pending = 0
	return nil
}

// instanceSample creates a metric set of eventType on the instance entity
func (p *Publisher) instanceSample(eventType string, attributes ...attribute.Attribute) (*metric.Set, error) {
	e, err := p.InstanceEntity()
	if err != nil {
		return nil, err
	}

	attrs := append([]attribute.Attribute{
		{Key: "displayName", Value: e.Metadata.Name},
		{Key: "entityName", Value: e.Metadata.Namespace + ":" + e.Metadata.Name},
		{Key: "host", Value: p.host},
		{Key: "instance", Value: e.Metadata.Name},
		{Key: "runId", Value: p.runID},
	}, attributes...)

	return e.NewMetricSet(eventType, attrs...), nil
}

// added counts one sample and publishes once a batch is full
func (p *Publisher) added() error {
	p.pending++
	if p.pending < p.batchSize {
		return nil
	}
	if err := p.Flush(); err != nil {
		return fmt.Errorf("error publishing batch of %d samples: %w", p.batchSize, err)
	}
	return nil
}

func setAttribute(ms *metric.Set, name string, value *string) {
	if value == nil {
		return
	}
	if err := ms.SetMetric(name, *value, metric.ATTRIBUTE); err != nil {
		log.Error("Could not set attribute '%s': %s", name, err.Error())
	}
}

// setIDAttribute records an identifier as a string so large ids keep their precision
func setIDAttribute(ms *metric.Set, name string, value *int64) {
	if value == nil {
		return
	}
	id := strconv.FormatInt(*value, 10)
	setAttribute(ms, name, &id)
}

func setGauge(ms *metric.Set, name string, value interface{}) {
	if err := ms.SetMetric(name, value, metric.GAUGE); err != nil {
		log.Error("Could not set metric '%s': %s", name, err.Error())
	}
}
