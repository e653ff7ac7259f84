package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/newrelic/infra-integrations-sdk/v3/integration"
	"github.com/newrelic/infra-integrations-sdk/v3/log"
	"github.com/newrelic/nri-mssql-lockwait/src/args"
	"github.com/newrelic/nri-mssql-lockwait/src/blocking"
	"github.com/newrelic/nri-mssql-lockwait/src/catalog"
	"github.com/newrelic/nri-mssql-lockwait/src/connection"
	"github.com/newrelic/nri-mssql-lockwait/src/instance"
	"github.com/newrelic/nri-mssql-lockwait/src/inventory"
	"github.com/newrelic/nri-mssql-lockwait/src/metrics"
	"github.com/newrelic/nri-mssql-lockwait/src/validation"
	"github.com/newrelic/nri-mssql-lockwait/src/waitresource"
)

const (
	integrationName    = "com.newrelic.nri-mssql-lockwait"
	integrationVersion = "0.1.0"
)

func main() {
	var argList args.ArgumentList
	// Create Integration
	i, err := integration.New(integrationName, integrationVersion, integration.Args(&argList))
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}

	// Setup logging with verbose
	log.SetupLogging(argList.Verbose)

	// Validate arguments
	if err := argList.Validate(); err != nil {
		log.Error("Configuration error: %s", err)
		os.Exit(1)
	}

	// Create a new connection
	con, err := connection.NewConnection(&argList)
	if err != nil {
		log.Error("Error creating connection to SQL Server: %s", err.Error())
		os.Exit(1)
	}
	defer con.Close()

	// Create the entity for the instance
	instanceEntity, err := instance.CreateInstanceEntity(i, con)
	if err != nil {
		log.Error("Unable to create entity for instance: %s", err.Error())
		os.Exit(1)
	}

	settings := inventory.Settings{
		OutputFormat:        argList.OutputFormat,
		MaxChainDepth:       argList.MaxChainDepth,
		MinBlockingDuration: argList.MinBlockingDuration,
		ActiveBlockingOnly:  argList.ActiveBlockingOnly,
		IncludeSQLText:      argList.IncludeSQLText,
	}

	pageMode := catalog.PageDisabled
	if version, err := instance.ServerVersion(con); err != nil {
		log.Warn("Page inspection disabled: %s", err.Error())
	} else {
		settings.ServerVersion = version.String()
		pageMode = validation.PageInspectionMode(con, catalog.PageInspectionForVersion(version))
	}
	settings.PageInspection = string(pageMode)
	log.Debug("Page inspection mode: %s", pageMode)

	sqlCatalog, err := catalog.NewSQLCatalog(con, connection.ArgsConnector{Args: &argList}, pageMode, argList.MaxDatabaseConnections)
	if err != nil {
		log.Error("Error creating catalog: %s", err.Error())
		os.Exit(1)
	}
	defer sqlCatalog.Close()

	lookup, err := catalog.NewCachedLookup(sqlCatalog, argList.CatalogCacheSize)
	if err != nil {
		log.Error("Error creating catalog cache: %s", err.Error())
		os.Exit(1)
	}
	decoder := waitresource.NewDecoder(lookup, argList.DecodeConcurrency)
	publisher := metrics.NewPublisher(i, instanceEntity, con.Host)

	// Inventory collection
	if argList.HasInventory() {
		inventory.PopulateInventory(instanceEntity, con, settings)
	}

	ctx := context.Background()

	if argList.HasMetrics() {
		if argList.WaitResource != "" {
			decodeWaitResource(ctx, decoder, publisher, argList.WaitResource)
		}

		if argList.BlockingChains {
			if validation.ValidatePreConditions(con) {
				collectBlockingChains(ctx, con, decoder, publisher, argList)
			} else {
				log.Error("Skipping blocking chains, pre-requisite validation failed")
			}
		}
	}

	if err := publisher.Flush(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func decodeWaitResource(ctx context.Context, decoder *waitresource.Decoder, publisher *metrics.Publisher, waitResource string) {
	decoded := decoder.Decode(ctx, waitResource)
	if decoded.Failed() {
		log.Warn("Could not fully decode '%s': %s", waitResource, *decoded.ErrorMessage)
	}
	if err := publisher.PopulateWaitResources([]waitresource.DecodedResource{decoded}); err != nil {
		log.Error("Error publishing decoded wait resource: %s", err.Error())
	}
}

func collectBlockingChains(ctx context.Context, con *connection.SQLConnection, decoder *waitresource.Decoder, publisher *metrics.Publisher, argList args.ArgumentList) {
	opts, err := resolverOptions(argList)
	if err != nil {
		log.Error("Error loading wait categories: %s", err.Error())
		return
	}

	sessions, err := blocking.NewSQLSource(con).Snapshot(ctx)
	if err != nil {
		log.Error("Error capturing session snapshot: %s", err.Error())
		return
	}

	result := blocking.Resolve(sessions, opts)
	if err := writeReport(result, argList); err != nil {
		log.Error("Error writing blocking report: %s", err.Error())
	}

	if err := publisher.PopulateBlocking(result); err != nil {
		log.Error("Error publishing blocking chains: %s", err.Error())
		return
	}

	if !argList.DecodeSnapshotWaitResources {
		return
	}

	nodes := result.Flat()
	waitResources := make([]*string, 0, len(nodes))
	for _, n := range nodes {
		waitResources = append(waitResources, n.WaitResource)
	}
	distinct := waitresource.Distinct(waitResources)
	log.Debug("Decoding %d distinct wait resources from the snapshot", len(distinct))

	if err := publisher.PopulateWaitResources(decoder.DecodeAll(ctx, distinct)); err != nil {
		log.Error("Error publishing decoded wait resources: %s", err.Error())
	}
}

func resolverOptions(argList args.ArgumentList) (blocking.Options, error) {
	opts := blocking.Options{
		IncludeSQLText:      argList.IncludeSQLText,
		MinBlockingDuration: float64(argList.MinBlockingDuration),
		Format:              argList.OutputFormat,
		ActiveOnly:          argList.ActiveBlockingOnly,
		MaxDepth:            argList.MaxChainDepth,
		AnonymizeSQL:        argList.AnonymizeSQLText,
	}

	if argList.WaitCategoriesConfig != "" {
		classifier, err := blocking.LoadClassifier(argList.WaitCategoriesConfig)
		if err != nil {
			return opts, err
		}
		opts.Classifier = &classifier
	}
	return opts, nil
}

// writeReport renders the forest to the report file, or to the log when no file is set
func writeReport(result blocking.Result, argList args.ArgumentList) error {
	if argList.ReportFile == "" {
		var sb strings.Builder
		if err := blocking.Render(&sb, result, argList.OutputFormat); err != nil {
			return err
		}
		if sb.Len() > 0 {
			log.Info("Blocking chains:\n%s", sb.String())
		}
		return nil
	}

	f, err := os.Create(argList.ReportFile)
	if err != nil {
		return err
	}
	return renderAndClose(f, result, argList.OutputFormat)
}

func renderAndClose(w io.WriteCloser, result blocking.Result, format string) error {
	if err := blocking.Render(w, result, format); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
