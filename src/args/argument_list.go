// Package args contains the argument list, defined as a struct, along with a method that validates passed-in args
package args

import (
	"errors"
	"fmt"

	sdkArgs "github.com/newrelic/infra-integrations-sdk/v3/args"
	"github.com/newrelic/infra-integrations-sdk/v3/log"
)

var (
	ErrMissingHostname       = errors.New("invalid configuration: must specify a hostname")
	ErrPortAndInstance       = errors.New("invalid configuration: specify either port or instance but not both")
	ErrMissingCertificate    = errors.New("invalid configuration: must specify a certificate file when using SSL and not trusting server certificate")
	ErrInvalidOutputFormat   = errors.New("invalid configuration: output_format must be one of tree, flat or grouped")
	ErrNegativeMinDuration   = errors.New("invalid configuration: min_blocking_duration must not be negative")
	ErrInvalidMaxChainDepth  = errors.New("invalid configuration: max_chain_depth must be greater than zero")
	ErrInvalidConcurrency    = errors.New("invalid configuration: decode_concurrency must be greater than zero")
	ErrInvalidCatalogCache   = errors.New("invalid configuration: catalog_cache_size must be greater than zero")
	ErrInvalidMaxConnections = errors.New("invalid configuration: max_database_connections must be greater than zero")
	ErrNothingToDo           = errors.New("invalid configuration: blocking_chains is disabled and no wait_resource was given")
	ErrAzureADWithoutAccount = errors.New("invalid configuration: enable_azure_ad_auth requires a username (client id) and password (client secret)")
)

// Output formats accepted by the OutputFormat argument and blocking.Render
const (
	FormatTree    = "tree"
	FormatFlat    = "flat"
	FormatGrouped = "grouped"
)

// ArgumentList struct that holds all MSSQL arguments
type ArgumentList struct {
	sdkArgs.DefaultArgumentList
	Username               string `default:"" help:"The Microsoft SQL Server connection user name"`
	Password               string `default:"" help:"The Microsoft SQL Server connection password"`
	Instance               string `default:"" help:"The Microsoft SQL Server instance to connect to"`
	Hostname               string `default:"127.0.0.1" help:"The Microsoft SQL Server connection host name"`
	Port                   string `default:"" help:"The Microsoft SQL Server port to connect to. Only needed when instance not specified"`
	EnableSSL              bool   `default:"false" help:"If true will use SSL encryption, false will not use encryption"`
	TrustServerCertificate bool   `default:"false" help:"If true server certificate is not verified for SSL. If false certificate will be verified against supplied certificate"`
	CertificateLocation    string `default:"" help:"Certificate file to verify SSL encryption against"`
	EnableAzureADAuth      bool   `default:"false" help:"If true, authenticate as an Azure AD service principal using username as client id and password as client secret"`
	Timeout                string `default:"30" help:"Timeout in seconds for a single SQL Query. Set 0 for no timeout"`
	ExtraConnectionURLArgs string `default:"" help:"Appends additional parameters to connection url. Ex. 'applicationintent=readonly&foo=bar'"`

	BlockingChains              bool   `default:"true" help:"Capture a session snapshot and report the blocking chains found in it"`
	OutputFormat                string `default:"tree" help:"Rendering of the blocking chains written to the report: tree, flat or grouped"`
	ReportFile                  string `default:"" help:"File the rendered blocking report is written to. When empty the report is logged"`
	IncludeSQLText              bool   `default:"false" help:"Report the full SQL text of each session instead of a short preview"`
	AnonymizeSQLText            bool   `default:"true" help:"Replace literals in reported SQL text with '?'"`
	MinBlockingDuration         int    `default:"0" help:"Minimum blocking duration in seconds for a blocked session to be reported"`
	ActiveBlockingOnly          bool   `default:"false" help:"Ignore sleeping sessions unless they are blocking other sessions"`
	MaxChainDepth               int    `default:"32767" help:"Maximum depth followed when building blocking chains"`
	WaitCategoriesConfig        string `default:"" help:"YAML file overriding the wait type prefixes counted as lock and I/O waits"`
	WaitResource                string `default:"" help:"A single wait resource string to decode, for example 'KEY: 5:72057594038321152 (8194443284a0)'"`
	DecodeSnapshotWaitResources bool   `default:"true" help:"Decode the wait resource of every blocked session in the snapshot"`
	DecodeConcurrency           int    `default:"4" help:"Number of wait resources decoded in parallel"`
	CatalogCacheSize            int    `default:"512" help:"Number of catalog lookups cached during one run"`
	MaxDatabaseConnections      int    `default:"8" help:"Number of per-database connections kept open while decoding"`
}

// Validate validates SQL specific arguments
func (al *ArgumentList) Validate() error {
	if al.Hostname == "" {
		return ErrMissingHostname
	}

	if al.Port != "" && al.Instance != "" {
		return ErrPortAndInstance
	} else if al.Port == "" && al.Instance == "" {
		log.Info("Both port and instance were not specified using default port of 1433")
		al.Port = "1433"
	}

	if al.EnableSSL && (!al.TrustServerCertificate && al.CertificateLocation == "") {
		return ErrMissingCertificate
	}

	if al.EnableAzureADAuth && (al.Username == "" || al.Password == "") {
		return ErrAzureADWithoutAccount
	}

	return al.validateBlockingOptions()
}

func (al *ArgumentList) validateBlockingOptions() error {
	switch al.OutputFormat {
	case FormatTree, FormatFlat, FormatGrouped:
	case "":
		al.OutputFormat = FormatTree
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOutputFormat, al.OutputFormat)
	}

	if al.MinBlockingDuration < 0 {
		return ErrNegativeMinDuration
	}

	if al.MaxChainDepth <= 0 {
		return ErrInvalidMaxChainDepth
	}

	if al.DecodeConcurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if al.CatalogCacheSize <= 0 {
		return ErrInvalidCatalogCache
	}

	if al.MaxDatabaseConnections <= 0 {
		return ErrInvalidMaxConnections
	}

	if !al.BlockingChains && al.WaitResource == "" {
		return ErrNothingToDo
	}

	return nil
}
