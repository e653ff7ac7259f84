// Package connection contains the SQLConnection type and methods for manipulating and querying the connection
package connection

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	// go-mssqldb registers the sqlserver driver
	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/azuread"
	"github.com/newrelic/infra-integrations-sdk/v3/log"
	"github.com/newrelic/nri-mssql-lockwait/src/args"
)

// DriverName is the go-mssqldb driver taking native @pN parameters
const DriverName = "sqlserver"

// SQLConnection represents a wrapper around a SQL Server connection
type SQLConnection struct {
	Connection *sqlx.DB
	Host       string
	Database   string
}

// Connector opens connections to the server described by a set of arguments,
// optionally with a specific initial database.
type Connector interface {
	Open(dbName string) (*SQLConnection, error)
}

// ArgsConnector opens connections using an ArgumentList
type ArgsConnector struct {
	Args *args.ArgumentList
}

// Open implements Connector
func (c ArgsConnector) Open(dbName string) (*SQLConnection, error) {
	return NewDatabaseConnection(c.Args, dbName)
}

// NewConnection creates a new SQLConnection from args
func NewConnection(args *args.ArgumentList) (*SQLConnection, error) {
	return NewDatabaseConnection(args, "")
}

// NewDatabaseConnection creates a new SQLConnection from args whose initial
// catalog is dbName. An empty dbName uses the login's default database.
func NewDatabaseConnection(args *args.ArgumentList, dbName string) (*SQLConnection, error) {
	driver, dsn := driverAndDSN(args, dbName)
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, err
	}
	return &SQLConnection{
		Connection: db,
		Host:       args.Hostname,
		Database:   dbName,
	}, nil
}

// driverAndDSN picks the driver and connection string for args. Both drivers
// send @pN parameters to the server unchanged.
func driverAndDSN(args *args.ArgumentList, dbName string) (string, string) {
	if args.EnableAzureADAuth {
		return azuread.DriverName, CreateAzureADConnectionURL(args, dbName)
	}
	return DriverName, CreateConnectionURL(args, dbName)
}

// Close closes the SQL connection. If an error occurs
// it is logged as a warning.
func (sc SQLConnection) Close() {
	if err := sc.Connection.Close(); err != nil {
		log.Warn("Unable to close SQL Connection: %s", err.Error())
	}
}

// Query runs a query and loads results into v
func (sc SQLConnection) Query(v interface{}, query string) error {
	log.Debug("Running query: %s", query)
	return sc.Connection.Select(v, query)
}

// QueryContext runs a parameterized query and loads all rows into v
func (sc SQLConnection) QueryContext(ctx context.Context, v interface{}, query string, params ...interface{}) error {
	log.Debug("Running query on '%s': %s", sc.Database, query)
	return sc.Connection.SelectContext(ctx, v, query, params...)
}

// GetContext runs a parameterized query and loads the single resulting row into v
func (sc SQLConnection) GetContext(ctx context.Context, v interface{}, query string, params ...interface{}) error {
	log.Debug("Running query on '%s': %s", sc.Database, query)
	return sc.Connection.GetContext(ctx, v, query, params...)
}

// Queryx runs a query and returns a set of rows
func (sc SQLConnection) Queryx(query string) (*sqlx.Rows, error) {
	return sc.Connection.Queryx(query)
}

// QueryxContext runs a parameterized query and returns a set of rows
func (sc SQLConnection) QueryxContext(ctx context.Context, query string, params ...interface{}) (*sqlx.Rows, error) {
	log.Debug("Running query on '%s': %s", sc.Database, query)
	return sc.Connection.QueryxContext(ctx, query, params...)
}

// CreateConnectionURL tags in args and creates the connection string.
// All args should be validated before calling this.
func CreateConnectionURL(args *args.ArgumentList, dbName string) string {
	connectionURL := &url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(args.Username, args.Password),
		Host:   args.Hostname,
	}

	// If port is present use port if not user instance
	if args.Port != "" {
		connectionURL.Host = fmt.Sprintf("%s:%s", connectionURL.Host, args.Port)
	} else {
		connectionURL.Path = args.Instance
	}

	// Format query parameters
	query := url.Values{}
	if dbName != "" {
		query.Add("database", dbName)
	}
	query.Add("dial timeout", args.Timeout)
	query.Add("connection timeout", args.Timeout)

	if args.ExtraConnectionURLArgs != "" {
		extraArgsMap, err := url.ParseQuery(args.ExtraConnectionURLArgs)
		if err == nil {
			for k, v := range extraArgsMap {
				query.Add(k, v[0])
			}
		} else {
			log.Warn("Could not successfully parse ExtraConnectionURLArgs: %s", err.Error())
		}
	}

	if args.EnableSSL {
		query.Add("encrypt", "true")
		query.Add("TrustServerCertificate", strconv.FormatBool(args.TrustServerCertificate))
		if !args.TrustServerCertificate {
			query.Add("certificate", args.CertificateLocation)
		}
	}

	connectionURL.RawQuery = query.Encode()
	return connectionURL.String()
}

// CreateAzureADConnectionURL creates an ADO style connection string authenticating
// as an Azure AD service principal. Username is expected as client-id@tenant-id.
func CreateAzureADConnectionURL(args *args.ArgumentList, dbName string) string {
	port := args.Port
	if port == "" {
		port = "1433"
	}

	parts := []string{
		"server=" + args.Hostname,
		"port=" + port,
		"database=" + dbName,
		"user id=" + args.Username,
		"password=" + args.Password,
		"fedauth=" + azuread.ActiveDirectoryServicePrincipal,
		"dial timeout=" + args.Timeout,
		"connection timeout=" + args.Timeout,
	}

	if args.EnableSSL {
		parts = append(parts, "encrypt=true", "TrustServerCertificate="+strconv.FormatBool(args.TrustServerCertificate))
		if !args.TrustServerCertificate && args.CertificateLocation != "" {
			parts = append(parts, "certificate="+args.CertificateLocation)
		}
	}

	return strings.Join(parts, ";")
}
