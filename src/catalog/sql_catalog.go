package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/newrelic/infra-integrations-sdk/v3/log"
	"github.com/newrelic/nri-mssql-lockwait/src/connection"
)

// SQLCatalog implements Lookup against a live SQL Server. Server level metadata is read
// over the server connection; database level metadata over a connection opened with that
// database as initial catalog. Those connections are kept in an LRU and closed on eviction.
type SQLCatalog struct {
	server    *connection.SQLConnection
	connector connection.Connector
	pageMode  PageInspectionMode

	mu      sync.Mutex
	dbConns *lru.Cache[string, *connection.SQLConnection]
}

// NewSQLCatalog creates a SQLCatalog keeping at most maxDatabaseConnections open
func NewSQLCatalog(server *connection.SQLConnection, connector connection.Connector, pageMode PageInspectionMode, maxDatabaseConnections int) (*SQLCatalog, error) {
	dbConns, err := lru.NewWithEvict(maxDatabaseConnections, func(name string, con *connection.SQLConnection) {
		log.Debug("Closing connection to database '%s'", name)
		con.Close()
	})
	if err != nil {
		return nil, err
	}

	return &SQLCatalog{
		server:    server,
		connector: connector,
		pageMode:  pageMode,
		dbConns:   dbConns,
	}, nil
}

// PageMode returns the page inspection mode in use
func (c *SQLCatalog) PageMode() PageInspectionMode {
	return c.pageMode
}

// Close closes every database connection opened by the catalog.
// The server connection belongs to the caller and is left open.
func (c *SQLCatalog) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dbConns.Purge()
}

// DatabaseState implements Lookup
func (c *SQLCatalog) DatabaseState(ctx context.Context, databaseID int64) (Database, error) {
	var db Database
	if err := c.server.GetContext(ctx, &db, databaseStateQuery, databaseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Database{}, fmt.Errorf("%w: id %d", ErrDatabaseNotFound, databaseID)
		}
		return Database{}, err
	}
	return db, nil
}

// LookupHobt implements Lookup
func (c *SQLCatalog) LookupHobt(ctx context.Context, databaseName string, hobtID int64) (Hobt, error) {
	con, err := c.databaseConnection(databaseName)
	if err != nil {
		return Hobt{}, err
	}

	var hobt Hobt
	if err := con.GetContext(ctx, &hobt, hobtQuery, hobtID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Hobt{}, fmt.Errorf("%w: hobt %d in database %s", ErrNotFound, hobtID, databaseName)
		}
		return Hobt{}, err
	}
	return hobt, nil
}

// DescribeObject implements Lookup
func (c *SQLCatalog) DescribeObject(ctx context.Context, databaseName string, objectID int64, indexID *int64) (Object, error) {
	con, err := c.databaseConnection(databaseName)
	if err != nil {
		return Object{}, err
	}

	var index interface{}
	if indexID != nil {
		index = *indexID
	}

	var obj Object
	if err := con.GetContext(ctx, &obj, objectQuery, objectID, index); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Object{}, fmt.Errorf("%w: object %d in database %s", ErrNotFound, objectID, databaseName)
		}
		return Object{}, err
	}
	return obj, nil
}

// DescribePage implements Lookup
func (c *SQLCatalog) DescribePage(ctx context.Context, databaseID, fileID, pageID int64) (Page, error) {
	return describePage(ctx, c.server, c.pageMode, databaseID, fileID, pageID)
}

func (c *SQLCatalog) databaseConnection(databaseName string) (*connection.SQLConnection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if con, ok := c.dbConns.Get(databaseName); ok {
		return con, nil
	}

	con, err := c.connector.Open(databaseName)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database %s: %w", databaseName, err)
	}
	c.dbConns.Add(databaseName, con)
	return con, nil
}
