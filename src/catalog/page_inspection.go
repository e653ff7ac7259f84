package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/blang/semver/v4"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/newrelic/infra-integrations-sdk/v3/log"
	"github.com/newrelic/nri-mssql-lockwait/src/connection"
)

// PageInspectionMode selects how page allocation metadata is read
type PageInspectionMode string

const (
	// PageInfoDMV uses sys.dm_db_page_info
	PageInfoDMV PageInspectionMode = "dm_db_page_info"
	// PageDBCC uses DBCC PAGE WITH TABLERESULTS
	PageDBCC PageInspectionMode = "dbcc_page"
	// PageDisabled never inspects pages
	PageDisabled PageInspectionMode = "disabled"
)

// pageInfoMinMajor is the major version of SQL Server 2019
const pageInfoMinMajor = 15

// SQL Server error numbers meaning the facility is missing or denied
var pageInspectionDenied = map[int32]bool{
	208:  true, // invalid object name
	229:  true, // permission denied on object
	297:  true, // user does not have permission to perform this action
	300:  true, // VIEW SERVER STATE permission denied
	2571: true, // user does not have permission to use DBCC
	2583: true, // DBCC PAGE database or page id out of range
}

// PageInspectionForVersion picks the page inspection mode available on a server version
func PageInspectionForVersion(version semver.Version) PageInspectionMode {
	if version.Major >= pageInfoMinMajor {
		return PageInfoDMV
	}
	return PageDBCC
}

// dbccPageRow is a row of DBCC PAGE WITH TABLERESULTS
type dbccPageRow struct {
	ParentObject string `db:"ParentObject"`
	Object       string `db:"Object"`
	Field        string `db:"Field"`
	Value        string `db:"VALUE"`
}

func describePage(ctx context.Context, con *connection.SQLConnection, mode PageInspectionMode, databaseID, fileID, pageID int64) (Page, error) {
	switch mode {
	case PageInfoDMV:
		var page Page
		if err := con.GetContext(ctx, &page, pageInfoQuery, databaseID, fileID, pageID); err != nil {
			return Page{}, pageInspectionError(err)
		}
		return page, nil
	case PageDBCC:
		rows := make([]dbccPageRow, 0)
		if err := con.QueryContext(ctx, &rows, dbccPageQuery, databaseID, fileID, pageID); err != nil {
			return Page{}, pageInspectionError(err)
		}
		return parseDBCCPage(rows)
	default:
		return Page{}, fmt.Errorf("%w: page inspection disabled", ErrPageInspectionUnsupported)
	}
}

// parseDBCCPage extracts the page header fields from DBCC PAGE output
func parseDBCCPage(rows []dbccPageRow) (Page, error) {
	var page Page
	found := 0
	for _, row := range rows {
		var err error
		switch row.Field {
		case dbccFieldObjectID:
			page.ObjectID, err = strconv.ParseInt(row.Value, 10, 64)
		case dbccFieldIndexID:
			page.IndexID, err = strconv.ParseInt(row.Value, 10, 64)
		case dbccFieldPageType:
			page.PageTypeCode, err = strconv.Atoi(row.Value)
		default:
			continue
		}
		if err != nil {
			return Page{}, fmt.Errorf("unexpected DBCC PAGE value for %s: %w", row.Field, err)
		}
		found++
	}

	if found == 0 {
		return Page{}, fmt.Errorf("%w: DBCC PAGE returned no header", ErrNotFound)
	}
	return page, nil
}

func pageInspectionError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: page has no allocation metadata", ErrNotFound)
	}

	var sqlErr mssql.Error
	if errors.As(err, &sqlErr) && pageInspectionDenied[sqlErr.Number] {
		log.Debug("Page inspection denied by server: %s", sqlErr.Error())
		return fmt.Errorf("%w: %s", ErrPageInspectionUnsupported, sqlErr.Message)
	}
	return err
}
