package catalog

// databaseStateQuery runs on the server connection
const databaseStateQuery = `SELECT database_id, name, state_desc
FROM sys.databases
WHERE database_id = @p1`

// hobtQuery runs on a connection whose initial catalog is the database owning the hobt
const hobtQuery = `SELECT TOP (1) object_id, index_id, partition_id
FROM sys.partitions
WHERE hobt_id = @p1`

// objectQuery runs on a connection whose initial catalog is the database owning the object.
// @p2 may be NULL in which case no index is joined.
const objectQuery = `SELECT
	s.name AS schema_name,
	o.name AS object_name,
	o.type_desc AS object_type,
	i.name AS index_name,
	i.index_id AS index_id
FROM sys.objects o
INNER JOIN sys.schemas s ON s.schema_id = o.schema_id
LEFT JOIN sys.indexes i ON i.object_id = o.object_id AND i.index_id = @p2
WHERE o.object_id = @p1`

// pageInfoQuery requires SQL Server 2019 or later
const pageInfoQuery = `SELECT object_id, index_id, page_type
FROM sys.dm_db_page_info(@p1, @p2, @p3, 'LIMITED')`

// dbccPageQuery is the fallback for servers without sys.dm_db_page_info
const dbccPageQuery = `DBCC PAGE (@p1, @p2, @p3, 0) WITH TABLERESULTS, NO_INFOMSGS`

// Fields of the DBCC PAGE header holding the values we need
const (
	dbccFieldObjectID = "Metadata: ObjectId"
	dbccFieldIndexID  = "Metadata: IndexId"
	dbccFieldPageType = "m_type"
)
