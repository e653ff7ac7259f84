package waitresource

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/newrelic/infra-integrations-sdk/v3/log"
	"github.com/newrelic/nri-mssql-lockwait/src/catalog"
)

const (
	infoNoResource     = "Resource 0:0:0 does not name a lock; the session waits on a resource that has not been assigned yet"
	infoApplication    = "Application lock requested through sp_getapplock; its name is defined by the application and is not decoded"
	infoMetadata       = "Metadata lock on a system catalog resource; not decoded further"
	infoAllocationUnit = "Allocation unit lock, usually held while the unit is deallocated; not decoded further"
	infoDatabase       = "Database lock, usually a shared lock held by every connection using the database"
	infoFile           = "Database file lock, usually taken while the file is grown, shrunk or removed"
	infoFileUnparsed   = "Unable to parse details of FILE wait resource"
	infoHobt           = "Heap or B-tree lock, usually taken by lock escalation on a partition"
	infoUnsupported    = "Unsupported wait resource type"
	infoPageNoObject   = "Page does not belong to a user visible object"
)

// Decoder resolves wait resources against catalog metadata.
// A Decoder is safe for concurrent use when its Lookup is.
type Decoder struct {
	lookup      catalog.Lookup
	concurrency int
}

// NewDecoder creates a Decoder. concurrency bounds DecodeAll and is at least 1.
func NewDecoder(lookup catalog.Lookup, concurrency int) *Decoder {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Decoder{lookup: lookup, concurrency: concurrency}
}

// DecodeNullable decodes a wait resource read from a nullable column
func (d *Decoder) DecodeNullable(ctx context.Context, waitResource *string) DecodedResource {
	if waitResource == nil {
		return d.Decode(ctx, "")
	}
	return d.Decode(ctx, *waitResource)
}

// Decode parses waitResource and resolves the objects it names. It never returns
// an error: failures are reported through ErrorMessage along with whatever was
// resolved before the failure.
func (d *Decoder) Decode(ctx context.Context, waitResource string) (result DecodedResource) {
	resource := strings.TrimSpace(waitResource)
	result.WaitResource = resource

	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered while decoding wait resource '%s': %v", resource, r)
			result.fail(fmt.Errorf("%w: %v", ErrCatalogAccess, r))
		}
	}()

	if resource == "" {
		result.ResourceType = TypeUnsupported.String()
		result.fail(fmt.Errorf("%w: empty wait resource", ErrMalformedInput))
		return result
	}

	kind, body := classify(resource)
	result.ResourceType = kind.String()

	var err error
	switch kind {
	case TypeNone:
		result.setInfo(infoNoResource)
	case TypeKey:
		err = d.decodeKey(ctx, body, &result)
	case TypePage, TypeRID, TypeLegacyPage:
		err = d.decodePage(ctx, kind, body, &result)
	case TypeObject:
		err = d.decodeObject(ctx, body, &result)
	case TypeApplication:
		result.setInfo(infoApplication)
	case TypeMetadata:
		result.setInfo(infoMetadata)
	case TypeAllocationUnit:
		result.setInfo(infoAllocationUnit)
	case TypeDatabase:
		err = d.decodeDatabase(ctx, body, &result)
	case TypeFile:
		err = d.decodeFile(ctx, body, &result)
	case TypeHobt:
		err = decodeHobt(body, &result)
	default:
		result.setInfo(infoUnsupported)
	}

	if err != nil {
		result.fail(err)
	}
	return result
}

func (d *Decoder) decodeKey(ctx context.Context, body string, result *DecodedResource) error {
	key, err := parseKey(body)
	if err != nil {
		return err
	}
	result.DatabaseID = ptr(key.databaseID)
	result.HobtID = ptr(key.hobtID)
	if key.hash != "" {
		result.setInfo(fmt.Sprintf("Key hash (%s) identifies the locked row within the index", key.hash))
	}

	db, err := d.onlineDatabase(ctx, key.databaseID, result)
	if err != nil {
		return err
	}

	hobt, err := d.lookup.LookupHobt(ctx, db.Name, key.hobtID)
	if err != nil {
		return catalogError(err)
	}

	obj, err := d.lookup.DescribeObject(ctx, db.Name, hobt.ObjectID, &hobt.IndexID)
	if err != nil {
		return catalogError(err)
	}
	result.ObjectID = ptr(hobt.ObjectID)
	result.IndexID = ptr(hobt.IndexID)
	result.PartitionID = ptr(hobt.PartitionID)
	attachObject(result, obj, &hobt.IndexID)
	return nil
}

func (d *Decoder) decodePage(ctx context.Context, kind ResourceType, body string, result *DecodedResource) error {
	page, err := parsePage(kind, body)
	if err != nil {
		return err
	}
	result.DatabaseID = ptr(page.databaseID)
	result.FileID = ptr(page.fileID)
	result.PageID = ptr(page.pageID)
	result.SlotID = page.slotID

	db, err := d.onlineDatabase(ctx, page.databaseID, result)
	if err != nil {
		return err
	}

	meta, err := d.lookup.DescribePage(ctx, page.databaseID, page.fileID, page.pageID)
	if err != nil {
		return catalogError(err)
	}
	result.PageType = ptr(PageTypeLabel(meta.PageTypeCode))

	if meta.ObjectID <= 0 {
		result.ObjectID = ptr(meta.ObjectID)
		result.IndexID = ptr(meta.IndexID)
		result.setInfo(infoPageNoObject)
		return nil
	}

	obj, err := d.lookup.DescribeObject(ctx, db.Name, meta.ObjectID, &meta.IndexID)
	if errors.Is(err, catalog.ErrNotFound) {
		result.ObjectID = ptr(meta.ObjectID)
		result.IndexID = ptr(meta.IndexID)
		result.setInfo(infoPageNoObject)
		return nil
	}
	if err != nil {
		return catalogError(err)
	}
	result.ObjectID = ptr(meta.ObjectID)
	result.IndexID = ptr(meta.IndexID)
	attachObject(result, obj, &meta.IndexID)
	return nil
}

func (d *Decoder) decodeObject(ctx context.Context, body string, result *DecodedResource) error {
	databaseID, objectID, err := parseObject(body)
	if err != nil {
		return err
	}
	result.DatabaseID = ptr(databaseID)
	result.ObjectID = ptr(objectID)

	db, err := d.onlineDatabase(ctx, databaseID, result)
	if err != nil {
		return err
	}

	obj, err := d.lookup.DescribeObject(ctx, db.Name, objectID, nil)
	if err != nil {
		return catalogError(err)
	}
	attachObject(result, obj, nil)
	return nil
}

// decodeDatabase resolves the name only; an unknown id leaves the name empty
func (d *Decoder) decodeDatabase(ctx context.Context, body string, result *DecodedResource) error {
	databaseID, err := leadingID("database id", body)
	if err != nil {
		return err
	}
	result.DatabaseID = ptr(databaseID)
	result.setInfo(infoDatabase)
	return d.lenientDatabaseName(ctx, databaseID, result)
}

// decodeFile accepts a body without file id as an informational result
func (d *Decoder) decodeFile(ctx context.Context, body string, result *DecodedResource) error {
	dbPart, filePart, ok := strings.Cut(body, ":")
	if !ok {
		result.setInfo(infoFileUnparsed)
		return nil
	}

	databaseID, err := parseID("database id", dbPart)
	if err != nil {
		return err
	}
	fileID, err := leadingID("file id", filePart)
	if err != nil {
		return err
	}
	result.DatabaseID = ptr(databaseID)
	result.FileID = ptr(fileID)
	result.setInfo(infoFile)
	return d.lenientDatabaseName(ctx, databaseID, result)
}

func decodeHobt(body string, result *DecodedResource) error {
	hobtID, err := parseID("hobt id", body)
	if err != nil {
		return err
	}
	result.HobtID = ptr(hobtID)
	result.setInfo(infoHobt)
	return nil
}

// onlineDatabase resolves databaseID and requires it to be online. The name is
// recorded on result as soon as it is known.
func (d *Decoder) onlineDatabase(ctx context.Context, databaseID int64, result *DecodedResource) (catalog.Database, error) {
	db, err := d.lookup.DatabaseState(ctx, databaseID)
	if err != nil {
		return catalog.Database{}, catalogError(err)
	}
	result.DatabaseName = ptr(db.Name)

	if !db.Online() {
		return catalog.Database{}, fmt.Errorf("%w: %s is %s", ErrDatabaseNotOnline, db.Name, db.State)
	}
	return db, nil
}

func (d *Decoder) lenientDatabaseName(ctx context.Context, databaseID int64, result *DecodedResource) error {
	db, err := d.lookup.DatabaseState(ctx, databaseID)
	if errors.Is(err, catalog.ErrDatabaseNotFound) {
		return nil
	}
	if err != nil {
		return catalogError(err)
	}
	result.DatabaseName = ptr(db.Name)
	return nil
}

// attachObject copies object metadata to result. indexID is nil for OBJECT resources.
func attachObject(result *DecodedResource, obj catalog.Object, indexID *int64) {
	result.SchemaName = ptr(obj.SchemaName)
	result.ObjectName = ptr(obj.ObjectName)
	result.ObjectType = ptr(obj.ObjectType)
	if indexID != nil {
		result.IndexName = ptr(indexName(obj.IndexName, *indexID))
	}
}

// indexName substitutes a placeholder for indexes without a name
func indexName(name *string, indexID int64) string {
	if name != nil && *name != "" {
		return *name
	}
	switch indexID {
	case 0:
		return "<heap>"
	case 1:
		return "<clustered>"
	default:
		return fmt.Sprintf("<index_id_%d>", indexID)
	}
}

// catalogError maps catalog failures onto the decoder's error taxonomy
func catalogError(err error) error {
	switch {
	case errors.Is(err, catalog.ErrDatabaseNotFound):
		return fmt.Errorf("%w: %s", ErrDatabaseNotFound, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrResourceNotFound, err.Error())
	case errors.Is(err, catalog.ErrPageInspectionUnsupported):
		return fmt.Errorf("%w: %s", ErrUnsupportedFeature, err.Error())
	default:
		return fmt.Errorf("%w: %s", ErrCatalogAccess, err.Error())
	}
}
