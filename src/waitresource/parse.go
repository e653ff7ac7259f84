package waitresource

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ResourceType is the kind of resource named by a wait resource string
type ResourceType int

// Resource types in dispatch order
const (
	TypeUnsupported ResourceType = iota
	TypeNone
	TypeKey
	TypePage
	TypeRID
	TypeLegacyPage
	TypeObject
	TypeApplication
	TypeDatabase
	TypeFile
	TypeHobt
	TypeMetadata
	TypeAllocationUnit
)

var resourceTypeNames = map[ResourceType]string{
	TypeUnsupported:    "UNSUPPORTED",
	TypeNone:           "NONE",
	TypeKey:            "KEY",
	TypePage:           "PAGE",
	TypeRID:            "RID",
	TypeLegacyPage:     "PAGE",
	TypeObject:         "OBJECT",
	TypeApplication:    "APPLICATION",
	TypeDatabase:       "DATABASE",
	TypeFile:           "FILE",
	TypeHobt:           "HOBT",
	TypeMetadata:       "METADATA",
	TypeAllocationUnit: "ALLOCATION_UNIT",
}

func (t ResourceType) String() string {
	return resourceTypeNames[t]
}

// noResource is reported for waits that are not tied to a resource yet
const noResource = "0:0:0"

var prefixes = []struct {
	prefix string
	kind   ResourceType
}{
	{"KEY: ", TypeKey},
	{"PAGE: ", TypePage},
	{"RID: ", TypeRID},
	{"OBJECT: ", TypeObject},
	{"APPLICATION: ", TypeApplication},
	{"DATABASE: ", TypeDatabase},
	{"FILE: ", TypeFile},
	{"HOBT: ", TypeHobt},
	{"METADATA: ", TypeMetadata},
	{"ALLOCATION_UNIT: ", TypeAllocationUnit},
}

var legacyPagePattern = regexp.MustCompile(`^\d+:\d+:\d+`)

// classify returns the resource type of a trimmed wait resource and the text after its prefix
func classify(resource string) (ResourceType, string) {
	if resource == noResource {
		return TypeNone, ""
	}

	for _, p := range prefixes[:3] {
		if strings.HasPrefix(resource, p.prefix) {
			return p.kind, strings.TrimSpace(resource[len(p.prefix):])
		}
	}
	if legacyPagePattern.MatchString(resource) {
		return TypeLegacyPage, resource
	}
	for _, p := range prefixes[3:] {
		if strings.HasPrefix(resource, p.prefix) {
			return p.kind, strings.TrimSpace(resource[len(p.prefix):])
		}
	}
	return TypeUnsupported, resource
}

// keyResource is the parsed form of "KEY: db:hobt (hash)"
type keyResource struct {
	databaseID int64
	hobtID     int64
	hash       string
}

func parseKey(body string) (keyResource, error) {
	dbPart, rest, ok := strings.Cut(body, ":")
	if !ok {
		return keyResource{}, fmt.Errorf("%w: expected db:hobt in %q", ErrMalformedInput, body)
	}

	var key keyResource
	if open := strings.IndexByte(rest, '('); open >= 0 {
		key.hash = strings.TrimSuffix(strings.TrimSpace(rest[open+1:]), ")")
		rest = rest[:open]
	}
	hobtPart, _, _ := strings.Cut(strings.TrimSpace(rest), ":")

	var err error
	if key.databaseID, err = parseID("database id", dbPart); err != nil {
		return keyResource{}, err
	}
	if key.hobtID, err = parseID("hobt id", hobtPart); err != nil {
		return keyResource{}, err
	}
	return key, nil
}

// pageResource is the common shape of PAGE, RID and the legacy numeric form
type pageResource struct {
	databaseID int64
	fileID     int64
	pageID     int64
	slotID     *int64
}

func parsePage(kind ResourceType, body string) (pageResource, error) {
	if kind == TypeLegacyPage {
		if open := strings.IndexByte(body, '('); open >= 0 {
			body = body[:open]
		}
	}

	want := 3
	if kind == TypeRID {
		want = 4
	}
	parts := strings.Split(strings.TrimSpace(body), ":")
	if len(parts) != want {
		return pageResource{}, fmt.Errorf("%w: expected %d colon separated numbers in %q", ErrMalformedInput, want, body)
	}

	var page pageResource
	var err error
	if page.databaseID, err = parseID("database id", parts[0]); err != nil {
		return pageResource{}, err
	}
	if page.fileID, err = parseID("file id", parts[1]); err != nil {
		return pageResource{}, err
	}
	if page.pageID, err = parseID("page id", parts[2]); err != nil {
		return pageResource{}, err
	}
	if kind == TypeRID {
		slot, err := parseID("slot id", parts[3])
		if err != nil {
			return pageResource{}, err
		}
		page.slotID = &slot
	}
	return page, nil
}

// parseObject parses "db:objectid[:lockpartition]"
func parseObject(body string) (databaseID, objectID int64, err error) {
	dbPart, rest, ok := strings.Cut(body, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: expected db:objectid in %q", ErrMalformedInput, body)
	}
	objPart, _, _ := strings.Cut(rest, ":")

	if databaseID, err = parseID("database id", dbPart); err != nil {
		return 0, 0, err
	}
	if objectID, err = parseID("object id", objPart); err != nil {
		return 0, 0, err
	}
	return databaseID, objectID, nil
}

// leadingID parses the number before the first colon, or the whole body when there is none
func leadingID(what, body string) (int64, error) {
	head, _, _ := strings.Cut(body, ":")
	return parseID(what, head)
}

// parseID parses a non negative integer identifier
func parseID(what, s string) (int64, error) {
	s = strings.TrimSpace(s)
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrMalformedInput, what, s)
	}
	return id, nil
}
