package blocking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/newrelic/nri-mssql-lockwait/src/args"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"
)

func sampleResult() Result {
	login := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	head := session(60, 0, 120)
	head.Status = strPtr("sleeping")
	head.LoginName = strPtr("app")
	head.LoginTime = &login
	head.OpenTransactions = 1
	head.SQLText = strPtr("UPDATE dbo.Orders SET Status = 'shipped' WHERE OrderID = 42")

	blocked := withWait(session(61, 60, 12), "LCK_M_X", 12000)
	blocked.WaitResource = strPtr("KEY: 5:72057594038321152 (8194443284a0)")

	return Resolve([]Session{
		head,
		blocked,
		withWait(session(62, 60, 30), "LCK_M_S", 30000),
		withWait(session(63, 61, 5), "LCK_M_U", 5000),
		withWait(session(64, 9999, 1), "PAGEIOLATCH_SH", 1000),
		session(100, 101, 3),
		session(101, 100, 3),
	}, Options{AnonymizeSQL: true})
}

func TestTree(t *testing.T) {
	lines := strings.Split(strings.TrimRight(sampleResult().Tree(), "\n"), "\n")

	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "HEAD 60 status=sleeping db=Sales login=app"))
	assert.Contains(t, lines[0], `sql="UPDATE dbo.Orders SET Status = ? WHERE OrderID = ?"`)
	assert.Contains(t, lines[0], "open_tran=1")
	assert.True(t, strings.HasPrefix(lines[1], indent+"+-- 61 blocked by 60"))
	assert.Contains(t, lines[1], `resource="KEY: 5:72057594038321152 (8194443284a0)"`)
	assert.Contains(t, lines[1], "wait=LCK_M_X wait_ms=12000")
	assert.True(t, strings.HasPrefix(lines[2], indent+indent+"+-- 63 blocked by 61"))
	assert.True(t, strings.HasPrefix(lines[3], indent+"+-- 62 blocked by 60"))
}

func TestFlat(t *testing.T) {
	r := sampleResult()

	assert.Equal(t, []int64{60, 62, 61, 63, 64, 100, 101}, sessionIDs(r.Flat()))

	lines := strings.Split(strings.TrimRight(r.FlatText(), "\n"), "\n")
	require.Len(t, lines, 7)
	assert.True(t, strings.HasPrefix(lines[0], "L0 60 path=00060 "))
	assert.True(t, strings.HasPrefix(lines[3], "L2 63 path=00060/00061/00063 "))
	assert.True(t, strings.HasPrefix(lines[4], "ORPHAN 64 blocked by 9999 (blocker_not_found)"))
	assert.True(t, strings.HasPrefix(lines[5], "ORPHAN 100 blocked by 101 (cycle)"))
}

func TestGrouped(t *testing.T) {
	g := sampleResult().Grouped()

	require.Len(t, g.Chains, 1)
	head := g.Chains[0]
	assert.Equal(t, int64(60), head.SessionID)
	require.Len(t, head.BlockedSessions, 2)
	assert.Equal(t, int64(61), head.BlockedSessions[0].SessionID)
	assert.Equal(t, int64(63), head.BlockedSessions[0].BlockedSessions[0].SessionID)
	assert.Empty(t, head.BlockedSessions[1].BlockedSessions)
	assert.Len(t, g.Orphans, 3)
	assert.Equal(t, 6, g.Summary.TotalBlockedSessions)
}

func TestRender_GroupedMatchesSchema(t *testing.T) {
	for name, r := range map[string]Result{
		"sample": sampleResult(),
		"empty":  Resolve(nil, Options{}),
	} {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Render(&buf, r, args.FormatGrouped))
			require.True(t, json.Valid(buf.Bytes()))
			require.NoError(t, validateJSONSchema("grouped-schema.json", buf.String()))
		})
	}
}

func TestRender_Formats(t *testing.T) {
	r := sampleResult()

	var tree, flat bytes.Buffer
	require.NoError(t, Render(&tree, r, args.FormatTree))
	require.NoError(t, Render(&flat, r, args.FormatFlat))
	assert.Equal(t, r.Tree(), tree.String())
	assert.Equal(t, r.FlatText(), flat.String())

	err := Render(&bytes.Buffer{}, r, "xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func validateJSONSchema(fileName string, input string) error {
	pwd, err := os.Getwd()
	if err != nil {
		return err
	}
	schemaURI := fmt.Sprintf("file://%s", filepath.Join(pwd, "testdata", fileName))
	schemaLoader := gojsonschema.NewReferenceLoader(schemaURI)
	documentLoader := gojsonschema.NewStringLoader(input)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("error loading JSON schema: %w", err)
	}
	if result.Valid() {
		return nil
	}
	for _, desc := range result.Errors() {
		fmt.Printf("\t- %s\n", desc)
	}
	return fmt.Errorf("grouped output does not match %s", schemaURI)
}
