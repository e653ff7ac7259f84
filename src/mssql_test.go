package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/newrelic/nri-mssql-lockwait/src/args"
	"github.com/newrelic/nri-mssql-lockwait/src/blocking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_resolverOptions(t *testing.T) {
	argList := args.ArgumentList{
		OutputFormat:        args.FormatFlat,
		MinBlockingDuration: 5,
		MaxChainDepth:       3,
		ActiveBlockingOnly:  true,
		AnonymizeSQLText:    true,
	}

	opts, err := resolverOptions(argList)
	require.NoError(t, err)
	assert.Equal(t, float64(5), opts.MinBlockingDuration)
	assert.Equal(t, 3, opts.MaxDepth)
	assert.Equal(t, args.FormatFlat, opts.Format)
	assert.True(t, opts.ActiveOnly)
	assert.True(t, opts.AnonymizeSQL)
	assert.Nil(t, opts.Classifier)
}

func Test_resolverOptions_WaitCategories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wait_categories.yml")
	require.NoError(t, os.WriteFile(path, []byte("lock_prefixes:\n  - LCK_M_\n  - CUSTOM_\n"), 0600))

	opts, err := resolverOptions(args.ArgumentList{WaitCategoriesConfig: path})
	require.NoError(t, err)
	require.NotNil(t, opts.Classifier)
	assert.Equal(t, blocking.CategoryLock, opts.Classifier.Category("CUSTOM_WAIT"))

	_, err = resolverOptions(args.ArgumentList{WaitCategoriesConfig: filepath.Join(t.TempDir(), "missing.yml")})
	assert.Error(t, err)
}

func Test_writeReport(t *testing.T) {
	result := blocking.Resolve([]blocking.Session{
		{SessionID: 60},
		{SessionID: 61, BlockedBy: 60},
	}, blocking.Options{})

	path := filepath.Join(t.TempDir(), "report.txt")
	err := writeReport(result, args.ArgumentList{ReportFile: path, OutputFormat: args.FormatFlat})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "L1 61 path=00060/00061")

	err = writeReport(result, args.ArgumentList{ReportFile: path, OutputFormat: "xml"})
	assert.ErrorIs(t, err, blocking.ErrUnknownFormat)
}
