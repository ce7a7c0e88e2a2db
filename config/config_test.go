package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hybridann/hybridann/engine"
)

func TestLoadAppliesIndexSectionOverDefaults(t *testing.T) {
	doc := strings.NewReader("[Index]\nNumberOfThreads=8\nDistCalcMethod=Cosine\n")
	params, err := Load(doc)
	require.NoError(t, err)

	assert.Equal(t, 8, params.NumberOfThreads)
	assert.Equal(t, "Cosine", params.DistCalcMethod)
	assert.Equal(t, engine.DefaultParameters().NeighborhoodSize, params.NeighborhoodSize, "unset keys keep their default")
}

func TestLoadWithNoIndexSectionReturnsDefaults(t *testing.T) {
	params, err := Load(strings.NewReader("[Other]\nFoo=bar\n"))
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultParameters(), params)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	_, err := Load(strings.NewReader("[Index]\nNotAThing=1\n"))
	assert.Error(t, err)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	params := engine.DefaultParameters()
	params.NumberOfThreads = 16
	params.MaxCheck = 4096

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, params))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, params, loaded)
}

func TestSaveFileThenLoadFileRoundTrips(t *testing.T) {
	params := engine.DefaultParameters()
	params.DistCalcMethod = "Cosine"
	params.NumberOfTrees = 9

	path := filepath.Join(t.TempDir(), "index.ini")
	require.NoError(t, SaveFile(path, params))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, params, loaded)
}
