package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substratefabric/core/pkg/config"
	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
	"github.com/substratefabric/core/pkg/validator"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildBackend_DefaultsToMemory(t *testing.T) {
	cfg := &config.Config{}
	validate := validator.Schema(validator.NewRegistry(validator.Accept))

	backend, err := buildBackend(context.Background(), discardLogger(), cfg, validate)
	require.NoError(t, err)

	res := backend.Receive(context.Background(), record.Message{URI: "mutable://open/x", Data: record.NewStruct(map[string]any{"v": 1})})
	assert.True(t, res.Accepted)
}

func TestBuildBackend_SingleSpecSkipsCombinator(t *testing.T) {
	cfg := &config.Config{Backends: []config.BackendSpec{{Type: config.BackendMemory}}}
	validate := validator.Schema(validator.NewRegistry(validator.Accept))

	backend, err := buildBackend(context.Background(), discardLogger(), cfg, validate)
	require.NoError(t, err)
	assert.NotNil(t, backend)
}

func TestBuildBackend_UnsupportedTypeErrors(t *testing.T) {
	cfg := &config.Config{Backends: []config.BackendSpec{{Type: config.BackendType("bogus")}}}
	validate := validator.Schema(validator.NewRegistry(validator.Accept))

	_, err := buildBackend(context.Background(), discardLogger(), cfg, validate)
	assert.Error(t, err)
}

func TestBuildBackend_DocBackendSkippedWithoutError(t *testing.T) {
	cfg := &config.Config{Backends: []config.BackendSpec{
		{Type: config.BackendDoc, URL: "mongodb://localhost/db"},
		{Type: config.BackendMemory},
	}}
	validate := validator.Schema(validator.NewRegistry(validator.Accept))

	backend, err := buildBackend(context.Background(), discardLogger(), cfg, validate)
	require.NoError(t, err)
	assert.NotNil(t, backend)
}

func TestBuildBackend_MultiSpecCanReadAfterWrite(t *testing.T) {
	cfg := &config.Config{Backends: []config.BackendSpec{
		{Type: config.BackendMemory},
		{Type: config.BackendMemory},
	}}
	validate := validator.Schema(validator.NewRegistry(validator.Accept))

	backend, err := buildBackend(context.Background(), discardLogger(), cfg, validate)
	require.NoError(t, err)

	res := backend.Receive(context.Background(), record.Message{URI: "mutable://open/x", Data: record.NewStruct(map[string]any{"v": 1})})
	require.True(t, res.Accepted)

	rr := backend.Read(context.Background(), "mutable://open/x")
	assert.True(t, rr.Success)

	lr := backend.List(context.Background(), "mutable://open/", substrate.ListOptions{})
	assert.True(t, lr.Success)

	dr := backend.Delete(context.Background(), "mutable://open/x")
	assert.True(t, dr.Success)
}

func TestSchemaKeysFromOptions(t *testing.T) {
	assert.Nil(t, schemaKeysFromOptions(nil))
	assert.Equal(t, []string{"a", "b"}, schemaKeysFromOptions(map[string]string{"schemaKeys": `["a","b"]`}))
	assert.Equal(t, []string{"a", "b"}, schemaKeysFromOptions(map[string]string{"schemaKeys": "a,b"}))
}
