package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ttlkv/kvs"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]string{"result": "success"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("usage", "bad input", map[string]string{"arg": "x"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "usage", resp.Error.Code)
	assert.Equal(t, "bad input", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	tests := []struct {
		name string
		data any
		want string
	}{
		{"string", "created k", "created k\n"},
		{"object", map[string]any{"b": 1, "a": "x"}, `{"a":"x","b":1}` + "\n"},
		{"number", json.Number("2.5"), "2.5\n"},
		{"null", nil, "null\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf}
			require.NoError(t, formatter.Success(tt.data))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("usage", "bad input", map[string]string{"arg": "x"})
	require.NoError(t, err)
	assert.Equal(t, "Error [usage]: bad input\n", buf.String())
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	err := formatter.Error("usage", "bad input", map[string]string{"arg": "x"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [usage]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_StoreError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{"duplicate", kvs.ErrDuplicateKey, "duplicate_key", ExitFailure},
		{"not found", kvs.ErrKeyNotFound, "key_not_found", ExitFailure},
		{"capacity", kvs.ErrCapacityExceeded, "capacity_exceeded", ExitFailure},
		{"busy", kvs.ErrConcurrentAccess, "concurrent_access", ExitCommandError},
		{"open", kvs.ErrStorageOpen, "storage_open", ExitCommandError},
		{"plain", errors.New("boom"), "unknown", ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			err := formatter.StoreError(tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.True(t, IsReported(err))
			assert.ErrorIs(t, err, tt.err)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			errBuf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    buf,
				ErrWriter: errBuf,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("opened %s", "test.db")

			assert.Empty(t, buf.String(), "diagnostics never go to the main writer when ErrWriter is set")
			if tt.wantLog {
				assert.Contains(t, errBuf.String(), "opened test.db")
			} else {
				assert.Empty(t, errBuf.String())
			}
		})
	}
}

func TestExitError(t *testing.T) {
	cause := fmt.Errorf("disk gone")
	err := WrapExitError(ExitCommandError, "failed to open", cause)

	assert.Equal(t, "failed to open: disk gone", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.False(t, IsReported(err))

	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, "just a message", NewExitError(ExitFailure, "just a message").Error())
}
