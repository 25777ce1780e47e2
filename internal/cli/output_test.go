package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/maat/internal/ranking"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Success(map[string]string{"result": "success"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"result": "success"}, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf, ErrWriter: &bytes.Buffer{}}

	err := formatter.Error("NOT_REGISTERED", "no handler registered", map[string]string{"entity_type": "blog.post"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_REGISTERED", resp.Error.Code)
	assert.Equal(t, "no handler registered", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("All rankings flushed"))
	assert.Equal(t, "All rankings flushed\n", buf.String())
}

func TestOutputFormatter_TextSuccessUsesRenderer(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(message("No registered handlers found.")))
	assert.Equal(t, "No registered handlers found.\n", buf.String())
}

func TestOutputFormatter_TextErrorGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: out, ErrWriter: errOut}

	require.NoError(t, formatter.Error("FAILED", "flush failed", map[string]string{"typology": "newest"}))
	assert.Empty(t, out.String())
	assert.Equal(t, "Error [FAILED]: flush failed\n", errOut.String())
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error("FAILED", "flush failed", map[string]string{"typology": "newest"}))
	assert.Contains(t, buf.String(), "Error [FAILED]")
	assert.Contains(t, buf.String(), "Details:")
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
			out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: out, ErrWriter: errOut, Verbose: tt.verbose}

			formatter.VerboseLog("flushing %d entity types", 2)

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Equal(t, "flushing 2 entity types\n", errOut.String())
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad selector")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "bad selector", errors.New("inner")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
}

func TestExitError_Message(t *testing.T) {
	err := WrapExitError(ExitFailure, "flush failed", errors.New("disk full"))
	assert.Equal(t, "flush failed: disk full", err.Error())
	assert.Equal(t, "disk full", errors.Unwrap(err).Error())
	assert.Equal(t, "flush failed", NewExitError(ExitFailure, "flush failed").Error())
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "registry error",
			err:  WrapExitError(ExitCommandError, "invalid selector", ranking.NewTypologyError("blog.article", "trending")),
			want: "TYPOLOGY_NOT_IMPLEMENTED",
		},
		{
			name: "flush error",
			err:  WrapExitError(ExitFailure, "flush failed", &ranking.FlushError{EntityType: "blog.article", Typology: "newest", Err: errors.New("boom")}),
			want: "FLUSH_FAILED",
		},
		{
			name: "command error",
			err:  NewExitError(ExitCommandError, "failed to open database"),
			want: "COMMAND_ERROR",
		},
		{
			name: "other",
			err:  errors.New("boom"),
			want: "FAILED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err))
		})
	}
}
