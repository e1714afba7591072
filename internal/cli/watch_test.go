package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchSchemas_RevalidatesOnChange(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "a.cue", "package test\n\nentity: a: {columns: {id: {}}}\n")

	calls := make(chan struct{}, 10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watchSchemas(ctx, dir, 20*time.Millisecond, func() { calls <- struct{}{} })
	}()

	waitCall := func() {
		t.Helper()
		select {
		case <-calls:
		case <-time.After(5 * time.Second):
			t.Fatal("validate was not called")
		}
	}

	// Initial validation.
	waitCall()

	writeSchemaFile(t, dir, "b.cue", "package test\n\nentity: b: {columns: {id: {}}}\n")
	waitCall()

	// Let any trailing events for b.cue settle.
	time.Sleep(200 * time.Millisecond)
	for len(calls) > 0 {
		<-calls
	}

	// Non-schema files are ignored.
	writeSchemaFile(t, dir, "notes.txt", "hello")
	select {
	case <-calls:
		t.Fatal("validate called for a non-schema file")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchSchemas_CoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "a.cue", "package test\n")

	calls := make(chan struct{}, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = watchSchemas(ctx, dir, 300*time.Millisecond, func() { calls <- struct{}{} })
	}()
	<-calls

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"), []byte("package test\n"), 0644))
	}

	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("validate was not called")
	}
	select {
	case <-calls:
		t.Fatal("burst produced more than one validation")
	case <-time.After(600 * time.Millisecond):
	}
}

func TestWatchSchemas_MissingDir(t *testing.T) {
	err := watchSchemas(context.Background(), "/nonexistent/schemas", time.Millisecond, func() {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watching /nonexistent/schemas")
}

func TestWatchCommand_NonExistentDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewWatchCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"/nonexistent/schemas"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "schemas directory not found")
}

func TestWatchCommand_StopsWithContext(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewWatchCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{testSchemas})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, buf.String(), "validating "+testSchemas)
	assert.Contains(t, buf.String(), "✓ All schemas valid (5 entities)")
}

func TestReportValidation(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "refs.cue", unknownRefSchema)

	buf := &bytes.Buffer{}
	reportValidation(&OutputFormatter{Format: "text", Writer: buf}, dir)
	assert.Contains(t, buf.String(), "✗ Validation failed")
	assert.Contains(t, buf.String(), "E111")

	buf.Reset()
	reportValidation(&OutputFormatter{Format: "text", Writer: buf}, filepath.Join(dir, "missing"))
	assert.Contains(t, buf.String(), "Error [E005]")
}

func TestIsSchemaChange(t *testing.T) {
	tests := []struct {
		event fsnotify.Event
		want  bool
	}{
		{fsnotify.Event{Name: "a.cue", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "a.cue", Op: fsnotify.Remove}, true},
		{fsnotify.Event{Name: "a.cue", Op: fsnotify.Rename}, true},
		{fsnotify.Event{Name: "a.cue", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "a.txt", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "nested", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "nested", Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isSchemaChange(tt.event), "%s %s", tt.event.Op, tt.event.Name)
	}
}
