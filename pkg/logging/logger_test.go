package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestSetOutputs(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		currentOut := defaultLogger.Out
		SetOutputs(nil, 0, 0)
		if defaultLogger.Out != currentOut {
			t.Error("Logger output should not change by default")
		}
	})

	t.Run("stdout", func(t *testing.T) {
		SetOutputs([]string{"-"}, 0, 0)
		if defaultLogger.Out != os.Stdout {
			t.Error("Logger output should be stdout")
		}
	})

	t.Run("stderr", func(t *testing.T) {
		SetOutputs([]string{"="}, 0, 0)
		if defaultLogger.Out != os.Stderr {
			t.Error("Logger output should be stderr")
		}
	})
}

func TestLogCallerTrimmer(t *testing.T) {
	frame := &runtime.Frame{
		File:     "/home/user/work/crossrepo/pkg/mapping/store.go",
		Line:     42,
		Function: "github.com/crossrepo/crossrepo/pkg/mapping.InsertMapping",
	}
	gotFunction, gotFile := logCallerTrimmer(frame)
	if gotFile != "pkg/mapping/store.go:42" {
		t.Errorf("file = %q, want %q", gotFile, "pkg/mapping/store.go:42")
	}
	if gotFunction != "pkg/mapping.InsertMapping" {
		t.Errorf("function = %q, want %q", gotFunction, "pkg/mapping.InsertMapping")
	}
}

func TestContextFields(t *testing.T) {
	logDir := t.TempDir()
	logFile := filepath.Join(logDir, "test.log")
	SetOutputs([]string{logFile}, 0, 0)
	SetOutputFormat("json")
	defer func() {
		SetOutputs([]string{"-"}, 0, 0)
		SetOutputFormat("text")
	}()

	ctx := AddFields(context.Background(), Fields{
		SmallRepoFieldKey: int64(1),
		CommitFieldKey:    "abcd",
	})
	FromContext(ctx).WithField("extra", "value").Info("test message")

	contents, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("ReadFile %s: %s", logFile, err)
	}
	var entry map[string]any
	if err := json.Unmarshal(contents, &entry); err != nil {
		t.Fatalf("Unmarshal log entry: %s\nContents: %s", err, string(contents))
	}
	for key, want := range map[string]string{
		SmallRepoFieldKey: "1",
		CommitFieldKey:    "abcd",
		"extra":           "value",
	} {
		got, ok := entry[key]
		if !ok {
			t.Errorf("expected field %q not found in log entry: %s", key, string(contents))
			continue
		}
		if fmt.Sprintf("%v", got) != want {
			t.Errorf("field %q: got %v, want %v", key, got, want)
		}
	}
}
