package debug

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// saveAndRestoreState saves the debug package state and returns a cleanup function
func saveAndRestoreState() func() {
	originalDebug := EnableDebug
	originalQuiet := QuietMode
	originalOutput := debugOutput
	originalFile := debugFile
	return func() {
		EnableDebug = originalDebug
		QuietMode = originalQuiet
		debugOutput = originalOutput
		debugFile = originalFile
	}
}

func TestSetQuietMode(t *testing.T) {
	defer saveAndRestoreState()()

	SetQuietMode(true)
	assert.True(t, QuietMode)

	SetQuietMode(false)
	assert.False(t, QuietMode)
}

func TestIsDebugEnabled(t *testing.T) {
	defer saveAndRestoreState()()
	t.Setenv("DEBUG", "")

	EnableDebug = "false"
	QuietMode = false
	assert.False(t, IsDebugEnabled())

	EnableDebug = "true"
	assert.True(t, IsDebugEnabled())

	// Quiet mode wins over the build flag
	QuietMode = true
	assert.False(t, IsDebugEnabled())

	QuietMode = false
	EnableDebug = "invalid"
	assert.False(t, IsDebugEnabled())
}

func TestIsDebugEnabled_Env(t *testing.T) {
	defer saveAndRestoreState()()

	EnableDebug = "false"
	QuietMode = false

	t.Setenv("DEBUG", "1")
	assert.True(t, IsDebugEnabled())

	t.Setenv("DEBUG", "true")
	assert.True(t, IsDebugEnabled())

	t.Setenv("DEBUG", "no")
	assert.False(t, IsDebugEnabled())
}

func TestLog(t *testing.T) {
	defer saveAndRestoreState()()

	var buf bytes.Buffer
	SetDebugOutput(&buf)
	EnableDebug = "true"
	QuietMode = false
	Log("TEST", "Hello %s", "World")

	output := buf.String()
	assert.Contains(t, output, "[DEBUG:TEST]")
	assert.Contains(t, output, "Hello World")
}

func TestLog_QuietMode(t *testing.T) {
	defer saveAndRestoreState()()

	var buf bytes.Buffer
	SetDebugOutput(&buf)
	EnableDebug = "true"
	QuietMode = true
	Log("TEST", "Should not appear")

	assert.Empty(t, buf.String())
}

func TestLogHelpers(t *testing.T) {
	defer saveAndRestoreState()()

	EnableDebug = "true"
	QuietMode = false

	tests := []struct {
		name    string
		logFunc func(string, ...interface{})
		prefix  string
	}{
		{"LogMatrix", LogMatrix, "[DEBUG:MATRIX]"},
		{"LogCache", LogCache, "[DEBUG:CACHE]"},
		{"LogLink", LogLink, "[DEBUG:LINK]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			SetDebugOutput(&buf)

			tt.logFunc("row %d done", 42)

			output := buf.String()
			assert.Contains(t, output, tt.prefix)
			assert.Contains(t, output, "row 42 done")
		})
	}
}

func TestConcurrentLogging(t *testing.T) {
	defer saveAndRestoreState()()

	var buf syncBuffer
	SetDebugOutput(&buf)
	EnableDebug = "true"
	QuietMode = false

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			LogMatrix("row from goroutine %d\n", id)
			LogCache("cache from goroutine %d\n", id)
		}(i)
	}
	wg.Wait()

	assert.Contains(t, buf.String(), "[DEBUG:MATRIX]")
}

func TestNoOutputWithNilWriter(t *testing.T) {
	defer saveAndRestoreState()()

	SetDebugOutput(nil)
	EnableDebug = "true"
	QuietMode = false

	// These should not panic, they should just do nothing
	Printf("test %s", "message")
	Log("TEST", "test %s", "message")
	LogMatrix("test %s", "message")
	LogCache("test %s", "message")
	LogLink("test %s", "message")
}

func TestInitDebugLogFile(t *testing.T) {
	defer saveAndRestoreState()()

	logPath, err := InitDebugLogFile()
	require.NoError(t, err)
	require.NotEmpty(t, logPath)
	defer os.Remove(logPath)

	_, err = os.Stat(logPath)
	assert.NoError(t, err)

	EnableDebug = "true"
	QuietMode = false
	Printf("Test log message\n")

	require.NoError(t, CloseDebugLog())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Test log message")

	// Closing twice is a no-op
	assert.NoError(t, CloseDebugLog())
}

// syncBuffer is a bytes.Buffer safe for concurrent writers
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
