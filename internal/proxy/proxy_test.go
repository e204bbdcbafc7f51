package proxy

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readRecords(t *testing.T, path string) []Record {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestProxy_EchoesAndLogsTraffic(t *testing.T) {
	dir := t.TempDir()

	p, err := New(dir, "test", []string{"cat"})
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	p.Stdin = strings.NewReader("{\"jsonrpc\":\"2.0\",\"id\":1}\nsecond line\n")
	p.Stdout = &stdout
	p.Stderr = &stderr

	code, err := p.Run()
	require.NoError(t, err)
	assert.Zero(t, code)

	assert.Equal(t, "{\"jsonrpc\":\"2.0\",\"id\":1}\nsecond line\n", stdout.String())

	records := readRecords(t, TrafficLogPath(dir, "test"))
	require.NotEmpty(t, records)

	assert.Equal(t, DirLifecycle, records[0].Direction)
	assert.Equal(t, "start", records[0].Event)
	assert.Equal(t, []string{"cat"}, records[0].Command)

	last := records[len(records)-1]
	assert.Equal(t, DirLifecycle, last.Direction)
	assert.Equal(t, "exit", last.Event)
	require.NotNil(t, last.ReturnCode)
	assert.Zero(t, *last.ReturnCode)

	var inbound, outbound int
	for i, rec := range records {
		assert.Equal(t, int64(i+1), rec.Seq, "sequence numbers must be contiguous")
		switch rec.Direction {
		case DirClientToServer:
			inbound++
			assert.Equal(t, len(rec.Data)+1, rec.Bytes)
		case DirServerToClient:
			outbound++
		}
	}
	assert.Equal(t, 2, inbound)
	assert.Equal(t, 2, outbound)
}

func TestProxy_PropagatesExitCode(t *testing.T) {
	dir := t.TempDir()

	p, err := New(dir, "fail", []string{"sh", "-c", "exit 3"})
	require.NoError(t, err)
	p.Stdin = strings.NewReader("")
	p.Stdout = &bytes.Buffer{}
	p.Stderr = &bytes.Buffer{}

	code, err := p.Run()
	require.NoError(t, err)
	assert.Equal(t, 3, code)

	records := readRecords(t, TrafficLogPath(dir, "fail"))
	last := records[len(records)-1]
	require.NotNil(t, last.ReturnCode)
	assert.Equal(t, 3, *last.ReturnCode)
}

func TestProxy_CapturesStderr(t *testing.T) {
	dir := t.TempDir()

	p, err := New(dir, "stderr", []string{"sh", "-c", "echo oops >&2"})
	require.NoError(t, err)
	var stderr bytes.Buffer
	p.Stdin = strings.NewReader("")
	p.Stdout = &bytes.Buffer{}
	p.Stderr = &stderr

	_, err = p.Run()
	require.NoError(t, err)
	assert.Equal(t, "oops\n", stderr.String())

	records := readRecords(t, TrafficLogPath(dir, "stderr"))
	var found bool
	for _, rec := range records {
		if rec.Direction == DirServerStderr && rec.Data == "oops" {
			found = true
		}
	}
	assert.True(t, found, "stderr line must be logged")
}

func TestNew_RequiresCommand(t *testing.T) {
	_, err := New(t.TempDir(), "x", nil)
	assert.Error(t, err)
}
