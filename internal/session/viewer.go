package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LogFile represents a run log file on disk.
type LogFile struct {
	Path      string
	Name      string
	Size      int64
	ModTime   time.Time
	NumEvents int
}

// ListLogs finds .jsonl run log files in dir, newest first.
func ListLogs(dir string) ([]LogFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading run log directory: %w", err)
	}

	var files []LogFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(e.Name(), "-run.jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(dir, e.Name())
		n, _ := countLines(path) //nolint:errcheck
		files = append(files, LogFile{
			Path:      path,
			Name:      e.Name(),
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			NumEvents: n,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})

	return files, nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close() //nolint:errcheck
	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		n++
	}
	return n, scanner.Err()
}

// ReadEvents parses all events from a run log file.
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close() //nolint:errcheck

	var events []Event
	scanner := bufio.NewScanner(f)
	// Increase buffer for large lines (prompts are logged in full).
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue // skip malformed lines
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading run log: %w", err)
	}
	return events, nil
}

// RenderTimeline writes a human-readable run timeline to w.
//
//nolint:errcheck // display-only writes; errors are not actionable
func RenderTimeline(w io.Writer, events []Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events found.")
		return
	}

	fmt.Fprintln(w, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(w, " RUN TIMELINE")
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(w)

	start := events[0].Timestamp
	for _, ev := range events {
		elapsed := ev.Timestamp.Sub(start)
		ts := formatDuration(elapsed)

		switch ev.Type {
		case EventRunStart:
			model, _ := ev.Data["model"].(string)   //nolint:errcheck
			engine, _ := ev.Data["engine"].(string) //nolint:errcheck
			count := jsonNumber(ev.Data["scenario_count"])
			fmt.Fprintf(w, "[%s] 🚀 Run started  model=%s  engine=%s  scenarios=%d\n", ts, model, engine, count)

		case EventCalibrationAttempt:
			attempt := jsonNumber(ev.Data["attempt"])
			title, _ := ev.Data["scenario_title"].(string) //nolint:errcheck
			fmt.Fprintf(w, "[%s] 🎯 Calibration attempt %d: %s\n", ts, attempt, title)

		case EventCalibrationResult:
			accepted, _ := ev.Data["accepted"].(bool) //nolint:errcheck
			attempts := jsonNumber(ev.Data["attempts"])
			icon := "✗"
			if accepted {
				icon = "✓"
			}
			fmt.Fprintf(w, "[%s]    %s Calibration after %d attempt(s)\n", ts, icon, attempts)

		case EventScenarioStart:
			title, _ := ev.Data["scenario_title"].(string) //nolint:errcheck
			num := jsonNumber(ev.Data["scenario_num"])
			total := jsonNumber(ev.Data["total_scenarios"])
			fmt.Fprintf(w, "[%s] ▶  Scenario %d/%d: %s\n", ts, num, total, title)

		case EventScenarioComplete:
			title, _ := ev.Data["scenario_title"].(string) //nolint:errcheck
			status, _ := ev.Data["status"].(string)        //nolint:errcheck
			dur := jsonNumber(ev.Data["duration_ms"])
			icon := "✓"
			if status != "succeeded" {
				icon = "✗"
			}
			fmt.Fprintf(w, "[%s] %s  Scenario complete: %s [%s] (%dms)\n", ts, icon, title, status, dur)

		case EventScenarioSkipped:
			title, _ := ev.Data["scenario_title"].(string) //nolint:errcheck
			fmt.Fprintf(w, "[%s] ⏭  Skipped: %s (output exists)\n", ts, title)

		case EventError:
			msg, _ := ev.Data["message"].(string) //nolint:errcheck
			fmt.Fprintf(w, "[%s] ❌ Error: %s\n", ts, msg)

		case EventRunComplete:
			total := jsonNumber(ev.Data["total"])
			succeeded := jsonNumber(ev.Data["succeeded"])
			failed := jsonNumber(ev.Data["failed"])
			skipped := jsonNumber(ev.Data["skipped"])
			dur := jsonNumber(ev.Data["duration_ms"])
			fmt.Fprintf(w, "[%s] 🏁 Run complete  %d/%d succeeded  %d failed  %d skipped  (%dms)\n",
				ts, succeeded, total, failed, skipped, dur)

		case EventPromptSent, EventResponseReceived, EventConfigSnapshot, EventRefinementResult:
			// Bulky bookkeeping events; omit from the timeline.

		default:
			fmt.Fprintf(w, "[%s] %s %v\n", ts, ev.Type, ev.Data)
		}
	}
	fmt.Fprintln(w)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%6dms", d.Milliseconds())
	}
	return fmt.Sprintf("%6.1fs", d.Seconds())
}

// jsonNumber extracts a number from a JSON-decoded interface{} (float64 or json.Number).
func jsonNumber(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64() //nolint:errcheck
		return int(i)
	}
	return 0
}
