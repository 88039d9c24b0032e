package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Appender writes entries to a workspace trace file, one JSON object per
// line. Appends to the same process are serialized.
type Appender struct {
	mu sync.Mutex
}

// Append writes e to the trace file under root, creating it as needed.
func (a *Appender) Append(root string, e *Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("Append: marshal entry: %w", err)
	}
	line = append(line, '\n')

	path := FilePath(root)
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("Append: %w", err)
	}
	return f.Close()
}

// ReadAll parses every entry of the trace file under root. A missing file
// yields no entries.
func ReadAll(root string) ([]Entry, error) {
	f, err := os.Open(FilePath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ReadAll: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("ReadAll: line %d: %w", lineNo, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ReadAll: %w", err)
	}
	return entries, nil
}
