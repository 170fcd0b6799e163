package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const maxEntries = 500

// LoadAudit reads the privileged-command audit log from file
// Returns entries in reverse chronological order (newest first)
func LoadAudit(dataDir string) ([]string, error) {
	path := filepath.Join(dataDir, "audit.txt")
	lines, err := readLines(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	// Reverse so newest is first (file stores oldest first)
	return reverse(lines), nil
}

// SaveAudit writes the audit log to file
// Expects entries in reverse chronological order (newest first)
func SaveAudit(dataDir string, entries []string) error {
	path := filepath.Join(dataDir, "audit.txt")
	// Reverse back to oldest-first for file storage
	return writeLines(path, reverse(entries))
}

// AddAudit prepends a new audit entry (keeping newest first in memory,
// capped at maxEntries)
func AddAudit(entries []string, entry string) []string {
	entries = append([]string{entry}, entries...)
	if len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}
	return entries
}

// A SeenRecord is the last observed activity of one nickname.
type SeenRecord struct {
	Nick string
	Time int64
	Info string
}

// LoadSeen reads the last-seen table from file. Lines are
// "nick%%unixtime%%info"; malformed lines are skipped.
func LoadSeen(dataDir string) (map[string]*SeenRecord, error) {
	path := filepath.Join(dataDir, "seen.txt")
	lines, err := readLines(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*SeenRecord{}, nil
		}
		return nil, err
	}

	records := make(map[string]*SeenRecord, len(lines))
	for _, line := range lines {
		parts := strings.SplitN(line, "%%", 3)
		if len(parts) != 3 {
			continue
		}
		when, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		records[parts[0]] = &SeenRecord{Nick: parts[0], Time: when, Info: parts[2]}
	}
	return records, nil
}

// SaveSeen writes the last-seen table to file.
func SaveSeen(dataDir string, records map[string]*SeenRecord) error {
	path := filepath.Join(dataDir, "seen.txt")
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, fmt.Sprintf("%s%%%%%d%%%%%s", r.Nick, r.Time, r.Info))
	}
	return writeLines(path, lines)
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func writeLines(path string, lines []string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	for _, line := range lines {
		if _, err := fmt.Fprintln(file, line); err != nil {
			return err
		}
	}
	return nil
}

func reverse(s []string) []string {
	result := make([]string, len(s))
	for i, v := range s {
		result[len(s)-1-i] = v
	}
	return result
}
