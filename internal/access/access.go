package access

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/corvid-irc/corvid/internal/event"
)

// skipPatterns matches lines to ignore when parsing the access list
var skipPatterns = regexp.MustCompile(`(?i)^#|^;|^---|===|^\s*$`)

// A List seeds user classifications from disk so trust assignments
// survive restarts. Accounts map to the tier granted once a directory
// lookup confirms the account.
type List struct {
	// Raw holds all lines from the access file
	Raw []string
	// Accounts maps a services account to its granted tier
	Accounts map[string]event.Level
	// Order is the accounts in file order
	Order []string
}

// Load reads and parses the access file. A missing file is an empty
// list, not an error.
func Load(dataDir string) (*List, error) {
	path := filepath.Join(dataDir, "access.txt")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &List{
				Raw:      []string{},
				Accounts: make(map[string]event.Level),
				Order:    []string{},
			}, nil
		}
		return nil, err
	}
	defer file.Close()

	l := &List{
		Raw:      []string{},
		Accounts: make(map[string]event.Level),
	}

	var bad []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.ReplaceAll(scanner.Text(), "\r", "")
		l.Raw = append(l.Raw, line)

		if skipPatterns.MatchString(line) {
			continue
		}

		// Parse "account: level" lines
		if !strings.Contains(line, ":") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		account := strings.TrimSpace(parts[0])
		name := strings.ToLower(strings.TrimSpace(parts[1]))
		if account == "" {
			continue
		}

		level, ok := event.ParseLevel(name)
		if !ok {
			bad = append(bad, line)
			continue
		}
		if _, seen := l.Accounts[account]; !seen {
			l.Order = append(l.Order, account)
		}
		l.Accounts[account] = level
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// Unknown level names are reported, not fatal; the rest of the
	// file still applies.
	if len(bad) > 0 {
		return l, fmt.Errorf("access list: unrecognized levels in %d line(s): %s",
			len(bad), strings.Join(bad, "; "))
	}
	return l, nil
}

// Level returns the tier granted to an account, if any.
func (l *List) Level(account string) (event.Level, bool) {
	level, ok := l.Accounts[account]
	return level, ok
}

// Count returns how many accounts carry a seed.
func (l *List) Count() int {
	return len(l.Accounts)
}
