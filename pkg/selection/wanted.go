package selection

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gofhir/contextgroups/pkg/contextgroup"
)

// ReadWanted reads one group identifier per line. Surrounding whitespace is
// trimmed, blank lines are skipped and repeated identifiers are kept once,
// at their first position.
func ReadWanted(r io.Reader) ([]contextgroup.Identifier, error) {
	var (
		ids  []contextgroup.Identifier
		seen = make(map[contextgroup.Identifier]struct{})
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id := contextgroup.Identifier(line)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read wanted list: %w", err)
	}
	return ids, nil
}

// ReadWantedFile reads the wanted list at path.
func ReadWantedFile(path string) ([]contextgroup.Identifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wanted list: %w", err)
	}
	defer f.Close()

	ids, err := ReadWanted(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ids, nil
}
