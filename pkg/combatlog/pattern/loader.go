package pattern

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/combatlog/combatlog-go/internal/safefile"
	"github.com/combatlog/combatlog-go/pkg/combatlog/event"
)

// Limits.
const (
	// MaxPatternFileSize caps a pattern file at 1MB.
	MaxPatternFileSize = 1 << 20

	// MaxPatternLength caps a single regex. Combat grammars carry colour
	// markup around every field, so this is generous.
	MaxPatternLength = 1024

	// MaxPatternCount caps the number of patterns in one file.
	MaxPatternCount = 256

	// SupportedVersion is the only accepted value of the version key.
	SupportedVersion = 1
)

var errEmpty = errors.New("pattern file is empty")

// Load reads, decodes and validates the pattern file at path. Error messages
// never include the path itself; callers add it if they want it shown.
func Load(path string) (*PatternFile, error) {
	f, info, err := safefile.OpenRegular(path)
	switch {
	case errors.Is(err, safefile.ErrNotRegularFile):
		return nil, errors.New("pattern file must be a regular file (not a symlink, FIFO, device, or special file)")
	case err != nil:
		return nil, fmt.Errorf("failed to open pattern file: %w", stripPath(err))
	}
	defer f.Close()

	if err := checkSize(info.Size()); err != nil {
		return nil, err
	}

	// One byte past the limit catches a file that grew after Stat.
	data, err := io.ReadAll(io.LimitReader(f, MaxPatternFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file: %w", stripPath(err))
	}
	return LoadBytes(data)
}

// LoadBytes decodes and validates a pattern file held in memory.
// Unknown keys are rejected.
func LoadBytes(data []byte) (*PatternFile, error) {
	if err := checkSize(int64(len(data))); err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var pf PatternFile
	if err := dec.Decode(&pf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := pf.Validate(); err != nil {
		return nil, err
	}
	return &pf, nil
}

func checkSize(n int64) error {
	switch {
	case n == 0:
		return errEmpty
	case n > MaxPatternFileSize:
		return fmt.Errorf("pattern file too large: %d bytes (max %d)", n, MaxPatternFileSize)
	}
	return nil
}

// stripPath drops the file name from an *os.PathError.
func stripPath(err error) error {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return fmt.Errorf("%s: %w", pe.Op, pe.Err)
	}
	return err
}

// Validate checks the file header and every pattern's fields. Regexes are
// compiled later, by Compile, which also checks named groups.
func (pf *PatternFile) Validate() error {
	if pf.Version != SupportedVersion {
		return &ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (only version %d is supported)", pf.Version, SupportedVersion),
		}
	}
	switch n := len(pf.Patterns); {
	case n == 0:
		return &ValidationError{Field: "patterns", Message: "at least one pattern is required"}
	case n > MaxPatternCount:
		return &ValidationError{
			Field:   "patterns",
			Message: fmt.Sprintf("too many patterns (%d), maximum allowed is %d", n, MaxPatternCount),
		}
	}

	firstSeen := make(map[string]int, len(pf.Patterns))
	for i, p := range pf.Patterns {
		if err := p.check(i); err != nil {
			return err
		}
		if prev, dup := firstSeen[p.ID]; dup {
			return &PatternError{
				Index:   i,
				ID:      p.ID,
				Field:   "id",
				Message: fmt.Sprintf("duplicate id (previously defined at pattern[%d])", prev),
			}
		}
		firstSeen[p.ID] = i
	}
	return nil
}

// check validates the fields of the pattern at index i.
func (p Pattern) check(i int) error {
	fail := func(field, msg string) error {
		return &PatternError{Index: i, ID: p.ID, Field: field, Message: msg}
	}

	switch {
	case p.ID == "":
		return fail("id", "id is required")
	case p.EventType == "":
		return fail("event_type", "event_type is required")
	case p.Regex == "":
		return fail("regex", "regex is required")
	case len(p.Regex) > MaxPatternLength:
		return fail("regex", fmt.Sprintf("pattern too long: %d bytes (max %d)", len(p.Regex), MaxPatternLength))
	}
	if _, ok := event.ParseType(p.EventType); !ok {
		return fail("event_type", fmt.Sprintf("unknown event type %q", p.EventType))
	}
	return nil
}
