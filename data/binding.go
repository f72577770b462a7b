package data

import (
	"fmt"
	"regexp"
	"time"
)

// identifierPattern matches unquoted SQL identifiers up to the postgres
// limit of 63 bytes.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Slot identifies one versionable hook on one table.
type Slot struct {
	Table string `json:"table" yaml:"table"`
	Hook  string `json:"hook" yaml:"hook"`
}

func (s Slot) String() string {
	return s.Table + "." + s.Hook
}

// Validate checks both identifiers of the slot.
func (s Slot) Validate() error {
	if err := ValidateIdentifier(s.Table); err != nil {
		return err
	}

	return ValidateIdentifier(s.Hook)
}

// ValidateIdentifier checks if name can be used as table or hook name.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: '%s'", ErrInvalidIdentifier, name)
	}

	return nil
}

// Binding records which implementation version is wired to a slot.
// At most one binding exists per slot and its version never decreases.
type Binding struct {
	Slot

	Version        int       `json:"version"`
	Implementation string    `json:"implementation"`
	InstallTime    time.Time `json:"install_time"`
}

func NewBinding(slot Slot, version int, implementation string) *Binding {
	return &Binding{
		Slot:           slot,
		Version:        version,
		Implementation: implementation,
		InstallTime:    time.Now(),
	}
}

func (b *Binding) String() string {
	return fmt.Sprintf("%s@v%d(%s)", b.Slot, b.Version, b.Implementation)
}

// DefaultSlot is the directory counter hook on the metadata table.
var DefaultSlot = Slot{Table: "vfs_metadata", Hook: "dir_count"}
