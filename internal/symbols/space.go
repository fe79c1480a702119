// Package symbols implements the symbol space: named tables of structure
// templates loaded from intermediate symbol files.
//
// A table is built once from a JSON resource describing base types and
// structures. Member references to structures that are not yet defined at
// their point of declaration become deferred references resolved through
// the space at construction time, so mutually recursive definitions load
// without any particular ordering.
package symbols

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/marrow-forensics/marrow/internal/objects"
)

// ErrNotFound is the sentinel matched by errors.Is for any failed symbol
// lookup.
var ErrNotFound = errors.New("symbol not found")

// NotFoundError reports a qualified name that did not resolve. The lookup
// is not retried; tables are static once loaded.
type NotFoundError struct {
	Table     string
	Structure string
}

func (e *NotFoundError) Error() string {
	if e.Structure == "" {
		return fmt.Sprintf("table %q: %v", e.Table, ErrNotFound)
	}
	return fmt.Sprintf("%s!%s: %v", e.Table, e.Structure, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Space is the loaded collection of symbol tables, resolvable by
// qualified "table!structure" name. It implements objects.Resolver.
type Space struct {
	tables    map[string]*Table
	order     []string
	overrides map[string]objects.Kind
	log       zerolog.Logger
}

// NewSpace returns an empty symbol space.
func NewSpace(log zerolog.Logger) *Space {
	return &Space{
		tables:    make(map[string]*Table),
		overrides: make(map[string]objects.Kind),
		log:       log.With().Str("component", "symbols").Logger(),
	}
}

// SetTypeOverride attaches a richer object implementation to a structure
// name, before or after load. Already-loaded templates are rekinded in
// place, so the next construction of the structure uses the override; the
// structure's shape stays fully data-driven.
func (s *Space) SetTypeOverride(structureName string, kind objects.Kind) error {
	if kind == nil {
		return &objects.ValidationError{Structure: structureName, Reason: "no object kind supplied"}
	}
	s.overrides[structureName] = kind
	for _, table := range s.tables {
		t, ok := table.structures[structureName]
		if !ok {
			continue
		}
		direct, ok := t.(*objects.ObjectTemplate)
		if !ok {
			continue
		}
		if err := direct.SetKind(kind); err != nil {
			return err
		}
		s.log.Debug().Str("structure", structureName).Str("table", table.name).
			Msg("applied type override")
	}
	return nil
}

// GetStructure resolves a qualified "table!structure" name to exactly one
// template, or fails with a NotFoundError. There is no fallback.
func (s *Space) GetStructure(qualifiedName string) (objects.Template, error) {
	tableName, structName, ok := strings.Cut(qualifiedName, "!")
	if !ok || tableName == "" || structName == "" {
		return nil, fmt.Errorf("malformed qualified name %q, want table!structure", qualifiedName)
	}
	table, ok := s.tables[tableName]
	if !ok {
		return nil, &NotFoundError{Table: tableName}
	}
	t, ok := table.structures[structName]
	if !ok {
		return nil, &NotFoundError{Table: tableName, Structure: structName}
	}
	return t, nil
}

// Table returns a loaded table by name.
func (s *Space) Table(name string) (*Table, error) {
	table, ok := s.tables[name]
	if !ok {
		return nil, &NotFoundError{Table: name}
	}
	return table, nil
}

// Tables returns loaded table names in load order.
func (s *Space) Tables() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// LoadTableFile loads an intermediate symbol file from disk into a new
// table.
func (s *Space) LoadTableFile(name, path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading symbol resource %s: %w", path, err)
	}
	return s.LoadTable(name, data)
}

// LoadTable parses a JSON intermediate symbol resource into a table
// registered under name. Structures are processed in declaration order;
// references to structures defined later in the resource (or registered
// later in the space) resolve lazily at construction time.
func (s *Space) LoadTable(name string, data []byte) (*Table, error) {
	if _, exists := s.tables[name]; exists {
		return nil, fmt.Errorf("table %q is already loaded", name)
	}
	table, err := parseTable(s, name, data)
	if err != nil {
		return nil, fmt.Errorf("loading table %q: %w", name, err)
	}
	s.tables[name] = table
	s.order = append(s.order, name)
	s.log.Info().Str("table", name).
		Int("structures", len(table.order)).
		Str("fingerprint", fmt.Sprintf("%016x", table.fingerprint)).
		Msg("symbol table loaded")
	return table, nil
}

// Table is one loaded symbol resource: its base types and structure
// templates, plus a content fingerprint for identity and diagnostics.
type Table struct {
	name        string
	fingerprint uint64
	baseTypes   map[string]objects.Template
	structures  map[string]objects.Template
	order       []string
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Fingerprint returns the xxh3 hash of the resource bytes the table was
// loaded from.
func (t *Table) Fingerprint() uint64 { return t.fingerprint }

// Structures returns structure names in declaration order.
func (t *Table) Structures() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Get returns the template for a structure declared in this table.
func (t *Table) Get(name string) (objects.Template, bool) {
	tmpl, ok := t.structures[name]
	return tmpl, ok
}
