package fluxdbc

import "fmt"

// Row is a single row of a result, valid only for the duration of the mapping
// callback it is passed to. Accessing a retained Row after the callback has
// returned fails with ErrRowReleased; copy values out instead.
type Row interface {
	// Get returns the value in the given zero-based column.
	Get(index int) (any, error)

	// GetByName returns the value in the named column. Name lookup is exact
	// and case-sensitive.
	GetByName(name string) (any, error)
}

// ColumnMetadata describes one column of a result.
type ColumnMetadata struct {
	// Name is the column label as reported by the database.
	Name string

	// DatabaseTypeName is the database's own name for the column type, such
	// as "VARCHAR". Empty when the driver cannot determine it.
	DatabaseTypeName string

	// Nullable reports whether the column may hold NULL. Drivers that cannot
	// determine nullability report false.
	Nullable bool
}

// RowMetadata describes the columns of a result. It stays valid after the
// rows themselves are released.
type RowMetadata struct {
	columns []ColumnMetadata
	byName  map[string]int
}

// NewRowMetadata builds row metadata from column descriptions. When several
// columns share a name, lookup by that name resolves to the first.
func NewRowMetadata(columns []ColumnMetadata) *RowMetadata {
	m := &RowMetadata{
		columns: append([]ColumnMetadata(nil), columns...),
		byName:  make(map[string]int, len(columns)),
	}
	for i, c := range m.columns {
		if _, ok := m.byName[c.Name]; !ok {
			m.byName[c.Name] = i
		}
	}
	return m
}

// Columns returns the column descriptions in result order. The returned
// slice is shared; callers must not modify it.
func (m *RowMetadata) Columns() []ColumnMetadata { return m.columns }

// ColumnNames returns the column names in result order.
func (m *RowMetadata) ColumnNames() []string {
	names := make([]string, len(m.columns))
	for i, c := range m.columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the zero-based position of the named column.
func (m *RowMetadata) Index(name string) (int, bool) {
	i, ok := m.byName[name]
	return i, ok
}

// Len returns the number of columns.
func (m *RowMetadata) Len() int { return len(m.columns) }

// streamRow is the Row handed to mapping callbacks. The stream reuses one
// instance and repoints it at the cursor's current values, then poisons it
// when the callback returns.
type streamRow struct {
	meta   *RowMetadata
	values []any
	valid  bool
}

func (r *streamRow) Get(index int) (any, error) {
	if !r.valid {
		return nil, ErrRowReleased
	}
	if index < 0 || index >= len(r.values) {
		return nil, fmt.Errorf("fluxdbc: column index %d out of range [0,%d)", index, len(r.values))
	}
	return r.values[index], nil
}

func (r *streamRow) GetByName(name string) (any, error) {
	if !r.valid {
		return nil, ErrRowReleased
	}
	i, ok := r.meta.Index(name)
	if !ok {
		return nil, fmt.Errorf("fluxdbc: no column named %q", name)
	}
	return r.values[i], nil
}
