package schema

import (
	"fmt"
	"strings"
)

// Dialect renders schema definitions as DDL for one database engine.
type Dialect interface {
	Name() string
	Quote(ident string) string
	// CreateTable returns the statements that create t and the indexes on its references.
	CreateTable(t Table, ifNotExists bool) []string
}

// DialectFor returns the dialect registered under a gorm dialector name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "mysql":
		return mysqlDialect{}, nil
	case "postgres":
		return postgresDialect{}, nil
	case "sqlite", "sqlite3":
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("schema: unsupported dialect %q", name)
	}
}

// CreateStatements renders the forum tables in dependency order.
func (s *Schema) CreateStatements(d Dialect) []string {
	var stmts []string
	for _, t := range s.Tables {
		stmts = append(stmts, d.CreateTable(t, false)...)
	}
	return stmts
}

// IdentityStatements renders the identity table; an existing table is left alone.
func (s *Schema) IdentityStatements(d Dialect) []string {
	return d.CreateTable(s.Identity(), true)
}

func constraintName(table, column, suffix string) string {
	return table + "_" + column + "_" + suffix
}

func onDeleteSQL(o OnDelete) string {
	if o == Cascade {
		return "CASCADE"
	}
	// PROTECT has no SQL spelling; RESTRICT is the closest storage-level guarantee.
	return "RESTRICT"
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) Quote(ident string) string { return "`" + ident + "`" }

func (d mysqlDialect) columnType(c Column) string {
	switch c.Type {
	case AutoID, Reference:
		return "BIGINT UNSIGNED"
	case Varchar:
		return fmt.Sprintf("VARCHAR(%d)", c.Size)
	case Text:
		return "LONGTEXT"
	case Bool:
		return "BOOLEAN"
	case DateTime:
		return "DATETIME(6)"
	}
	return ""
}

func (d mysqlDialect) CreateTable(t Table, ifNotExists bool) []string {
	var lines []string
	for _, c := range t.Columns {
		line := d.Quote(c.Name) + " " + d.columnType(c)
		if !c.Nullable {
			line += " NOT NULL"
		}
		if c.Type == AutoID {
			line += " AUTO_INCREMENT"
		}
		if c.Default != nil {
			line += " DEFAULT " + boolLiteral(*c.Default, "TRUE", "FALSE")
		}
		lines = append(lines, line)
	}
	lines = append(lines, "PRIMARY KEY (`id`)")
	for _, c := range t.Columns {
		if c.Unique {
			lines = append(lines, fmt.Sprintf("UNIQUE KEY %s (%s)", d.Quote(constraintName(t.Name, c.Name, "uniq")), d.Quote(c.Name)))
		}
	}
	// Inline keys so InnoDB does not add implicit duplicates for the foreign keys.
	for _, c := range t.References() {
		lines = append(lines, fmt.Sprintf("KEY %s (%s)", d.Quote(constraintName(t.Name, c.Name, "idx")), d.Quote(c.Name)))
	}
	for _, c := range t.References() {
		lines = append(lines, fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s",
			d.Quote(constraintName(t.Name, c.Name, "fk")), d.Quote(c.Name),
			d.Quote(c.Ref.Table), d.Quote(c.Ref.Column), onDeleteSQL(c.Ref.OnDelete)))
	}
	return []string{fmt.Sprintf("CREATE TABLE %s%s (\n  %s\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		ifNotExistsSQL(ifNotExists), d.Quote(t.Name), strings.Join(lines, ",\n  "))}
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Quote(ident string) string { return `"` + ident + `"` }

func (d postgresDialect) columnType(c Column) string {
	switch c.Type {
	case AutoID:
		return "BIGINT GENERATED BY DEFAULT AS IDENTITY"
	case Reference:
		return "BIGINT"
	case Varchar:
		return fmt.Sprintf("VARCHAR(%d)", c.Size)
	case Text:
		return "TEXT"
	case Bool:
		return "BOOLEAN"
	case DateTime:
		return "TIMESTAMP WITH TIME ZONE"
	}
	return ""
}

func (d postgresDialect) CreateTable(t Table, ifNotExists bool) []string {
	return createPortable(d, d.columnType, t, ifNotExists, "TRUE", "FALSE", "")
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Quote(ident string) string { return `"` + ident + `"` }

func (d sqliteDialect) columnType(c Column) string {
	switch c.Type {
	case AutoID, Reference:
		return "INTEGER"
	case Varchar:
		return fmt.Sprintf("VARCHAR(%d)", c.Size)
	case Text:
		return "TEXT"
	case Bool:
		return "BOOLEAN"
	case DateTime:
		return "DATETIME"
	}
	return ""
}

func (d sqliteDialect) CreateTable(t Table, ifNotExists bool) []string {
	return createPortable(d, d.columnType, t, ifNotExists, "1", "0", " AUTOINCREMENT")
}

// createPortable renders the inline-REFERENCES form shared by postgres and sqlite.
func createPortable(d Dialect, typeOf func(Column) string, t Table, ifNotExists bool, trueLit, falseLit, autoIncrement string) []string {
	var lines []string
	for _, c := range t.Columns {
		line := d.Quote(c.Name) + " " + typeOf(c)
		if !c.Nullable {
			line += " NOT NULL"
		}
		if c.Type == AutoID {
			line += " PRIMARY KEY" + autoIncrement
		}
		if c.Unique {
			line += " UNIQUE"
		}
		if c.Default != nil {
			line += " DEFAULT " + boolLiteral(*c.Default, trueLit, falseLit)
		}
		if c.Ref != nil {
			line += fmt.Sprintf(" REFERENCES %s (%s) ON DELETE %s",
				d.Quote(c.Ref.Table), d.Quote(c.Ref.Column), onDeleteSQL(c.Ref.OnDelete))
		}
		lines = append(lines, line)
	}
	stmts := []string{fmt.Sprintf("CREATE TABLE %s%s (\n  %s\n)",
		ifNotExistsSQL(ifNotExists), d.Quote(t.Name), strings.Join(lines, ",\n  "))}
	for _, c := range t.References() {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX %s%s ON %s (%s)",
			ifNotExistsSQL(ifNotExists), d.Quote(constraintName(t.Name, c.Name, "idx")), d.Quote(t.Name), d.Quote(c.Name)))
	}
	return stmts
}

func ifNotExistsSQL(b bool) string {
	if b {
		return "IF NOT EXISTS "
	}
	return ""
}

func boolLiteral(v bool, t, f string) string {
	if v {
		return t
	}
	return f
}
