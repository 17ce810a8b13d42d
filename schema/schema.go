package schema

import "fmt"

// Table names of the forum entities.
const (
	TopicTable          = "forum_topic"
	QuestionTable       = "forum_question"
	ResponseTable       = "forum_response"
	QuestionUpVoteTable = "forum_questionupvotes"
	ResponseUpVoteTable = "forum_responseupvotes"
	TagTable            = "forum_tag"
	NominationTable     = "forum_nomination"

	// DefaultIdentityTable is used when the configuration does not name one.
	DefaultIdentityTable = "users"
)

const (
	// TitleMaxLength bounds topic and question titles, in characters.
	TitleMaxLength = 40
	// UsernameMaxLength bounds identity usernames.
	UsernameMaxLength = 64
)

// OnDelete is the action taken on referencing rows when the referenced row is deleted.
type OnDelete int

const (
	// Cascade removes referencing rows together with the referenced row.
	Cascade OnDelete = iota + 1
	// Protect refuses the delete while referencing rows exist.
	Protect
)

func (o OnDelete) String() string {
	switch o {
	case Cascade:
		return "CASCADE"
	case Protect:
		return "PROTECT"
	default:
		return "UNKNOWN"
	}
}

// ColumnType is the logical type of a column; dialects map it to SQL.
type ColumnType int

const (
	AutoID ColumnType = iota + 1
	Reference
	Varchar
	Text
	Bool
	DateTime
)

// ForeignKey describes the target of a Reference column.
type ForeignKey struct {
	Table    string
	Column   string
	OnDelete OnDelete
}

// Column is a single column definition. All forum columns are NOT NULL.
type Column struct {
	Name     string
	Type     ColumnType
	Size     int
	Nullable bool
	Unique   bool
	// Default is a logical default; only booleans carry one in this schema.
	Default *bool
	Ref     *ForeignKey
}

// Table is an ordered list of columns under a name.
type Table struct {
	Name    string
	Columns []Column
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// References returns the foreign-key columns of the table.
func (t Table) References() []Column {
	var refs []Column
	for _, c := range t.Columns {
		if c.Ref != nil {
			refs = append(refs, c)
		}
	}
	return refs
}

// Edge points at a referencing column: rows of Table whose Column holds the parent id.
type Edge struct {
	Table  string
	Column string
}

// Schema holds the forum tables in dependency order together with the
// identity table they point at.
type Schema struct {
	IdentityTable string
	Tables        []Table
}

func boolDefault(v bool) *bool { return &v }

func id() Column { return Column{Name: "id", Type: AutoID} }

func ref(name, table string, action OnDelete) Column {
	return Column{Name: name, Type: Reference, Ref: &ForeignKey{Table: table, Column: "id", OnDelete: action}}
}

func isDeleted() Column {
	return Column{Name: "is_deleted", Type: Bool, Default: boolDefault(false)}
}

func timestamp() Column { return Column{Name: "timestamp", Type: DateTime} }

func title() Column { return Column{Name: "title", Type: Varchar, Size: TitleMaxLength} }

func description() Column { return Column{Name: "description", Type: Text} }

// Forum builds the forum schema with user references pointing at identityTable.
func Forum(identityTable string) *Schema {
	if identityTable == "" {
		identityTable = DefaultIdentityTable
	}
	author := func() Column { return ref("author_id", identityTable, Protect) }

	return &Schema{
		IdentityTable: identityTable,
		Tables: []Table{
			{Name: TopicTable, Columns: []Column{
				id(),
				author(),
				description(),
				{Name: "is_approved", Type: Bool, Default: boolDefault(false)},
				title(),
			}},
			{Name: QuestionTable, Columns: []Column{
				id(),
				author(),
				description(),
				isDeleted(),
				timestamp(),
				title(),
				ref("topic_id", TopicTable, Cascade),
			}},
			{Name: ResponseTable, Columns: []Column{
				id(),
				author(),
				description(),
				isDeleted(),
				ref("question_id", QuestionTable, Cascade),
				timestamp(),
			}},
			{Name: QuestionUpVoteTable, Columns: []Column{
				id(),
				author(),
				isDeleted(),
				ref("question_id", QuestionTable, Cascade),
				timestamp(),
			}},
			{Name: ResponseUpVoteTable, Columns: []Column{
				id(),
				author(),
				isDeleted(),
				ref("response_id", ResponseTable, Cascade),
				timestamp(),
			}},
			{Name: TagTable, Columns: []Column{
				id(),
				author(),
				isDeleted(),
				ref("question_id", QuestionTable, Cascade),
				ref("tagged_user_id", identityTable, Protect),
				timestamp(),
			}},
			{Name: NominationTable, Columns: []Column{
				id(),
				author(),
				isDeleted(),
				ref("nominated_user_id", identityTable, Protect),
				timestamp(),
			}},
		},
	}
}

// Identity describes the minimal identity table the forum references.
func (s *Schema) Identity() Table {
	return Table{Name: s.IdentityTable, Columns: []Column{
		id(),
		{Name: "username", Type: Varchar, Size: UsernameMaxLength, Unique: true},
		{Name: "password_hash", Type: Varchar, Size: 255},
		{Name: "created_at", Type: DateTime},
		{Name: "updated_at", Type: DateTime},
	}}
}

// Table looks up a forum table by name.
func (s *Schema) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// MustTable is Table for names known at compile time.
func (s *Schema) MustTable(name string) Table {
	t, ok := s.Table(name)
	if !ok {
		panic(fmt.Sprintf("schema: unknown table %q", name))
	}
	return t
}

// CascadeChildren lists the columns that cascade-delete when a row of table is deleted.
func (s *Schema) CascadeChildren(table string) []Edge {
	return s.edges(table, Cascade)
}

// ProtectedBy lists the columns that block deletion of a row of table.
func (s *Schema) ProtectedBy(table string) []Edge {
	return s.edges(table, Protect)
}

func (s *Schema) edges(table string, action OnDelete) []Edge {
	var out []Edge
	for _, t := range s.Tables {
		for _, c := range t.References() {
			if c.Ref.Table == table && c.Ref.OnDelete == action {
				out = append(out, Edge{Table: t.Name, Column: c.Name})
			}
		}
	}
	return out
}

// SoftDeletable reports whether rows of table carry an is_deleted flag.
func (s *Schema) SoftDeletable(table string) bool {
	t, ok := s.Table(table)
	if !ok {
		return false
	}
	_, ok = t.Column("is_deleted")
	return ok
}

// ValidIdentifier reports whether name is safe to splice into DDL unquoted-equivalent form.
func ValidIdentifier(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
