package schema

import (
	"strings"
	"testing"
)

func TestForumTablesInDependencyOrder(t *testing.T) {
	s := Forum("")
	if s.IdentityTable != DefaultIdentityTable {
		t.Fatalf("identity table = %q, want %q", s.IdentityTable, DefaultIdentityTable)
	}
	if len(s.Tables) != 7 {
		t.Fatalf("got %d tables, want 7", len(s.Tables))
	}

	seen := map[string]bool{s.IdentityTable: true}
	for _, tbl := range s.Tables {
		for _, c := range tbl.References() {
			if !seen[c.Ref.Table] {
				t.Errorf("%s.%s references %s before it is defined", tbl.Name, c.Name, c.Ref.Table)
			}
		}
		seen[tbl.Name] = true
	}
}

func TestCascadeChildren(t *testing.T) {
	s := Forum("accounts")

	tests := []struct {
		table string
		want  []Edge
	}{
		{TopicTable, []Edge{{QuestionTable, "topic_id"}}},
		{QuestionTable, []Edge{{ResponseTable, "question_id"}, {QuestionUpVoteTable, "question_id"}, {TagTable, "question_id"}}},
		{ResponseTable, []Edge{{ResponseUpVoteTable, "response_id"}}},
		{NominationTable, nil},
		{"accounts", nil},
	}

	for _, tt := range tests {
		got := s.CascadeChildren(tt.table)
		if len(got) != len(tt.want) {
			t.Errorf("CascadeChildren(%s) = %v, want %v", tt.table, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("CascadeChildren(%s)[%d] = %v, want %v", tt.table, i, got[i], tt.want[i])
			}
		}
	}
}

func TestProtectedByCoversEveryUserReference(t *testing.T) {
	s := Forum("accounts")
	got := s.ProtectedBy("accounts")

	want := map[Edge]bool{
		{TopicTable, "author_id"}:              true,
		{QuestionTable, "author_id"}:           true,
		{ResponseTable, "author_id"}:           true,
		{QuestionUpVoteTable, "author_id"}:     true,
		{ResponseUpVoteTable, "author_id"}:     true,
		{TagTable, "author_id"}:                true,
		{TagTable, "tagged_user_id"}:           true,
		{NominationTable, "author_id"}:         true,
		{NominationTable, "nominated_user_id"}: true,
	}
	if len(got) != len(want) {
		t.Fatalf("ProtectedBy returned %d edges, want %d: %v", len(got), len(want), got)
	}
	for _, e := range got {
		if !want[e] {
			t.Errorf("unexpected protected edge %v", e)
		}
	}
}

func TestSoftDeletable(t *testing.T) {
	s := Forum("")
	if s.SoftDeletable(TopicTable) {
		t.Error("topics have no is_deleted flag")
	}
	for _, name := range []string{QuestionTable, ResponseTable, QuestionUpVoteTable, ResponseUpVoteTable, TagTable, NominationTable} {
		if !s.SoftDeletable(name) {
			t.Errorf("%s should be soft-deletable", name)
		}
	}
	if s.SoftDeletable("nope") {
		t.Error("unknown table reported soft-deletable")
	}
}

func TestCreateStatementsPerDialect(t *testing.T) {
	s := Forum("")

	tests := []struct {
		dialect string
		want    []string
	}{
		{"mysql", []string{
			"CREATE TABLE `forum_topic`",
			"`title` VARCHAR(40) NOT NULL",
			"`is_approved` BOOLEAN NOT NULL DEFAULT FALSE",
			"FOREIGN KEY (`topic_id`) REFERENCES `forum_topic` (`id`) ON DELETE CASCADE",
			"FOREIGN KEY (`author_id`) REFERENCES `users` (`id`) ON DELETE RESTRICT",
		}},
		{"postgres", []string{
			`"id" BIGINT GENERATED BY DEFAULT AS IDENTITY NOT NULL PRIMARY KEY`,
			`"topic_id" BIGINT NOT NULL REFERENCES "forum_topic" ("id") ON DELETE CASCADE`,
			`CREATE INDEX "forum_tag_tagged_user_id_idx" ON "forum_tag" ("tagged_user_id")`,
		}},
		{"sqlite", []string{
			`"id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT`,
			`"is_deleted" BOOLEAN NOT NULL DEFAULT 0`,
			`"nominated_user_id" INTEGER NOT NULL REFERENCES "users" ("id") ON DELETE RESTRICT`,
		}},
	}

	for _, tt := range tests {
		d, err := DialectFor(tt.dialect)
		if err != nil {
			t.Fatalf("DialectFor(%s): %v", tt.dialect, err)
		}
		ddl := strings.Join(s.CreateStatements(d), ";\n")
		for _, fragment := range tt.want {
			if !strings.Contains(ddl, fragment) {
				t.Errorf("%s DDL missing %q\n%s", tt.dialect, fragment, ddl)
			}
		}
	}
}

func TestIdentityStatementsAreIdempotent(t *testing.T) {
	d, _ := DialectFor("sqlite")
	stmts := Forum("accounts").IdentityStatements(d)
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1", len(stmts))
	}
	if !strings.HasPrefix(stmts[0], `CREATE TABLE IF NOT EXISTS "accounts"`) {
		t.Errorf("unexpected identity DDL: %s", stmts[0])
	}
	if !strings.Contains(stmts[0], `"username" VARCHAR(64) NOT NULL UNIQUE`) {
		t.Errorf("identity DDL lacks unique username: %s", stmts[0])
	}
}

func TestDialectForUnknown(t *testing.T) {
	if _, err := DialectFor("oracle"); err == nil {
		t.Fatal("expected error for unsupported dialect")
	}
}

func TestValidIdentifier(t *testing.T) {
	tests := map[string]bool{
		"users":       true,
		"auth_user":   true,
		"_x1":         true,
		"":            false,
		"1users":      false,
		"users; drop": false,
		"users-table": false,
		"\"users\"":   false,
		"Users2":      true,
	}
	for in, want := range tests {
		if got := ValidIdentifier(in); got != want {
			t.Errorf("ValidIdentifier(%q) = %v, want %v", in, got, want)
		}
	}
}
