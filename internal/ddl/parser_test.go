package ddl

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/tordrt/schemacheck/internal/schema"
)

const employeeDDL = `-- MST_Employee (社員)
CREATE TABLE MST_Employee (
    id VARCHAR(50) NOT NULL COMMENT 'ID',
    tenant_id VARCHAR(50) NOT NULL COMMENT 'テナントID',
    emp_no VARCHAR(30) NOT NULL COMMENT '社員番号, 一意',
    name VARCHAR(100) COMMENT '氏名',
    salary DECIMAL(10,2) DEFAULT 0.00,
    status ENUM('active','retired','on,leave') NOT NULL DEFAULT 'active',
    department_id VARCHAR(50) COMMENT '部署ID',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (id),
    UNIQUE KEY uk_emp_no (tenant_id, emp_no),
    KEY idx_name (name),
    CONSTRAINT chk_salary CHECK (salary >= 0)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COMMENT='社員';

CREATE INDEX idx_department ON MST_Employee (department_id, status);
CREATE UNIQUE INDEX idx_tenant_emp ON MST_Employee (tenant_id, emp_no);

ALTER TABLE MST_Employee ADD CONSTRAINT fk_emp_department FOREIGN KEY (department_id) REFERENCES MST_Department(id) ON UPDATE CASCADE ON DELETE SET NULL;
ALTER TABLE MST_Other ADD CONSTRAINT fk_other FOREIGN KEY (x_id) REFERENCES MST_X(id);
`

func TestParseEmployee(t *testing.T) {
	table, err := Parse(employeeDDL)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if table.Name != "MST_Employee" {
		t.Errorf("Name = %q", table.Name)
	}
	if table.Comment != "社員" {
		t.Errorf("Comment = %q", table.Comment)
	}

	wantCols := []string{"id", "tenant_id", "emp_no", "name", "salary", "status", "department_id", "created_at", "updated_at", "is_deleted"}
	if got := table.ColumnNames(); !reflect.DeepEqual(got, wantCols) {
		t.Fatalf("ColumnNames() = %v, want %v", got, wantCols)
	}

	id := table.Column("id")
	if id.Type != "VARCHAR" || id.Length == nil || *id.Length != 50 || id.Nullable || !id.PrimaryKey {
		t.Errorf("id column = %+v", id)
	}
	if c := table.Column("emp_no"); c.Comment != "社員番号, 一意" {
		t.Errorf("emp_no comment = %q", c.Comment)
	}
	if c := table.Column("name"); !c.Nullable {
		t.Errorf("name should be nullable")
	}

	salary := table.Column("salary")
	if salary.Type != "DECIMAL" || *salary.Precision != 10 || *salary.Scale != 2 {
		t.Errorf("salary column = %+v", salary)
	}
	if salary.DefaultValue == nil || *salary.DefaultValue != "0.00" {
		t.Errorf("salary default = %v", salary.DefaultValue)
	}

	status := table.Column("status")
	if !reflect.DeepEqual(status.EnumValues, []string{"active", "retired", "on,leave"}) {
		t.Errorf("status enum = %q", status.EnumValues)
	}
	if status.DefaultValue == nil || *status.DefaultValue != "active" {
		t.Errorf("status default = %v", status.DefaultValue)
	}

	for _, name := range []string{"created_at", "updated_at"} {
		c := table.Column(name)
		if c.DefaultValue == nil || *c.DefaultValue != "CURRENT_TIMESTAMP" {
			t.Errorf("%s default = %v", name, c.DefaultValue)
		}
	}
	if c := table.Column("is_deleted"); c.DefaultValue == nil || *c.DefaultValue != "FALSE" {
		t.Errorf("is_deleted default = %v", c.DefaultValue)
	}

	if !reflect.DeepEqual(table.PrimaryKey, []string{"id"}) {
		t.Errorf("PrimaryKey = %v", table.PrimaryKey)
	}

	uniques := table.ConstraintsOfKind(schema.ConstraintUnique)
	if len(uniques) != 1 || uniques[0].Name != "uk_emp_no" || !reflect.DeepEqual(uniques[0].Columns, []string{"tenant_id", "emp_no"}) {
		t.Errorf("unique constraints = %+v", uniques)
	}
	checks := table.ConstraintsOfKind(schema.ConstraintCheck)
	if len(checks) != 1 || checks[0].Name != "chk_salary" || checks[0].Condition != "salary >= 0" {
		t.Errorf("check constraints = %+v", checks)
	}

	wantIdx := []schema.Index{
		{Name: "idx_name", Columns: []string{"name"}},
		{Name: "idx_department", Columns: []string{"department_id", "status"}},
		{Name: "idx_tenant_emp", Columns: []string{"tenant_id", "emp_no"}, Unique: true},
	}
	if !reflect.DeepEqual(table.Indexes, wantIdx) {
		t.Errorf("Indexes = %+v, want %+v", table.Indexes, wantIdx)
	}

	if len(table.ForeignKeys) != 1 {
		t.Fatalf("ForeignKeys = %+v, want one", table.ForeignKeys)
	}
	fk := table.ForeignKeys[0]
	want := schema.ForeignKey{
		Name:       "fk_emp_department",
		Columns:    []string{"department_id"},
		RefTable:   "MST_Department",
		RefColumns: []string{"id"},
		OnUpdate:   schema.ActionCascade,
		OnDelete:   schema.ActionSetNull,
	}
	if !reflect.DeepEqual(fk, want) {
		t.Errorf("ForeignKey = %+v, want %+v", fk, want)
	}
}

func TestParseColumnCountMatchesDefinitions(t *testing.T) {
	tests := []struct {
		name string
		ddl  string
		want []string
	}{
		{
			name: "scenario table",
			ddl:  "CREATE TABLE MST_Employee (id VARCHAR(50) NOT NULL, name VARCHAR(100), PRIMARY KEY(id));",
			want: []string{"id", "name"},
		},
		{
			name: "clauses interleaved",
			ddl:  "CREATE TABLE t (a INT, PRIMARY KEY (a), b TEXT, INDEX ix (b), c CHAR(2), CHECK (c <> ''))",
			want: []string{"a", "b", "c"},
		},
		{
			name: "quoted identifiers and keyword-like names",
			ddl:  "CREATE TABLE IF NOT EXISTS `db`.`t` (`key` INT, `index` INT, unique_code VARCHAR(10), check_flag BOOLEAN)",
			want: []string{"key", "index", "unique_code", "check_flag"},
		},
		{
			name: "unknown types accepted",
			ddl:  "CREATE TABLE t (geo GEOGRAPHY(POINT, 4326), payload MYTYPE, n INT)",
			want: []string{"geo", "payload", "n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Parse(tt.ddl)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := table.ColumnNames(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ColumnNames() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseQualifiedName(t *testing.T) {
	table, err := Parse("CREATE TABLE `db`.`MST_Role` (id INT)")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if table.Name != "MST_Role" {
		t.Errorf("Name = %q, want MST_Role", table.Name)
	}
}

func TestParseInlineModifiers(t *testing.T) {
	ddl := `CREATE TABLE TRN_Order (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		code VARCHAR(20) UNIQUE,
		customer_id BIGINT NOT NULL REFERENCES MST_Customer(id) ON DELETE CASCADE,
		note TEXT CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NULL,
		qty INT DEFAULT 1 CHECK (qty > 0),
		label VARCHAR(10) DEFAULT NULL
	)`
	table, err := Parse(ddl)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	id := table.Column("id")
	if !id.PrimaryKey || !id.AutoIncrement || id.Nullable {
		t.Errorf("id = %+v", id)
	}
	if !reflect.DeepEqual(table.PrimaryKey, []string{"id"}) {
		t.Errorf("PrimaryKey = %v", table.PrimaryKey)
	}
	if !table.Column("code").Unique {
		t.Errorf("code should be unique")
	}
	if c := table.Column("note"); !c.Nullable || c.Type != "TEXT" {
		t.Errorf("note = %+v", c)
	}
	if c := table.Column("qty"); c.DefaultValue == nil || *c.DefaultValue != "1" {
		t.Errorf("qty default = %v", c.DefaultValue)
	}
	if c := table.Column("label"); c.DefaultValue != nil {
		t.Errorf("DEFAULT NULL should leave no default, got %q", *c.DefaultValue)
	}

	if len(table.ForeignKeys) != 1 {
		t.Fatalf("ForeignKeys = %+v", table.ForeignKeys)
	}
	fk := table.ForeignKeys[0]
	if fk.RefTable != "MST_Customer" || fk.OnDelete != schema.ActionCascade || fk.OnUpdate != schema.ActionRestrict {
		t.Errorf("ForeignKey = %+v", fk)
	}

	checks := table.ConstraintsOfKind(schema.ConstraintCheck)
	if len(checks) != 1 || checks[0].Name != "TRN_Order_chk_1" {
		t.Errorf("checks = %+v", checks)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		ddl  string
	}{
		{name: "no create table", ddl: "ALTER TABLE t ADD COLUMN a INT;"},
		{name: "empty", ddl: ""},
		{name: "unbalanced paren", ddl: "CREATE TABLE t (a DECIMAL(10,2), b INT"},
		{name: "unterminated quote", ddl: "CREATE TABLE t (a VARCHAR(5) DEFAULT 'x, b INT);"},
		{name: "commented out", ddl: "-- CREATE TABLE t (a INT);"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.ddl)
			var perr *schema.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Parse() error = %v, want *schema.ParseError", err)
			}
			if perr.Source != schema.SourceDDL {
				t.Errorf("Source = %q", perr.Source)
			}
		})
	}
}

func TestParseErrorLine(t *testing.T) {
	_, err := Parse("-- header\n\nCREATE TABLE t (\n a INT,\n b VARCHAR(5")
	var perr *schema.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if perr.Line != 3 {
		t.Errorf("Line = %d, want 3", perr.Line)
	}
}

func TestParseAttachesAlterStatements(t *testing.T) {
	text := `CREATE TABLE B (id INT, a_id INT, PRIMARY KEY (id));
ALTER TABLE A ADD CONSTRAINT fk_a_c FOREIGN KEY (c_id) REFERENCES C (id);
ALTER TABLE B ADD CONSTRAINT fk_b_a FOREIGN KEY (a_id) REFERENCES A (id);
ALTER TABLE b ADD CONSTRAINT uk_b UNIQUE (a_id), ADD CONSTRAINT chk_b CHECK (id > 0);
CREATE UNIQUE INDEX idx_b_a ON B (a_id);
CREATE INDEX idx_a ON A (id);`

	table, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(table.ForeignKeys) != 1 || table.ForeignKeys[0].Name != "fk_b_a" {
		t.Errorf("foreign keys = %+v", table.ForeignKeys)
	}
	if got := len(table.Constraints); got != 2 {
		t.Errorf("constraints = %+v", table.Constraints)
	}
	if len(table.Indexes) != 1 || table.Indexes[0].Name != "idx_b_a" || !table.Indexes[0].Unique {
		t.Errorf("indexes = %+v", table.Indexes)
	}
}

func TestParseMalformedAlter(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantLine int
	}{
		{
			name:     "foreign key without references",
			text:     "CREATE TABLE B (id INT, a_id INT);\n\nALTER TABLE B ADD CONSTRAINT fk_b_a FOREIGN KEY (a_id);",
			wantLine: 3,
		},
		{
			name:     "constraint without body",
			text:     "CREATE TABLE B (id INT);\nALTER TABLE B ADD CONSTRAINT fk_b_a;",
			wantLine: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			var perr *schema.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if perr.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", perr.Line, tt.wantLine)
			}
			if !strings.Contains(perr.Msg, "ALTER TABLE B") {
				t.Errorf("Msg = %q", perr.Msg)
			}
		})
	}

	// A malformed clause for another table does not affect this one.
	if _, err := Parse("CREATE TABLE B (id INT);\nALTER TABLE A ADD CONSTRAINT fk_a;"); err != nil {
		t.Errorf("Parse() error = %v", err)
	}
}

func TestGenerateRoundTrip(t *testing.T) {
	original, err := Parse(employeeDDL)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	generated := Generate(original)
	if !strings.Contains(generated, "CREATE TABLE MST_Employee (") {
		t.Fatalf("unexpected DDL:\n%s", generated)
	}

	reparsed, err := Parse(generated)
	if err != nil {
		t.Fatalf("Parse(Generate()) error = %v\n%s", err, generated)
	}

	if !reflect.DeepEqual(reparsed.ColumnNames(), original.ColumnNames()) {
		t.Errorf("columns = %v, want %v", reparsed.ColumnNames(), original.ColumnNames())
	}
	for _, col := range original.Columns {
		got := reparsed.Column(col.Name)
		if got.Type != col.Type || got.Nullable != col.Nullable || LengthSpec(*got) != LengthSpec(col) {
			t.Errorf("column %s = %+v, want %+v", col.Name, got, col)
		}
		if !reflect.DeepEqual(got.EnumValues, col.EnumValues) {
			t.Errorf("column %s enum = %v, want %v", col.Name, got.EnumValues, col.EnumValues)
		}
		if (got.DefaultValue == nil) != (col.DefaultValue == nil) ||
			(got.DefaultValue != nil && *got.DefaultValue != *col.DefaultValue) {
			t.Errorf("column %s default = %v, want %v", col.Name, got.DefaultValue, col.DefaultValue)
		}
	}
	if !reflect.DeepEqual(reparsed.PrimaryKey, original.PrimaryKey) {
		t.Errorf("PrimaryKey = %v, want %v", reparsed.PrimaryKey, original.PrimaryKey)
	}
	if !reflect.DeepEqual(reparsed.Indexes, original.Indexes) {
		t.Errorf("Indexes = %+v, want %+v", reparsed.Indexes, original.Indexes)
	}
	if !reflect.DeepEqual(reparsed.ForeignKeys, original.ForeignKeys) {
		t.Errorf("ForeignKeys = %+v, want %+v", reparsed.ForeignKeys, original.ForeignKeys)
	}
	if !reflect.DeepEqual(reparsed.Constraints, original.Constraints) {
		t.Errorf("Constraints = %+v, want %+v", reparsed.Constraints, original.Constraints)
	}
}

func TestCanonicalType(t *testing.T) {
	tests := map[string]string{
		"integer": "INT",
		"INT":     "INT",
		"bool":    "BOOLEAN",
		"numeric": "DECIMAL",
		"varchar": "VARCHAR",
	}
	for in, want := range tests {
		if got := CanonicalType(in); got != want {
			t.Errorf("CanonicalType(%q) = %q, want %q", in, got, want)
		}
	}
	if KnownType("MYTYPE") {
		t.Error("MYTYPE should not be a known type")
	}
	if !KnownType("datetime") {
		t.Error("DATETIME should be a known type")
	}
}

func TestSplitType(t *testing.T) {
	tests := []struct {
		in, base, args string
	}{
		{"VARCHAR(50)", "VARCHAR", "50"},
		{"decimal(10,2)", "DECIMAL", "10,2"},
		{"TEXT", "TEXT", ""},
		{"ENUM('a','b')", "ENUM", "'a','b'"},
	}
	for _, tt := range tests {
		base, args := SplitType(tt.in)
		if base != tt.base || args != tt.args {
			t.Errorf("SplitType(%q) = %q, %q; want %q, %q", tt.in, base, args, tt.base, tt.args)
		}
	}
}
