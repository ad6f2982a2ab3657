package ddl

import "strings"

var typeAliases = map[string]string{
	"INTEGER":     "INT",
	"INT4":        "INT",
	"INT8":        "BIGINT",
	"INT2":        "SMALLINT",
	"BOOL":        "BOOLEAN",
	"DEC":         "DECIMAL",
	"NUMERIC":     "DECIMAL",
	"CHARACTER":   "CHAR",
	"FLOAT8":      "DOUBLE",
	"FLOAT4":      "FLOAT",
	"REAL":        "FLOAT",
	"TIMESTAMPTZ": "TIMESTAMP",
}

var knownTypes = map[string]bool{
	"TINYINT": true, "SMALLINT": true, "MEDIUMINT": true, "INT": true, "BIGINT": true,
	"SERIAL": true, "BIGSERIAL": true,
	"DECIMAL": true, "FLOAT": true, "DOUBLE": true, "BIT": true, "BOOLEAN": true,
	"CHAR": true, "VARCHAR": true, "NCHAR": true, "NVARCHAR": true,
	"TINYTEXT": true, "TEXT": true, "MEDIUMTEXT": true, "LONGTEXT": true,
	"BINARY": true, "VARBINARY": true,
	"TINYBLOB": true, "BLOB": true, "MEDIUMBLOB": true, "LONGBLOB": true, "BYTEA": true,
	"DATE": true, "TIME": true, "DATETIME": true, "TIMESTAMP": true, "YEAR": true, "INTERVAL": true,
	"ENUM": true, "SET": true, "JSON": true, "JSONB": true, "UUID": true,
	"GEOMETRY": true, "POINT": true,
}

// CanonicalType upper-cases a base type and folds common aliases so that
// INTEGER and INT, or BOOL and BOOLEAN, compare equal.
func CanonicalType(t string) string {
	u := strings.ToUpper(strings.TrimSpace(t))
	if alias, ok := typeAliases[u]; ok {
		return alias
	}
	return u
}

// KnownType reports whether a base type is one the project's databases accept.
func KnownType(t string) bool {
	return knownTypes[CanonicalType(t)]
}

// SplitType separates "VARCHAR(50)" or "DECIMAL(10,2)" into the base type and
// the argument text inside the parentheses.
func SplitType(s string) (base, args string) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return strings.ToUpper(s), ""
	}
	return strings.ToUpper(strings.TrimSpace(s[:open])), s[open+1 : len(s)-1]
}

func isDecimalType(t string) bool {
	switch CanonicalType(t) {
	case "DECIMAL":
		return true
	}
	return false
}
