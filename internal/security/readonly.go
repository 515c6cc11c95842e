package security

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsafeQuery     = errors.New("query contains a write operation")
	ErrMultipleQueries = errors.New("multi-statement queries are not allowed")
)

// writeTokens mutate data or schema wherever they appear: SQL statements and
// the document-store write verbs. Matching is whole-token, so a column named
// deleted_at never trips it.
var writeTokens = map[string]struct{}{
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "DROP": {}, "ALTER": {},
	"TRUNCATE": {}, "CREATE": {}, "REPLACE": {}, "GRANT": {}, "REVOKE": {},
	"CALL": {}, "MERGE": {}, "LOAD": {},
	"INSERTONE": {}, "INSERTMANY": {}, "UPDATEONE": {}, "UPDATEMANY": {},
	"DELETEONE": {}, "DELETEMANY": {}, "FINDONEANDUPDATE": {},
	"FINDONEANDDELETE": {}, "FINDONEANDREPLACE": {},
	"FLUSHDB": {}, "FLUSHALL": {},
}

// commandTokens are key-value write commands. They only mean a write when
// they lead the query, so a SQL literal like 'set' stays harmless.
var commandTokens = map[string]struct{}{
	"SET": {}, "DEL": {}, "HSET": {}, "HDEL": {}, "EXPIRE": {},
}

// restrictedNames are catalogs that leak schema or credentials.
var restrictedNames = map[string]struct{}{
	"INFORMATION_SCHEMA": {}, "PERFORMANCE_SCHEMA": {}, "MYSQL": {},
	"PG_CATALOG": {}, "PG_SHADOW": {},
}

// ValidateReadOnly rejects queries that could write. It tokenizes the query
// and checks tokens against the deny lists, which keeps it meaningful for
// all the command styles the drivers accept.
func ValidateReadOnly(query string) error {
	if strings.Contains(query, ";") {
		return ErrMultipleQueries
	}

	tokens := strings.FieldsFunc(query, func(r rune) bool {
		return !(r == '_' ||
			('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') ||
			('0' <= r && r <= '9'))
	})
	for i, tok := range tokens {
		upper := strings.ToUpper(tok)
		if _, bad := writeTokens[upper]; bad {
			return fmt.Errorf("%w: %s", ErrUnsafeQuery, upper)
		}
		if i == 0 {
			if _, bad := commandTokens[upper]; bad {
				return fmt.Errorf("%w: %s", ErrUnsafeQuery, upper)
			}
		}
		if _, bad := restrictedNames[upper]; bad {
			return fmt.Errorf("restricted name in query: %s", upper)
		}
	}
	return nil
}
