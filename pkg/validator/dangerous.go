package validator

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Dialect identifies the query language a dangerous-operation check must
// be specialized for. Its values are not the provider.Provider.QueryLanguage()
// labels; pkg/orchestrator's dialectFor maps those labels onto a Dialect.
type Dialect string

const (
	DialectSQL     Dialect = "SQL"
	DialectMongoDB Dialect = "MongoDB"
	DialectSPL     Dialect = "SPL"
)

// sqlDangerousOps are keywords whose presence, combined with a missing
// WHERE clause, marks a SQL statement dangerous. DROP/TRUNCATE are
// dangerous unconditionally since they affect a whole table regardless of
// any WHERE clause, carried over from
// original_source/src/text2x/providers/sql_provider.py's validate_syntax.
var sqlDangerousOps = []string{"DROP", "TRUNCATE", "DELETE FROM", "UPDATE"}

var sqlUnconditionalOps = []string{"DROP", "TRUNCATE"}

// mongoWriteOps are the wire-exposed operations (spec.md §6) that mutate or
// remove data and therefore require a non-empty filter.
var mongoWriteOps = map[string]bool{
	"delete_one": true, "delete_many": true,
	"update_one": true, "update_many": true,
}

// splWriteCommands are SPL commands that write or delete indexed data,
// dangerous regardless of any filtering applied earlier in the pipe.
var splWriteCommands = []string{"delete", "collect", "outputlookup"}

// Detect returns whether query is a dangerous operation under dialect, and
// a human-readable warning describing why. A dangerous query always
// produces a warning (spec.md §4.6); callers refuse to execute it
// separately when execution is enabled.
func Detect(query string, dialect Dialect) (dangerous bool, warning string) {
	switch dialect {
	case DialectMongoDB:
		return detectMongo(query)
	case DialectSPL:
		return detectSPL(query)
	default:
		return detectSQL(query)
	}
}

func detectSQL(query string) (bool, string) {
	upper := strings.ToUpper(query)

	hasOp := false
	for _, op := range sqlDangerousOps {
		if strings.Contains(upper, op) {
			hasOp = true
			break
		}
	}
	if !hasOp {
		return false, ""
	}

	unconditional := false
	for _, op := range sqlUnconditionalOps {
		if strings.Contains(upper, op) {
			unconditional = true
			break
		}
	}
	if unconditional {
		return true, "DROP/TRUNCATE affects the whole table unconditionally"
	}

	if !strings.Contains(upper, "WHERE") {
		return true, "DELETE/UPDATE without a WHERE clause affects every row"
	}
	return false, ""
}

// mongoOperation is the minimal shape needed to read operation/filter out
// of the wire document described in spec.md §6.
type mongoOperation struct {
	Operation string          `json:"operation"`
	Filter    json.RawMessage `json:"filter"`
}

func detectMongo(query string) (bool, string) {
	var op mongoOperation
	if err := json.Unmarshal([]byte(query), &op); err != nil {
		return false, ""
	}
	if !mongoWriteOps[op.Operation] {
		return false, ""
	}
	if len(op.Filter) == 0 || isEmptyJSONObject(op.Filter) {
		return true, op.Operation + " without a filter affects every matching document"
	}
	return false, ""
}

func isEmptyJSONObject(raw json.RawMessage) bool {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return false
	}
	return len(m) == 0
}

var splPipePattern = regexp.MustCompile(`\|\s*([a-zA-Z]+)`)

func detectSPL(query string) (bool, string) {
	for _, m := range splPipePattern.FindAllStringSubmatch(strings.ToLower(query), -1) {
		cmd := m[1]
		for _, write := range splWriteCommands {
			if cmd == write {
				return true, "SPL command \"" + cmd + "\" writes or deletes indexed data"
			}
		}
	}
	return false, ""
}
