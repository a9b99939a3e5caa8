package db

import (
	"database/sql/driver"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"modernc.org/sqlite"
)

// UnicodeLowerFunc names the SQL function registered on every SQLite connection.
// SQLite's built-in LOWER only folds ASCII letters.
const UnicodeLowerFunc = "ulower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(UnicodeLowerFunc, 1, unicodeLower)
}

// unicodeLower folds TEXT the same way search terms are folded before they reach SQL.
func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return cases.Lower(language.Und).String(v), nil
	case []byte:
		return cases.Lower(language.Und).String(string(v)), nil
	default:
		// NULL and non-text values pass through
		return v, nil
	}
}
