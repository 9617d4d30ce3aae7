package db

import (
	"fmt"
	"regexp"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

var schemaRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// EnsureSchema creates schema if it does not exist.
func EnsureSchema(d *gorm.DB, schema string) error {
	if !schemaRe.MatchString(schema) {
		return fmt.Errorf("db: invalid schema name %q", schema)
	}
	return d.Exec("CREATE SCHEMA IF NOT EXISTS " + pq.QuoteIdentifier(schema)).Error
}
