package gormrepo

import (
	"fmt"
	"regexp"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

var namespacePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,30}$`)

// TablePrefix maps a store namespace (for example "v2") to the prefix put
// in front of every table name. The empty namespace means no prefix.
func TablePrefix(namespace string) (string, error) {
	if namespace == "" {
		return "", nil
	}
	if !namespacePattern.MatchString(namespace) {
		return "", fmt.Errorf("invalid store namespace %q", namespace)
	}
	return namespace + "_", nil
}

func OpenPostgres(dsn, namespace string) (*gorm.DB, error) {
	prefix, err := TablePrefix(namespace)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}
