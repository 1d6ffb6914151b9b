package db

import (
	"github.com/jackc/pgx/v5"
	"gorm.io/gorm"
)

func EnsureSchema(d *gorm.DB, schema string) error {
	return d.Exec(`CREATE SCHEMA IF NOT EXISTS ` + pgx.Identifier{schema}.Sanitize()).Error
}

func EnsureExtension(d *gorm.DB, extension string) error {
	return d.Exec(`CREATE EXTENSION IF NOT EXISTS ` + pgx.Identifier{extension}.Sanitize()).Error
}
