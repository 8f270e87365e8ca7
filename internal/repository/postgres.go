package repository

import (
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresDriverName имя, под которым pgx регистрируется в database/sql
const PostgresDriverName = "pgx"
