package db

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vasiliy-maslov/marketplace/order-service/internal/config"
)

func TestDSN(t *testing.T) {
	cfg := config.PostgresConfig{
		Host:     "db",
		Port:     "5432",
		User:     "orders",
		Password: "p@ss word",
		DBName:   "marketplace",
		SSLMode:  "disable",
	}

	assert.Equal(t, "postgres://orders:p%40ss%20word@db:5432/marketplace?sslmode=disable", dsn("postgres", cfg))
	assert.Equal(t, "pgx5://orders:p%40ss%20word@db:5432/marketplace?sslmode=disable", dsn("pgx5", cfg))
}
