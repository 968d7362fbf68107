package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appconfig "github.com/GTDGit/dealfinder/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(&appconfig.DatabaseConfig{
		Host: "db", Port: "5432", User: "deal", Password: "p@ss:word", Name: "dealfinder", SSLMode: "disable",
	})
	assert.Equal(t, "postgres://deal:p%40ss%3Aword@db:5432/dealfinder?sslmode=disable", dsn)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, backoff(1))
	assert.Equal(t, 2*time.Second, backoff(3))
	assert.Equal(t, 5*time.Second, backoff(5))
}
