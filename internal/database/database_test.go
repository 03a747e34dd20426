package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/GTDGit/fabric_api/internal/config"
)

func TestDSNEscapesCredentials(t *testing.T) {
	dsn := DSN(&config.DatabaseConfig{
		Host: "db", Port: "5432", User: "fabric", Password: "p@ss/word", Name: "store", SSLMode: "disable",
	})
	assert.Equal(t, "postgres://fabric:p%40ss%2Fword@db:5432/store?sslmode=disable", dsn)
}

func TestBackoffIsCapped(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, backoff(1))
	assert.Equal(t, time.Second, backoff(2))
	assert.Equal(t, 5*time.Second, backoff(10))
}
