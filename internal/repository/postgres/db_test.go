package postgres

import (
	"testing"

	"github.com/andresuchdata/freshflow-go/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestURL(t *testing.T) {
	got := URL(&config.DatabaseConfig{
		Host: "db", Port: "5433", User: "fresh", Password: "p@ss word", DBName: "freshflow", SSLMode: "disable",
	})
	assert.Equal(t, "postgres://fresh:p%40ss%20word@db:5433/freshflow?sslmode=disable", got)

	got = URL(&config.DatabaseConfig{Host: "::1", Port: "5432", User: "u", DBName: "d"})
	assert.Equal(t, "postgres://u:@[::1]:5432/d", got)
}
