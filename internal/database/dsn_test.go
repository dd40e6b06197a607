package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "cert",
		Password: "secret",
		Name:     "certificates",
		Host:     "db.internal",
		Port:     3307,
	})
	require.NoError(t, err)
	require.Equal(t, "cert:secret@tcp(db.internal:3307)/certificates?charset=utf8mb4&loc=Local&parseTime=True", dsn)
}

func TestBuildMySQLDSNRequiresUserAndName(t *testing.T) {
	_, err := buildMySQLDSN(Config{User: "cert"})
	require.Error(t, err)
}

func TestBuildMySQLDSNHonoursOverride(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{DSN: "custom-dsn"})
	require.NoError(t, err)
	require.Equal(t, "custom-dsn", dsn)
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User: "cert",
		Name: "certificates",
	})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=cert dbname=certificates sslmode=disable", dsn)
}

func TestBuildPostgresDSNWithOptions(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "cert",
		Password: "secret",
		Name:     "certificates",
		Options:  map[string]string{"sslmode": "require"},
	})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=cert dbname=certificates password=secret sslmode=require", dsn)
}
