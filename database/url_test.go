package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructDatabaseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		baseURL      string
		databaseName string
		want         string
	}{
		{
			name:    "no database name returns base url",
			baseURL: "postgres://u:p@db:5432/existing",
			want:    "postgres://u:p@db:5432/existing",
		},
		{
			name:         "appends name and sslmode",
			baseURL:      "postgres://u:p@db:5432/",
			databaseName: "megayield",
			want:         "postgres://u:p@db:5432/megayield?sslmode=disable",
		},
		{
			name:         "keeps existing query parameters",
			baseURL:      "postgres://u:p@db:5432?connect_timeout=5",
			databaseName: "megayield",
			want:         "postgres://u:p@db:5432/megayield?connect_timeout=5&sslmode=disable",
		},
		{
			name:         "replaces an existing database",
			baseURL:      "postgres://u:p@db:5432/postgres",
			databaseName: "megayield",
			want:         "postgres://u:p@db:5432/megayield?sslmode=disable",
		},
		{
			name:         "keeps escaped credentials",
			baseURL:      "postgres://u:p%40ss@db:5432",
			databaseName: "megayield",
			want:         "postgres://u:p%40ss@db:5432/megayield?sslmode=disable",
		},
		{
			name:         "respects explicit sslmode",
			baseURL:      "postgres://u:p@db:5432?sslmode=require",
			databaseName: "megayield",
			want:         "postgres://u:p@db:5432/megayield?sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ConstructDatabaseURL(tt.baseURL, tt.databaseName))
		})
	}
}
