package database

import (
	"net/url"
	"strings"
)

// ConstructDatabaseURL points baseURL at databaseName. sslmode defaults to disable
// when the URL does not choose one. An empty databaseName leaves baseURL untouched.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		// Let the pgx parser report the malformed URL
		return strings.TrimRight(baseURL, "/") + "/" + databaseName
	}

	u.Path = "/" + databaseName
	u.RawPath = ""

	query := u.Query()
	if query.Get("sslmode") == "" {
		query.Set("sslmode", "disable")
	}
	u.RawQuery = query.Encode()

	return u.String()
}
