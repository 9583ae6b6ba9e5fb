package journal_test

import (
	"testing"

	"visuallab/internal/backend"
)

func newClient(t *testing.T, url string) *backend.Client {
	t.Helper()
	client, err := backend.New(backend.Config{BaseURL: url})
	if err != nil {
		t.Fatalf("backend.New: %v", err)
	}
	return client
}
