package oauthconsumer

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func extractQueryParam(t *testing.T, rawURL, name string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u.Query().Get(name)
}
