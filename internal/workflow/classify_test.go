package workflow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		wantType    string
		recoverable bool
	}{
		{"nil", nil, "", false},
		{"timeout", fmt.Errorf("context deadline exceeded"), "timeout", true},
		{"unauthorized", fmt.Errorf("401 unauthorized: invalid_token"), "authentication", false},
		{"validation", fmt.Errorf("required field 'name' is missing"), "validation", false},
		{"rate limited", fmt.Errorf("upstream returned 429 too many requests"), "api_error", true},
		{"connection refused", fmt.Errorf("dial tcp: connection refused"), "api_error", true},
		{"unknown", fmt.Errorf("something unexpected happened"), "system_error", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errType, recoverable := classifyError(tc.err)
			assert.Equal(t, tc.wantType, errType)
			assert.Equal(t, tc.recoverable, recoverable)
		})
	}
}
