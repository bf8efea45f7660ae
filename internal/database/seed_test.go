package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenarioCatalogue(t *testing.T) {
	scenarios, err := LoadScenarioCatalogue()
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	var tax, other int
	subjects := map[string]bool{}
	for _, s := range scenarios {
		assert.False(t, subjects[s.Subject], "duplicate subject %q", s.Subject)
		subjects[s.Subject] = true
		assert.NotEmpty(t, s.InitialMessage, s.Subject)
		if strings.Contains(strings.ToLower(s.Subject), "tax") {
			tax++
		} else {
			other++
		}
	}
	assert.Positive(t, tax, "catalogue should cover the tax topic")
	assert.Positive(t, other, "catalogue should cover the gaming topic")
}
