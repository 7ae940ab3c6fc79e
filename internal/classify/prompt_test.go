package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUserPrompt(t *testing.T) {
	prompt, err := buildUserPrompt([]ColumnSample{
		{ColumnName: "Fabric ETA", SampleValues: []string{"01/03/2025", "15/03/2025"}},
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, `"Fabric ETA"`)
	assert.Contains(t, prompt, `"01/03/2025"`)
	assert.Contains(t, prompt, "STRICT JSON")

	// The closed stage vocabulary rides along in every request.
	for _, stage := range CanonicalStages {
		assert.Contains(t, prompt, stage)
	}
}
