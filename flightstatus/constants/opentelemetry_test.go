package constant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeMetricLabel(t *testing.T) {
	t.Parallel()

	t.Run("short values pass through", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "flightaware", SanitizeMetricLabel("flightaware"))
		assert.Equal(t, "", SanitizeMetricLabel(""))
	})

	t.Run("long values are truncated", func(t *testing.T) {
		t.Parallel()

		long := strings.Repeat("x", MaxMetricLabelLength+10)
		got := SanitizeMetricLabel(long)

		assert.Len(t, got, MaxMetricLabelLength)
		assert.Equal(t, strings.Repeat("x", MaxMetricLabelLength), got)
	})

	t.Run("exact boundary is preserved", func(t *testing.T) {
		t.Parallel()

		exact := strings.Repeat("y", MaxMetricLabelLength)
		assert.Equal(t, exact, SanitizeMetricLabel(exact))
	})
}
