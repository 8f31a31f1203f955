package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetKey(t *testing.T) {
	t.Run("orders labels so the key is stable", func(t *testing.T) {
		k1 := getKey("metric", map[string]string{"b": "2", "a": "1"})
		k2 := getKey("metric", map[string]string{"a": "1", "b": "2"})

		assert.Equal(t, "metric/a:1/b:2", k1)
		assert.Equal(t, k1, k2)
	})
}

func TestNewCounter(t *testing.T) {
	t.Run("returns the same collector for the same labels", func(t *testing.T) {
		labels := map[string]string{"system": "onyx", "result": "ok"}
		c1 := NewCounter("hpcjob_test_counter_total", labels)
		c2 := NewCounter("hpcjob_test_counter_total", labels)

		assert.Same(t, c1, c2)
	})
}
