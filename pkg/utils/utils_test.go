package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teamclock/teamclock/pkg/utils"
)

func TestFormatRoundedUnit(t *testing.T) {
	t.Parallel()
	for in, want := range map[int64]string{
		0:     "0s",
		59:    "59s",
		-90:   "1m",
		3599:  "59m",
		3600:  "1h",
		10800: "3h",
	} {
		assert.Equal(t, want, utils.FormatRoundedUnit(in), in)
	}
}

func TestFormatHours(t *testing.T) {
	t.Parallel()
	for in, want := range map[float64]string{
		0:      "0m",
		0.25:   "15m",
		1:      "1h 00m",
		2.0833: "2h 05m",
		39.5:   "39h 30m",
	} {
		assert.Equal(t, want, utils.FormatHours(in), in)
	}
}
