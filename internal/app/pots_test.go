package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/arm_recorder/internal/adc"
	"github.com/relabs-tech/arm_recorder/internal/filter"
)

func TestPotsLine(t *testing.T) {
	reader := adc.NewMock()
	reader.Set(0, 4095)
	reader.Set(3, 0)
	reader.Fail(5, 1)
	avg := filter.NewMovingAverage(10)

	line := potsLine(reader, avg, []int{0, 3, 5}, 1)
	assert.Equal(t, "CH0: 4095    0.0°  500µs | CH3:    0  180.0° 2500µs | CH5: ----", line)
	assert.Empty(t, avg.History(2), "failed read leaves the history alone")
}
