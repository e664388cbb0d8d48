package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddAndDiff(t *testing.T) {
	d := Day(5)
	assert.Equal(t, Day(9), Add(d, 4))
	assert.Equal(t, Day(1), Add(d, -4))
	assert.Equal(t, 4, Diff(Day(5), Day(9)))
	assert.Equal(t, -4, Diff(Day(9), Day(5)))
}

func TestMaxMin(t *testing.T) {
	assert.Equal(t, Day(9), Max(Day(5), Day(9)))
	assert.Equal(t, Day(5), Min(Day(5), Day(9)))
}

func TestTimeRoundTrip(t *testing.T) {
	d := Day(31)
	assert.Equal(t, d, FromTime(d.Time()))
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), d.Time())
}
