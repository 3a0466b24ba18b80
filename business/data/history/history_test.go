package history

import (
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestReadAverageDelays(t *testing.T) {
	is := is.New(t)
	csv := "route_id,stop_id,hour,hist_avg_delay\n" +
		"69,51,8,95.5\n" +
		"69,51,17,142.0\n" +
		"18,52,8,-20.25\n"
	delays, err := readAverageDelays(strings.NewReader(csv))
	is.NoErr(err)
	is.Equal(delays.Size(), 3)

	delay, present := delays.Lookup(69, 51, 17)
	is.True(present)
	is.Equal(delay, 142.0)

	delay, present = delays.Lookup(18, 52, 8)
	is.True(present)
	is.Equal(delay, -20.25)
}

func TestReadAverageDelaysMissingKey(t *testing.T) {
	is := is.New(t)
	csv := "route_id,stop_id,hour,hist_avg_delay\n69,51,8,95.5\n"
	delays, err := readAverageDelays(strings.NewReader(csv))
	is.NoErr(err)

	// no default for absent keys
	_, present := delays.Lookup(69, 51, 9)
	is.True(!present)
	_, present = delays.Lookup(70, 51, 8)
	is.True(!present)
}

func TestReadAverageDelaysRejectsDuplicates(t *testing.T) {
	csv := "route_id,stop_id,hour,hist_avg_delay\n" +
		"69,51,8,95.5\n" +
		"69,51,8,12.0\n"
	_, err := readAverageDelays(strings.NewReader(csv))
	if err == nil {
		t.Errorf("expected duplicate key to be rejected")
	}
}

func TestReadAverageDelaysRejectsMissingColumn(t *testing.T) {
	csv := "route_id,stop_id,hist_avg_delay\n69,51,95.5\n"
	_, err := readAverageDelays(strings.NewReader(csv))
	if err == nil {
		t.Errorf("expected missing hour column to be rejected")
	}
}
