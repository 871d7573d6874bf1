package pgsql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
		err  error
	}{
		{in: "rpms", want: "rpms"},
		{in: "  rpms_it_01 ", want: "rpms_it_01"},
		{in: "", err: ErrEmptySchema},
		{in: "   ", err: ErrEmptySchema},
		{in: "1rpms", err: ErrInvalidSchema},
		{in: `rpms"; DROP TABLE x; --`, err: ErrInvalidSchema},
	}

	for _, tc := range cases {
		got, err := Schema(tc.in)
		if tc.err != nil {
			assert.ErrorIs(t, err, tc.err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestTableQuotes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"rpms"."messages"`, Table("rpms", "messages"))
}
