package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Ana García", "Ana García"},
		{"  Ana   García  ", "Ana García"},
		{"\tLuis\n Moreno ", "Luis Moreno"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeName(tc.in))
	}
}
