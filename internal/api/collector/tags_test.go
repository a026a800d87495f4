package collector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTags(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   []string
	}{
		{name: "none", values: nil, want: []string{}},
		{name: "single", values: []string{"checkout"}, want: []string{"checkout"}},
		{name: "comma separated with blanks", values: []string{" a , ,b,"}, want: []string{"a", "b"}},
		{name: "disallowed characters stripped", values: []string{"eu-west!, a<b>c, v1.2/x_y"}, want: []string{"eu-west", "abc", "v1.2/x_y"}},
		{name: "only disallowed characters", values: []string{"!!!,<>"}, want: []string{}},
		{name: "case-insensitive duplicates keep first", values: []string{"Prod,prod", "PROD"}, want: []string{"Prod"}},
		{name: "repeated headers merged", values: []string{"a", "b,c"}, want: []string{"a", "b", "c"}},
		{name: "inner spaces kept", values: []string{"  blue  green "}, want: []string{"blue  green"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTags(tt.values))
		})
	}
}

func TestParseTagsLimits(t *testing.T) {
	long := strings.Repeat("x", 100)
	got := ParseTags([]string{long})
	assert.Equal(t, []string{strings.Repeat("x", 64)}, got)

	many := make([]string, 0, 15)
	for i := 0; i < 15; i++ {
		many = append(many, string(rune('a'+i)))
	}
	got = ParseTags([]string{strings.Join(many, ",")})
	assert.Len(t, got, 10)
	assert.Equal(t, "a", got[0])
	assert.Equal(t, "j", got[9])
}
