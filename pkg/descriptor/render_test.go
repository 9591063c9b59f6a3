package descriptor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	cases := []struct {
		Name     string
		Input    string
		Values   map[string]string
		Expected string
	}{
		{
			Name:     "substitutes known values",
			Input:    "host: ${DOMAIN}",
			Values:   map[string]string{"DOMAIN": "geoip.example.com"},
			Expected: "host: geoip.example.com",
		},
		{
			Name:     "leaves unknown placeholders in place",
			Input:    "value: ${GEOIP_LICENSE}",
			Values:   map[string]string{},
			Expected: "value: ${GEOIP_LICENSE}",
		},
		{
			Name:     "escaped placeholder renders literally",
			Input:    "value: $${NOT_A_PLACEHOLDER}",
			Values:   map[string]string{"NOT_A_PLACEHOLDER": "nope"},
			Expected: "value: ${NOT_A_PLACEHOLDER}",
		},
		{
			Name:     "multiple occurrences",
			Input:    "a: ${X}\nb: ${X}\nc: ${Y}",
			Values:   map[string]string{"X": "1", "Y": "2"},
			Expected: "a: 1\nb: 1\nc: 2",
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			require.Equal(t, tc.Expected, string(Render([]byte(tc.Input), tc.Values)))
		})
	}
}

func TestPlaceholders(t *testing.T) {
	names := Placeholders([]byte("a: ${X}\nb: ${Y}\nc: ${X}\nd: $${Z}"))
	require.Equal(t, []string{"X", "Y"}, names)

	require.Empty(t, Placeholders([]byte("plain: document")))
}

func TestValuesEnvironmentFallback(t *testing.T) {
	t.Setenv("GEOIP_LICENSE", "from-env")
	t.Setenv("GEOIP_DOMAIN", "env.example.com")

	values, err := Values([]string{"GEOIP_DOMAIN=geoip.example.com"})
	require.NoError(t, err)

	// explicit pairs win over the environment
	require.Equal(t, "geoip.example.com", values["GEOIP_DOMAIN"])
	require.Equal(t, "from-env", values["GEOIP_LICENSE"])

	_, err = Values([]string{"novalue"})
	require.Error(t, err)
}

func TestParseValues(t *testing.T) {
	values, err := ParseValues([]string{"A=1", "B=two", "A=override", "C=x=y"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"A": "override", "B": "two", "C": "x=y"}, values)

	_, err = ParseValues([]string{"novalue"})
	require.ErrorContains(t, err, `invalid value "novalue"`)

	_, err = ParseValues([]string{"=empty"})
	require.Error(t, err)
}
