package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "catalogo", want: "catalogo"},
		{name: "slash command", in: "/catalogo", want: "catalogo"},
		{name: "accents and case", in: "/Catálogo", want: "catalogo"},
		{name: "cedilla", in: "Configuração", want: "configuracao"},
		{name: "whitespace runs", in: "  meu   link\tnovo ", want: "meu_link_novo"},
		{name: "inner slashes", in: "a/b/c", want: "abc"},
		{name: "empty", in: "", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}
