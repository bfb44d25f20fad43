package visibility

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCanonicalForms(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"public", "public"},
		{"PUBLIC", "public"},
		{"private", "private"},
		{"", "private"},
		{"  ", "private"},
		{"@Acme.COM", "@acme.com"},
		{"User@Acme.com", "user@acme.com"},
		{"b@y.org, @x.com ,a@y.org", "a@y.org,b@y.org,@x.com"},
	}
	for _, tt := range tests {
		g, err := Parse(tt.raw)
		require.NoError(t, err, "raw=%q", tt.raw)
		require.Equal(t, tt.want, g.String(), "raw=%q", tt.raw)

		// Canonical form round-trips.
		again, err := Parse(g.String())
		require.NoError(t, err)
		require.Equal(t, g.String(), again.String())
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"@",
		"@nodot",
		"nope",
		"user@",
		"@.com",
		"@acme.com,",
		"a b@acme.com",
		"user@acme.com,,@x.org",
	} {
		_, err := Parse(raw)
		require.Error(t, err, "raw=%q", raw)
		var fe *FormatError
		require.ErrorAs(t, err, &fe, "raw=%q", raw)
		require.Equal(t, CodeInvalidVisibility, fe.Code)
	}
}

func TestMatches(t *testing.T) {
	g, err := Parse("bob@other.io,@acme.com")
	require.NoError(t, err)

	require.True(t, g.Matches("user@acme.com"))
	require.True(t, g.Matches("User@ACME.com"))
	require.True(t, g.Matches("bob@other.io"))
	require.False(t, g.Matches("alice@other.io"))
	require.False(t, g.Matches(""))

	pub, _ := Parse("public")
	require.True(t, pub.Matches("anyone@anywhere.net"))

	priv, _ := Parse("private")
	require.False(t, priv.Matches("anyone@anywhere.net"))
}

func TestContainsReflexive(t *testing.T) {
	for _, raw := range []string{"public", "private", "@acme.com", "a@x.com,@y.org"} {
		g, err := Parse(raw)
		require.NoError(t, err)
		require.True(t, Contains(g, g), "raw=%q", raw)
	}
}

func TestContainsPublicIsTop(t *testing.T) {
	pub, _ := Parse("public")
	for _, raw := range []string{"public", "private", "@acme.com", "a@x.com,@y.org"} {
		g, err := Parse(raw)
		require.NoError(t, err)
		require.True(t, Contains(pub, g), "public must contain %q", raw)
		if g.Kind() != Public {
			require.False(t, Contains(g, pub), "%q must not contain public", raw)
		}
	}
}

func TestContainsSubsets(t *testing.T) {
	outer, _ := Parse("@acme.com,@beta.org")
	inner, _ := Parse("@acme.com")
	require.True(t, Contains(outer, inner))
	require.False(t, Contains(inner, outer))

	// A domain contains its member emails.
	emails, _ := Parse("a@acme.com,b@acme.com")
	require.True(t, Contains(inner, emails))
	require.False(t, Contains(emails, inner))

	priv, _ := Parse("private")
	require.True(t, Contains(inner, priv))
	require.False(t, Contains(priv, inner))
}

func TestIsPublicRequiresBothSides(t *testing.T) {
	pub, _ := Parse("public")
	dom, _ := Parse("@acme.com")
	priv, _ := Parse("private")

	require.True(t, IsPublic(pub, pub))
	require.False(t, IsPublic(dom, pub))
	require.False(t, IsPublic(pub, dom))
	require.False(t, IsPublic(priv, priv))
}

func TestSingleDomain(t *testing.T) {
	dom, _ := Parse("@acme.com")
	d, ok := dom.SingleDomain()
	require.True(t, ok)
	require.Equal(t, "acme.com", d)

	mixed, _ := Parse("a@x.com,@acme.com")
	_, ok = mixed.SingleDomain()
	require.False(t, ok)

	pub, _ := Parse("public")
	_, ok = pub.SingleDomain()
	require.False(t, ok)
}
