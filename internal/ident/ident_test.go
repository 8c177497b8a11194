package ident

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOf(t *testing.T) {
	testCases := []struct {
		href   string
		expect string
	}{
		{href: "/Agumon", expect: "Agumon"},
		{href: "https://wikimon.net/Agumon", expect: "Agumon"},
		{href: "https://wikimon.net/Agumon#Evolves_To", expect: "Agumon"},
		{href: "/Agumon_(2006_anime)", expect: "Agumon_2006_anime"},
		{href: "/Mad_Leomon:_Armed_Mode", expect: "Mad_Leomon_Armed_Mode"},
		{href: "/Mephismon_(X-Antibody)", expect: "Mephismon_X_Antibody"},
		{href: "/Mephismon_%28X-Antibody%29", expect: "Mephismon_X_Antibody"},
		{href: "/Agumon_%2B_Gabumon", expect: "Agumon_Gabumon"},
		{href: "/Agumon+Gabumon", expect: "Agumon_Gabumon"},
		{href: "/Jijimon%27s_Friend", expect: "Jijimons_Friend"},
		{href: "/Ex%C2%B7Veemon", expect: "Ex_Veemon"},
		{href: "/Mugendramon.Ver", expect: "Mugendramon_Ver"},
		{href: "/Bl%C3%BCcemon", expect: "Bluecemon"},
		{href: "/B%C3%A9elzemon", expect: "Beelzemon"},
		{href: "Category:Virus_Busters", expect: "Category_Virus_Busters"},
		{href: "/index.php?title=Category:Adult_Level&pagefrom=Mad+Leomon%3A+Armed+Mode#mw-pages", expect: "Category_Adult_Level"},
		{href: "Agumon (Black)", expect: "Agumon_Black"},
		{href: "/Con", expect: "Con_"},
		{href: "/LPT1", expect: "LPT1_"},
		{href: "", expect: ""},
		{href: "/", expect: ""},
		{href: "/%E3%82%A2%E3%82%B0%E3%83%A2%E3%83%B3", expect: ""},
	}

	for _, test := range testCases {
		require.Equal(t, test.expect, Of(test.href), test.href)
	}
}

var safe = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

func TestOfIsIdempotentAndSafe(t *testing.T) {
	inputs := []string{
		"/Agumon", "/Omegamon_(X-Antibody)", "/Agumon_-Yuki_no_Kizuna-",
		"/Lucemon:_Falldown_Mode", "/Ex%C2%B7Veemon", "https://wikimon.net/Pucchi%C3%A9mon",
		"/Nul", "/aux", "__weird__name__", "/..", "/a/b/c", "100%", "/%ZZ", "Köne ÄÖÜß",
		"/Chaos Dukemon", "/Armor_Digimon?", "\t/Tab\n",
	}
	for _, in := range inputs {
		once := Of(in)
		require.Regexp(t, safe, once, in)
		require.Equal(t, once, Of(once), in)
		require.Equal(t, once, Of(in), "deterministic %s", in)
	}
}
