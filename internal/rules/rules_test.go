package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForModuleRoot(t *testing.T) {
	assert.Equal(t, "stack.module:com.example.** +app", ForModuleRoot("com/example/").String())
	assert.Equal(t, "stack.module:a.** +app", ForModuleRoot("a/").String())
	assert.Equal(t, "stack.module:uk.co.example.** +app", ForModuleRoot("uk/co/example/").String())
}

func TestParse(t *testing.T) {
	r, err := Parse("stack.module:com.example.** +app")
	require.NoError(t, err)
	assert.Equal(t, Rule{Pattern: "com.example.**", InApp: true}, r)

	r, err = Parse("  stack.module:com.example.**   -app ")
	require.NoError(t, err)
	assert.False(t, r.InApp)

	for _, bad := range []string{
		"",
		"stack.module:com.example.**",
		"stack.function:foo +app",
		"stack.module: +app",
		"stack.module:a.** +group",
		"stack.module:a.** +app extra",
	} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrInvalidRule, bad)
	}
}

func TestRule_PackagePrefixAndStackRoot(t *testing.T) {
	tests := []struct {
		pattern    string
		wantPrefix string
		wantRoot   string
	}{
		{"com.example.**", "com.example.", "com/example/"},
		{"akka.**", "akka.", "akka/"},
		{"uk.co.**", "uk.co.", "uk/co/"},
		{"com.*.foo.**", "", ""},
		{"com.example.Foo", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			r := Rule{Pattern: tt.pattern, InApp: true}
			assert.Equal(t, tt.wantPrefix, r.PackagePrefix())
			assert.Equal(t, tt.wantRoot, r.StackRoot())
		})
	}
}

func TestRule_Matches(t *testing.T) {
	r := Rule{Pattern: "com.example.**"}
	assert.True(t, r.Matches("com.example.foo.Bar"))
	assert.True(t, r.Matches("com.example.Bar"))
	assert.False(t, r.Matches("com.other.Bar"))
	assert.False(t, r.Matches("com.examplefoo.Bar"))

	single := Rule{Pattern: "com.*.Bar"}
	assert.True(t, single.Matches("com.example.Bar"))
	assert.False(t, single.Matches("com.example.foo.Bar"))
}

func TestParseList_RoundTrip(t *testing.T) {
	text := "stack.module:akka.** +app\n\n# manual note\nstack.module:foo.bar.** +app"
	l := ParseList(text)
	require.Len(t, l, 2)
	assert.Equal(t, "stack.module:akka.** +app\nstack.module:foo.bar.** +app", l.String())

	empty := ParseList("")
	assert.Empty(t, empty)
	assert.Equal(t, "", empty.String())
}

func TestParseList_KeepsOtherGrammarInPlace(t *testing.T) {
	text := "family:native function:std::* -app\nstack.module:com.example.** -app\nnonsense"
	l := ParseList(text)
	require.Len(t, l, 3)

	assert.True(t, l[0].Opaque())
	assert.False(t, l[1].Opaque())
	assert.Equal(t, []string{"family:native function:std::* -app", "nonsense"}, l.Opaque())
	assert.Equal(t, text, l.String())

	assert.False(t, l[0].Matches("std::vector"))
	assert.Empty(t, l[0].PackagePrefix())
	assert.False(t, l.HasPattern(""))

	inApp, matched := l.InApp("com.example.Foo")
	assert.True(t, matched)
	assert.False(t, inApp)
}

func TestList_HasPatternAndWithout(t *testing.T) {
	l := List{{Pattern: "akka.**", InApp: true}, {Pattern: "foo.bar.**", InApp: true}}
	assert.True(t, l.HasPattern("akka.**"))
	assert.False(t, l.HasPattern("foo.**"))

	kept, removed := l.Without(func(r Rule) bool { return r.Pattern == "akka.**" })
	assert.Equal(t, List{{Pattern: "foo.bar.**", InApp: true}}, kept)
	assert.Equal(t, List{{Pattern: "akka.**", InApp: true}}, removed)
}

func TestEffective_ManualWins(t *testing.T) {
	automatic := List{{Pattern: "com.example.**", InApp: true}}
	manual := List{{Pattern: "com.example.**", InApp: false}}

	inApp, matched := Effective(nil, automatic).InApp("com.example.foo.Bar")
	assert.True(t, matched)
	assert.True(t, inApp)

	inApp, matched = Effective(manual, automatic).InApp("com.example.foo.Bar")
	assert.True(t, matched)
	assert.False(t, inApp)

	_, matched = Effective(manual, automatic).InApp("com.other.foo.Bar")
	assert.False(t, matched)
}

func TestInApp_OldGranularityRuleCoversThirdParty(t *testing.T) {
	l := List{{Pattern: "uk.co.**", InApp: true}, {Pattern: "uk.co.example.**", InApp: true}}

	inApp, matched := l.InApp("uk.co.not-example.baz.qux")
	assert.True(t, matched)
	assert.True(t, inApp)
}
