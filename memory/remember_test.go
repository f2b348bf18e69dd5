package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/becomeliminal/nim-recall/memory"
)

func TestParseRememberCommand(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		key   string
		value string
	}{
		{"remember that my", "Remember that my callsign is Falcon", "callsign", "Falcon"},
		{"remember my", "remember my favorite color is teal", "favorite color", "teal"},
		{"remember without my", "Remember that the door code is 4711", "the door code", "4711"},
		{"remember colon equals", "remember: timezone = Europe/London", "timezone", "Europe/London"},
		{"remember colon dash", "REMEMBER: editor - vim", "editor", "vim"},
		{"save that my", "Save that my gym day is Tuesday", "gym day", "Tuesday"},
		{"save my", "save my shoe size is 44", "shoe size", "44"},
		{"trailing remember this", "My birthday is June 5, remember this", "birthday", "June 5"},
		{"trailing remember that", "my dentist is Dr. Ortiz. Remember that", "dentist", "Dr. Ortiz"},
		{"trailing period dropped", "Remember that my dog is Rex.", "dog", "Rex"},
		{"surrounding whitespace", "  remember   that my   city   is   Lisbon  ", "city", "Lisbon"},
		{"embedded in sentence", "ok, please remember that my seat is 12A", "seat", "12A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, ok := memory.ParseRememberCommand(tt.text)
			if assert.True(t, ok) {
				assert.Equal(t, tt.key, cmd.Key)
				assert.Equal(t, tt.value, cmd.Value)
			}
		})
	}
}

func TestParseRememberCommand_Precedence(t *testing.T) {
	// Matches both "remember that my X is Y" and "remember that X is Y";
	// the first pattern must win so the key drops the "my".
	cmd, ok := memory.ParseRememberCommand("remember that my name is Ada")
	assert.True(t, ok)
	assert.Equal(t, memory.RememberCommand{Key: "name", Value: "Ada"}, cmd)
}

func TestParseRememberCommand_NoMatch(t *testing.T) {
	for _, text := range []string{
		"what's the weather",
		"",
		"remember",
		"remember to buy milk",
		"my name is Ada",
		"I remembered it yesterday",
	} {
		_, ok := memory.ParseRememberCommand(text)
		assert.False(t, ok, "expected no match for %q", text)
	}
}
