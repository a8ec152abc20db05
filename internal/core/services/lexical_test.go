package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLexicalOverlap_FullMatch(t *testing.T) {
	assert.Equal(t, 1.0, lexicalOverlap("aspirin dosage", "Aspirin dosage guidelines for adults"))
}

func TestLexicalOverlap_PartialMatch(t *testing.T) {
	assert.Equal(t, 0.5, lexicalOverlap("aspirin dosage", "dosage recommendations"))
}

func TestLexicalOverlap_NoMatch(t *testing.T) {
	assert.Equal(t, 0.0, lexicalOverlap("aspirin", "completely unrelated text"))
}

func TestLexicalOverlap_CaseAndPunctuationInsensitive(t *testing.T) {
	assert.Equal(t, 1.0, lexicalOverlap("Heart-Rate", "the heart rate was elevated"))
}

func TestLexicalOverlap_DuplicateQueryTokensCountOnce(t *testing.T) {
	// "dose dose aspirin": two distinct tokens, one matched.
	assert.Equal(t, 0.5, lexicalOverlap("dose dose aspirin", "aspirin trial"))
}

func TestLexicalOverlap_EmptyQuery(t *testing.T) {
	assert.Equal(t, 0.0, lexicalOverlap("", "some text"))
	assert.Equal(t, 0.0, lexicalOverlap("...", "some text"))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"beta", "blockers", "2024"}, tokenize("Beta-blockers, 2024!"))
}
