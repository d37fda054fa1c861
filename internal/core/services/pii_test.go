package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPII_CPF(t *testing.T) {
	assert.Equal(t, "my doc is [CPF]", MaskPII("my doc is 123.456.789-09"))
	assert.Equal(t, "bare [CPF]", MaskPII("bare 12345678909"))
}

func TestMaskPII_CNPJ(t *testing.T) {
	assert.Equal(t, "company [CNPJ]", MaskPII("company 12.345.678/0001-95"))
}

func TestMaskPII_Email(t *testing.T) {
	assert.Equal(t, "contact [EMAIL] please", MaskPII("contact jane.doe@example.com please"))
}

func TestMaskPII_Phone(t *testing.T) {
	assert.Equal(t, "call [PHONE]", MaskPII("call +55 11 98765-4321"))
}

func TestMaskPII_LeavesOrdinaryTextAlone(t *testing.T) {
	text := "hello, how can I help you today?"
	assert.Equal(t, text, MaskPII(text))
}

func TestMaskPII_MultipleMatchesInOneString(t *testing.T) {
	result := MaskPII("reach me at jane@example.com or 123.456.789-09")
	assert.Contains(t, result, "[EMAIL]")
	assert.Contains(t, result, "[CPF]")
}

func TestMaskHistory_TruncatesToLastK(t *testing.T) {
	entries := []string{"one", "two", "three", "four", "five"}
	result := MaskHistory(entries, 3)

	assert.Equal(t, []string{"three", "four", "five"}, result)
}

func TestMaskHistory_MasksEachRetainedEntry(t *testing.T) {
	entries := []string{"my email is jane@example.com"}
	result := MaskHistory(entries, 5)

	assert.Equal(t, []string{"my email is [EMAIL]"}, result)
}

func TestMaskHistory_ShorterThanKKeepsAll(t *testing.T) {
	entries := []string{"only one"}
	result := MaskHistory(entries, 5)

	assert.Equal(t, []string{"only one"}, result)
}
