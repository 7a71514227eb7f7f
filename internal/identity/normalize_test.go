package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "foo@bar.com", NormalizeEmail(" Foo@Bar.com "))
	assert.Equal(t, "a@x.com", NormalizeEmail("a@x.com"))
	assert.Equal(t, "", NormalizeEmail(""))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestNormalizePhone_TrunkZero(t *testing.T) {
	assert.Equal(t, "+971501234567", NormalizePhone("0501234567", "971"))
}

func TestNormalizePhone_CountryCodePresent(t *testing.T) {
	assert.Equal(t, "+971501234567", NormalizePhone("+971 50 123 4567", "971"))
	assert.Equal(t, "+971501234567", NormalizePhone("971501234567", "971"))
}

func TestNormalizePhone_NoPrefix(t *testing.T) {
	assert.Equal(t, "+501234567", NormalizePhone("50-123-4567", "971"))
}

func TestNormalizePhone_Empty(t *testing.T) {
	assert.Equal(t, "", NormalizePhone("", "971"))
	assert.Equal(t, "", NormalizePhone("abc", "971"))
}

func TestNormalizePhone_DefaultCountryCode(t *testing.T) {
	assert.Equal(t, "+971501234567", NormalizePhone("0501234567", ""))
}

func TestHashEmail_NormalizesBeforeHashing(t *testing.T) {
	assert.Equal(t, HashEmail("a@x.com"), HashEmail(" A@X.com "))
	assert.Len(t, HashEmail("a@x.com"), 64)
}

func TestCanonical_EmailPreferredOverPhone(t *testing.T) {
	assert.Equal(t, "a@x.com", Canonical("A@x.com", "0501234567", "971"))
	assert.Equal(t, "+971501234567", Canonical("", "0501234567", "971"))
	assert.Equal(t, "", Canonical("", "", "971"))
}
