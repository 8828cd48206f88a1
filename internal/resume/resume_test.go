package resume

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) Context {
	t.Helper()
	c, err := Parse([]byte(`{
  "name": "Ada Lovelace",
  "phone": "5551234",
  "email": "ada@example.com",
  "years_of_experience": 7,
  "skills": ["Go", "SQL"],
  "address": {"city": "London", "country": "UK"},
  "experience": [
    {"company": "Analytical Engines", "role": "Engineer"},
    {"company": "Babbage & Co", "role": "Intern"}
  ]
}`))
	require.NoError(t, err)
	return c
}

func TestLookupPhoneNumber(t *testing.T) {
	c := FromMap(map[string]any{"phone": "5551234"})
	e, ok := c.Lookup("Phone number")
	require.True(t, ok)
	assert.Equal(t, "5551234", e.Value)
}

func TestLookupVariants(t *testing.T) {
	c := sample(t)

	e, ok := c.Lookup("Mobile phone number")
	require.True(t, ok)
	assert.Equal(t, "5551234", e.Value)

	e, ok = c.Lookup("E-mail address")
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", e.Value)

	e, ok = c.Lookup("How many years of experience do you have?")
	require.True(t, ok)
	assert.Equal(t, "7", e.Value)
	assert.Equal(t, "years_of_experience", e.Key())

	e, ok = c.Lookup("City")
	require.True(t, ok)
	assert.Equal(t, "address.city", e.Key())

	_, ok = c.Lookup("Are you willing to relocate?")
	assert.False(t, ok)

	// lists of records are not addressable
	_, ok = c.Lookup("Experience")
	assert.False(t, ok)
}

func TestSummary(t *testing.T) {
	lines := sample(t).Summary()
	assert.Equal(t, []string{
		"Address - City: London; Country: UK",
		"Email: ada@example.com",
		"Experience #1: Company: Analytical Engines; Role: Engineer",
		"Experience #2: Company: Babbage & Co; Role: Intern",
		"Name: Ada Lovelace",
		"Phone: 5551234",
		"Skills: Go, SQL",
		"Years_of_experience: 7",
	}, lines)
}

func TestLoadSubstitutesEnv(t *testing.T) {
	t.Setenv("EA_TEST_PHONE", "5559876")
	path := filepath.Join(t.TempDir(), "resume.yml")
	require.NoError(t, os.WriteFile(path, []byte("phone: \"${EA_TEST_PHONE}\"\nname: Ada\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "5559876", c["phone"])

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
