package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_NonInteractive(t *testing.T) {
	r := New(strings.NewReader("coach\r\nsecret\n"), true)

	user, err := r.Text("Username", "")
	require.NoError(t, err)
	assert.Equal(t, "coach", user)

	given, err := r.Text("Email", "given@mamutes.test")
	require.NoError(t, err)
	assert.Equal(t, "given@mamutes.test", given, "a provided value is not read from stdin")

	pw, err := r.Secret("Password")
	require.NoError(t, err)
	assert.Equal(t, "secret", pw)

	_, err = r.Secret("Confirm password")
	assert.EqualError(t, err, "confirm password is required (non-interactive mode reads it from stdin)")
}
