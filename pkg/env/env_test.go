package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPrefersEarlierKeys(t *testing.T) {
	t.Setenv("CARTSYNC_TEST_PRIMARY", "")
	t.Setenv("CARTSYNC_TEST_LEGACY", "console")

	assert.Equal(t, "console", Get("json", "CARTSYNC_TEST_PRIMARY", "CARTSYNC_TEST_LEGACY"))

	t.Setenv("CARTSYNC_TEST_PRIMARY", "json")
	assert.Equal(t, "json", Get("console", "CARTSYNC_TEST_PRIMARY", "CARTSYNC_TEST_LEGACY"))
	assert.Equal(t, "fallback", Get("fallback"))
}
