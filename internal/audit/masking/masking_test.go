package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j****@example.com", MaskEmail("jane@example.com"))
	assert.Equal(t, "****", MaskEmail("abc"))
}

func TestMaskPII(t *testing.T) {
	out := MaskPII(map[string]any{
		"email":  "jane@example.com",
		"phone":  "+61400111222",
		"status": "approved",
		"nested": map[string]any{"full_name": "Jane Citizen"},
		"count":  3,
	})
	assert.Equal(t, "j****@example.com", out["email"])
	assert.Equal(t, "****1222", out["phone"])
	assert.Equal(t, "approved", out["status"])
	assert.Equal(t, 3, out["count"])
	assert.Equal(t, "****izen", out["nested"].(map[string]any)["full_name"])
	assert.Nil(t, MaskPII(nil))
}
