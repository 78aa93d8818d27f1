package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSchemaFromStruct(t *testing.T) {
	type args struct {
		Specialty string   `json:"specialty" description:"Medical specialty to search"`
		Limit     int      `json:"limit,omitempty"`
		Days      []string `json:"days,omitempty"`
		Urgent    bool     `json:"urgent"`
	}

	schema := CreateSchema(args{})

	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	require.Len(t, props, 4)

	specialty := props["specialty"].(map[string]any)
	assert.Equal(t, "string", specialty["type"])
	assert.Equal(t, "Medical specialty to search", specialty["description"])
	assert.Equal(t, "integer", props["limit"].(map[string]any)["type"])
	assert.Equal(t, "array", props["days"].(map[string]any)["type"])
	assert.Equal(t, "boolean", props["urgent"].(map[string]any)["type"])

	required, ok := schema["required"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"specialty", "urgent"}, required)
}

func TestCreateSchemaNonStruct(t *testing.T) {
	schema := CreateSchema("not a struct")

	assert.Equal(t, "object", schema["type"])
	assert.Empty(t, schema["properties"])
	assert.NotContains(t, schema, "required")
}
