package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string   `json:"name" validate:"notblank,max=5"`
	Email string   `json:"email,omitempty" validate:"omitempty,email"`
	Kind  string   `json:"kind" validate:"oneof=a b"`
	Path  string   `json:"path" validate:"abspath"`
	Tags  []string `json:"tags" validate:"max=2,dive,notblank"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	t.Parallel()

	v := New()
	verr := v.Struct(sample{Name: "   ", Email: "nope", Kind: "c", Path: "relative", Tags: []string{"x", "y", "z"}})
	require.NotNil(t, verr)

	assert.Equal(t, "is required", verr.Fields["name"])
	assert.Equal(t, "must be a valid email address", verr.Fields["email"])
	assert.Equal(t, "must be one of: a, b", verr.Fields["kind"])
	assert.Equal(t, "must start with /", verr.Fields["path"])
	assert.Equal(t, "must contain at most 2 items", verr.Fields["tags"])
	assert.True(t, strings.HasPrefix(verr.Error(), "validation failed: email:"))
}

func TestStructAcceptsValidInput(t *testing.T) {
	t.Parallel()

	verr := New().Struct(sample{Name: "ok", Kind: "a", Path: "/", Tags: []string{"go"}})
	assert.Nil(t, verr)
	assert.NoError(t, verr.AsError())
}

func TestMergeKeepsFirstMessage(t *testing.T) {
	t.Parallel()

	var base *Error
	base = base.Merge(Field("a", "first"))
	base = base.Merge(&Error{Fields: map[string]string{"a": "second", "b": "other"}})

	require.NotNil(t, base)
	assert.Equal(t, "first", base.Fields["a"])
	assert.Equal(t, "other", base.Fields["b"])
	assert.Error(t, base.AsError())
}
