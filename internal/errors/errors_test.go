package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaults(t *testing.T) {
	t.Parallel()

	ee := Newf("boom").Build()
	assert.Equal(t, ComponentUnknown, ee.Component)
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.Equal(t, "boom", ee.Error())
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuilderMetadata(t *testing.T) {
	t.Parallel()

	base := NewStd("device busy")
	ee := New(fmt.Errorf("acquire: %w", base)).
		Component("capture").
		Category(CategoryCapture).
		Context("kind", "audio").
		Build()

	assert.Equal(t, "capture", ee.Component)
	assert.True(t, IsCategory(ee, CategoryCapture))
	assert.True(t, Is(ee, base))

	ctx := ee.GetContext()
	require.NotNil(t, ctx)
	assert.Equal(t, "audio", ctx["kind"])

	// Mutating the copy must not affect the error.
	ctx["kind"] = "video"
	assert.Equal(t, "audio", ee.GetContext()["kind"])
}

func TestCategoryMatching(t *testing.T) {
	t.Parallel()

	notFound := Newf("no such user").Category(CategoryNotFound).Build()
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsNotFound(NewStd("plain")))

	other := Newf("other").Category(CategoryNotFound).Build()
	assert.True(t, Is(notFound, other))
}

func TestAs(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("outer: %w", Newf("inner").Category(CategoryDatabase).Build())
	var ee *EnhancedError
	require.True(t, As(wrapped, &ee))
	assert.Equal(t, CategoryDatabase, ee.Category)
}
