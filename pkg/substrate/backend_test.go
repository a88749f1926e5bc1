package substrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListOptions_Normalize_Defaults(t *testing.T) {
	o := ListOptions{}.Normalize()
	assert.Equal(t, 1, o.Page)
	assert.Equal(t, DefaultListLimit, o.Limit)
	assert.Equal(t, SortByName, o.SortBy)
	assert.Equal(t, SortAsc, o.SortOrder)
}

func TestListOptions_Normalize_ClampsLimit(t *testing.T) {
	o := ListOptions{Limit: 10000}.Normalize()
	assert.Equal(t, MaxListLimit, o.Limit)
}

func TestListOptions_Normalize_NegativePage(t *testing.T) {
	o := ListOptions{Page: -5}.Normalize()
	assert.Equal(t, 1, o.Page)
}

func TestError_Error(t *testing.T) {
	err := NewError(KindNotFound, "uri %s", "mutable://open/x")
	assert.Equal(t, "not-found: uri mutable://open/x", err.Error())
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, KindTransport, KindOf(assertError{}))
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
