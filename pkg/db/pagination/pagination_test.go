package pagination

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	p, err := Pagination{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, DefaultPage, p.Page)
	assert.Equal(t, DefaultPerPage, p.PerPage)
	assert.Equal(t, 0, p.Offset())
}

func TestNormalizeRejectsOutOfRange(t *testing.T) {
	_, err := Pagination{Page: -1}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidPage)

	_, err = Pagination{PerPage: MaxPerPage + 1}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidPerPage)

	_, err = Pagination{PerPage: -5}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidPerPage)
}

func TestOffset(t *testing.T) {
	p := Pagination{Page: 3, PerPage: 20}
	assert.Equal(t, 40, p.Offset())
	assert.Equal(t, 20, p.Limit())
}

func TestNormalizeRejectsOffsetOverflow(t *testing.T) {
	last := math.MaxInt/MaxPerPage + 1
	p, err := Pagination{Page: last, PerPage: MaxPerPage}.Normalize()
	require.NoError(t, err)
	assert.Positive(t, p.Offset())

	_, err = Pagination{Page: last + 1, PerPage: MaxPerPage}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidPage)

	_, err = Pagination{Page: math.MaxInt}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidPage)
}
