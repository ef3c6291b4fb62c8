package digest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/regdiff/internal/model"
)

func TestBytes(t *testing.T) {
	a := Bytes([]byte("circular"))
	assert.Equal(t, a, Bytes([]byte("circular")))
	assert.NotEqual(t, a, Bytes([]byte("circular.")))
	// CIDv1 in the default base32 multibase
	assert.True(t, strings.HasPrefix(a, "bafk"), a)
}

func TestSections_OrderIndependent(t *testing.T) {
	first := model.Sections{
		"6.1": {Heading: "Flight duty period", Body: "13 hours", Position: 0},
		"7":   {Heading: "Rest", Body: "10 hours", Position: 1},
	}
	second := model.Sections{}
	second["7"] = first["7"]
	second["6.1"] = first["6.1"]

	a, err := Sections(first)
	require.NoError(t, err)
	b, err := Sections(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	moved := model.Sections{
		"6.1": {Heading: "Flight duty period", Body: "13 hours", Position: 1},
		"7":   {Heading: "Rest", Body: "10 hours", Position: 0},
	}
	c, err := Sections(moved)
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "position is part of the digest")
}

func TestChanges(t *testing.T) {
	empty, err := Changes(nil)
	require.NoError(t, err)
	same, err := Changes([]model.Change{})
	require.NoError(t, err)
	assert.Equal(t, empty, same, "nil and empty lists digest alike")

	one, err := Changes([]model.Change{{ID: "C0001", Type: model.ChangeTrue}})
	require.NoError(t, err)
	assert.NotEqual(t, empty, one)
}

func TestVerify(t *testing.T) {
	data := []byte("regulatory text")
	ok, err := Verify(Bytes(data), data)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify(Bytes(data), []byte("tampered"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Verify("not-a-cid", data)
	assert.Error(t, err)
}
