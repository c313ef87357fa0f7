package serialization

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Data      []byte    `json:"data"`
	WrittenAt time.Time `json:"writtenAt"`
}

func TestLookup(t *testing.T) {
	c, err := Lookup("")
	require.NoError(t, err)
	assert.Equal(t, JSONType, c.Name)

	c, err = Lookup(GobType)
	require.NoError(t, err)
	assert.Equal(t, GobType, c.Name)

	_, err = Lookup("yaml")
	assert.Error(t, err)
}

func TestCodecsPreserveRecord(t *testing.T) {
	in := record{Data: []byte(`{"tier":"gold"}`), WrittenAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}

	for _, c := range []Codec{JSON, GobCodec} {
		t.Run(c.Name, func(t *testing.T) {
			b, err := c.Marshal(in)
			require.NoError(t, err)

			var out record
			require.NoError(t, c.Unmarshal(b, &out))
			assert.Equal(t, in.Data, out.Data)
			assert.True(t, in.WrittenAt.Equal(out.WrittenAt))
		})
	}
}

func TestJSONRejectsForeignRecord(t *testing.T) {
	var out record
	err := JSON.Unmarshal([]byte(`{"Tier":3,"Url":"x"}`), &out)
	assert.Error(t, err)

	err = JSON.Unmarshal([]byte(`not json`), &out)
	assert.Error(t, err)
}
