package helpers

import (
	"bytes"
	"io"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestWriteAll(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		limit     int
		expectErr error
	}{
		{"whole", 100, nil},
		{"throttle", 7, nil},
		{"byte", 1, nil},
		{"stuck", 0, io.ErrShortWrite},
	}
	content := []byte("12345678901234567890")
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			buf := bytes.NewBuffer(nil)
			err := WriteAll(&throttleWriter{buf, c.limit}, content)
			assert.Equal(t, c.expectErr, err)
			if c.expectErr == nil {
				assert.Equal(t, content, buf.Bytes())
			}
		})
	}
}

func TestFoldErrors(t *testing.T) {
	t.Parallel()

	assert.NoError(t, FoldErrors(nil))
	assert.NoError(t, FoldErrors([]error{nil, nil}))
	single := errors.NotValidf("port=0")
	err := FoldErrors([]error{nil, single})
	assert.True(t, errors.IsNotValid(err))
	err = FoldErrors([]error{errors.New("one"), nil, errors.New("two")})
	assert.Equal(t, "one\ntwo", err.Error())
}

type throttleWriter struct {
	w io.Writer
	n int
}

func (tw *throttleWriter) Write(p []byte) (n int, err error) {
	limit := len(p)
	if limit > tw.n {
		limit = tw.n
	}
	return tw.w.Write(p[:limit])
}
