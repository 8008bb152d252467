package archive

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpack(t *testing.T) {
	entries := []Entry{
		{Name: "1-Hola-X.mp3", Data: []byte("first")},
		{Name: "2-2-X.mp3", Data: []byte("second")},
		{Name: "10-Fin-X.mp3", Data: []byte{}},
	}

	data, err := PackBytes(entries)
	require.NoError(t, err)

	got, err := Unpack(data)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestPack_Duplicate(t *testing.T) {
	var buf bytes.Buffer
	err := Pack(&buf, []Entry{{Name: "a.mp3"}, {Name: "dir/a.mp3"}})
	assert.ErrorIs(t, err, ErrDuplicateEntry)
}

func TestPack_InvalidName(t *testing.T) {
	_, err := PackBytes([]Entry{{Name: ""}})
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestUnpack_FlattensAndSkipsDirectories(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("chunks/")
	require.NoError(t, err)
	w, err := zw.Create("chunks/1-a.mp3")
	require.NoError(t, err)
	_, err = w.Write([]byte("audio"))
	require.NoError(t, err)
	w, err = zw.Create("chunks/deeper/2-b.mp3")
	require.NoError(t, err)
	_, err = w.Write([]byte("more"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	got, err := Unpack(buf.Bytes())

	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Name: "1-a.mp3", Data: []byte("audio")},
		{Name: "2-b.mp3", Data: []byte("more")},
	}, got)
}

func TestUnpack_NotAZip(t *testing.T) {
	_, err := Unpack([]byte("plain text"))
	assert.Error(t, err)
}

func TestUnpack_EmptyArchive(t *testing.T) {
	data, err := PackBytes(nil)
	require.NoError(t, err)

	got, err := Unpack(data)
	require.NoError(t, err)
	assert.Empty(t, got)
}
