package anki

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRows(t *testing.T) {
	data := []byte("hola\thello\tgreeting\n\ngato\tcat\r\nperro\tdog\t\n")

	rows, err := ParseRows(data)

	require.NoError(t, err)
	assert.Equal(t, []Row{
		{"hola", "hello", "greeting"},
		{},
		{"gato", "cat"},
		{"perro", "dog", ""},
	}, rows)
}

func TestParseRows_DropsInvalidUTF8(t *testing.T) {
	rows, err := ParseRows([]byte("ca\xfff\xe9\tcoffee"))

	require.NoError(t, err)
	assert.Equal(t, []Row{{"caf", "coffee"}}, rows)
}

func TestParseRows_Quotes(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []Row
	}{
		{
			name: "quotes inside an unquoted field are text",
			data: `say "hi"` + "\t" + `"quoted"`,
			want: []Row{{`say "hi"`, "quoted"}},
		},
		{
			name: "text after the closing quote joins the field",
			data: `"Hi," she said` + "\tgreeting",
			want: []Row{{"Hi, she said", "greeting"}},
		},
		{
			name: "doubled quote is a literal quote",
			data: `"a""b"` + "\tc",
			want: []Row{{`a"b`, "c"}},
		},
		{
			name: "quoted tab stays in the field",
			data: "\"a\tb\"\tc",
			want: []Row{{"a\tb", "c"}},
		},
		{
			name: "quoted field spans lines",
			data: "uno\t\"first\nsecond\"\tone\ndos\ttwo\n",
			want: []Row{{"uno", "firstsecond", "one"}, {"dos", "two"}},
		},
		{
			name: "quote left open closes at end of input",
			data: "uno\tone\ndos\t\"two\ntres",
			want: []Row{{"uno", "one"}, {"dos", "twotres"}},
		},
		{
			name: "empty quoted field",
			data: `""` + "\tx",
			want: []Row{{"", "x"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ParseRows([]byte(tt.data))

			require.NoError(t, err)
			assert.Equal(t, tt.want, rows)
		})
	}
}

func TestParseRows_Empty(t *testing.T) {
	rows, err := ParseRows(nil)

	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPair(t *testing.T) {
	rows := []Row{{"a", "b"}, {"c", "d"}}
	names := []string{"2-x.mp3", "1-y.mp3"}

	got, err := Pair(rows, names, nil)

	require.NoError(t, err)
	assert.Equal(t, []Row{
		{"a", "b", "[sound:1-y.mp3]"},
		{"c", "d", "[sound:2-x.mp3]"},
	}, got)
	assert.Equal(t, []Row{{"a", "b"}, {"c", "d"}}, rows, "input rows are not modified")
	assert.Equal(t, []string{"2-x.mp3", "1-y.mp3"}, names, "input names are not modified")
}

func TestPair_NumericOrder(t *testing.T) {
	rows := []Row{{"one"}, {"two"}, {"ten"}}
	names := []string{"10-c.mp3", "2-b.mp3", "1-a.mp3"}

	got, err := Pair(rows, names, nil)

	require.NoError(t, err)
	assert.Equal(t, "[sound:1-a.mp3]", got[0][1])
	assert.Equal(t, "[sound:2-b.mp3]", got[1][1])
	assert.Equal(t, "[sound:10-c.mp3]", got[2][1])
}

func TestPair_EmptyRow(t *testing.T) {
	got, err := Pair([]Row{{}}, []string{"1.mp3"}, nil)

	require.NoError(t, err)
	assert.Equal(t, []Row{{"[sound:1.mp3]"}}, got)
}

func TestPair_CountMismatch(t *testing.T) {
	rows := []Row{{"a"}, {"b"}, {"c"}}

	_, err := Pair(rows, []string{"1.mp3", "2.mp3"}, nil)

	var mismatch *CountMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 3, mismatch.Rows)
	assert.Equal(t, 2, mismatch.Files)
	assert.Equal(t, "row count 3 does not match file count 2", err.Error())
}

func TestPair_Empty(t *testing.T) {
	_, err := Pair(nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestPair_Progress(t *testing.T) {
	var values []int
	rows := []Row{{"a"}, {"b"}, {"c"}, {"d"}}

	_, err := Pair(rows, []string{"1", "2", "3", "4"}, func(p int) { values = append(values, p) })

	require.NoError(t, err)
	assert.Equal(t, []int{25, 50, 75, 100}, values)
}

func TestWriteRows(t *testing.T) {
	var buf bytes.Buffer

	err := WriteRows(&buf, []Row{
		{"hola", "hello", "[sound:1-Hola-X.mp3]"},
		{"[sound:2-2-X.mp3]"},
	})

	require.NoError(t, err)
	assert.Equal(t, "hola\thello\t[sound:1-Hola-X.mp3]\n[sound:2-2-X.mp3]\n", buf.String())
}

func TestParsePairWrite(t *testing.T) {
	rows, err := ParseRows([]byte("uno\tone\ndos\ttwo\n"))
	require.NoError(t, err)

	paired, err := Pair(rows, []string{"2-Dos-S.mp3", "1-Uno-S.mp3"}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, paired))
	assert.Equal(t, "uno\tone\t[sound:1-Uno-S.mp3]\ndos\ttwo\t[sound:2-Dos-S.mp3]\n", buf.String())
}
