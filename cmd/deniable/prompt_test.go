package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/absfs/deniable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPrompter(input string) (*prompter, *bytes.Buffer) {
	var out bytes.Buffer
	return newPrompter(strings.NewReader(input), &out), &out
}

func TestPrompter_NewPassword(t *testing.T) {
	p, out := newTestPrompter("\nfirst\nsecond\nsecret\nsecret\n")

	pw, err := p.NewPassword("Password: ")
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), pw)
	assert.Contains(t, out.String(), "Password cannot be empty!")
	assert.Contains(t, out.String(), "Passwords didn't match!")
}

func TestPrompter_Bool(t *testing.T) {
	tests := []struct {
		name  string
		input string
		def   bool
		want  bool
	}{
		{"default yes", "\n", true, true},
		{"default no", "\n", false, false},
		{"explicit yes", "Y\n", false, true},
		{"explicit no", "no\n", true, false},
		{"retry", "maybe\ny\n", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPrompter(tt.input)
			got, err := p.Bool("Continue?", tt.def)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	p, out := newTestPrompter("\n")
	_, err := p.Bool("Continue?", true)
	require.NoError(t, err)
	assert.Equal(t, "Continue? (Y/n) ", out.String())
}

func TestPrompter_Blocks(t *testing.T) {
	p, out := newTestPrompter("junk\n500\n1m\n")

	n, err := p.Blocks("Offset: ", deniable.DefaultBlockSize, 300, "Too far!")
	require.NoError(t, err)
	assert.Equal(t, uint64(256), n)
	assert.Equal(t, 1, strings.Count(out.String(), "Too far!"))
}

func TestPrompter_EOF(t *testing.T) {
	p, _ := newTestPrompter("abc")
	_, err := p.Blocks("Offset: ", 4096, 0, "")
	assert.ErrorIs(t, err, io.EOF)

	p, _ = newTestPrompter("last")
	pw, err := p.Password("Password: ")
	require.NoError(t, err)
	assert.Equal(t, []byte("last"), pw)
}

func TestReadTargets_RejectsDuplicatePassword(t *testing.T) {
	input := "a\na\n1\ny\na\na\nb\nb\n2\nn\n"
	p, out := newTestPrompter(input)

	targets, err := readTargets(p, 100, deniable.DefaultBlockSize)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, []byte("b"), targets[1].Password)
	assert.Equal(t, uint64(2), targets[1].Offset)
	assert.Contains(t, out.String(), "already used by partition 1")
}
