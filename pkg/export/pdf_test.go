package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/secreport/pkg/tools"
)

type fakeBackend struct {
	name  string
	err   error
	calls *[]string
}

func (b fakeBackend) Name() string { return b.name }

func (b fakeBackend) Convert(_ context.Context, src, dst string) error {
	*b.calls = append(*b.calls, b.name)
	if b.err != nil {
		return b.err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, append([]byte("%PDF-1.4\n"), data...), 0o644)
}

func TestConverterStopsAtFirstSuccess(t *testing.T) {
	var calls []string
	c := NewConverter(nil,
		fakeBackend{name: "first", err: errors.New("not installed"), calls: &calls},
		fakeBackend{name: "second", calls: &calls},
		fakeBackend{name: "third", calls: &calls},
	)

	dir := t.TempDir()
	src := filepath.Join(dir, "in.html")
	require.NoError(t, os.WriteFile(src, []byte("<p>hi</p>"), 0o644))
	dst := filepath.Join(dir, "out.pdf")

	require.NoError(t, c.Convert(context.Background(), src, dst))
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.FileExists(t, dst)
}

func TestConverterReportsEveryAttempt(t *testing.T) {
	var calls []string
	c := NewConverter(nil,
		fakeBackend{name: "wkhtmltopdf", err: errors.New("missing"), calls: &calls},
		fakeBackend{name: "weasyprint", err: errors.New("crashed"), calls: &calls},
	)

	err := c.Convert(context.Background(), "in.html", "out.pdf")
	var nb *NoBackendError
	require.ErrorAs(t, err, &nb)
	require.Len(t, nb.Attempts, 2)
	assert.Equal(t, "weasyprint", nb.Attempts[1].Backend)
	assert.Contains(t, err.Error(), "crashed")
}

func TestExportPDFUsesConverter(t *testing.T) {
	var calls []string
	e, err := NewExporter(FormatPDF, WithMetadata(fixedMeta), WithConverter(NewConverter(nil, fakeBackend{name: "fake", calls: &calls})))
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	_, err = e.Export(sampleFindings(), path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Quarterly Assessment")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "intermediate html is removed")
}

func TestCommandBackend(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	resolver := tools.NewResolver(tools.PathLookup{})
	dir := t.TempDir()
	src := filepath.Join(dir, "in.html")
	require.NoError(t, os.WriteFile(src, []byte("<p>hi</p>"), 0o644))

	copying := NewCommandBackend("copy", []string{"definitely-not-installed-xyz", "sh"}, func(src, dst string) []string {
		return []string{"-c", `cp "$0" "$1"`, src, dst}
	}, resolver)
	require.NoError(t, copying.Convert(context.Background(), src, filepath.Join(dir, "a.pdf")))
	assert.FileExists(t, filepath.Join(dir, "a.pdf"))

	silent := NewCommandBackend("silent", []string{"sh"}, func(src, dst string) []string {
		return []string{"-c", "exit 0"}
	}, resolver)
	assert.Error(t, silent.Convert(context.Background(), src, filepath.Join(dir, "b.pdf")), "no output file")

	missing := NewCommandBackend("missing", []string{"definitely-not-installed-xyz"}, func(src, dst string) []string { return nil }, resolver)
	err := missing.Convert(context.Background(), src, filepath.Join(dir, "c.pdf"))
	assert.ErrorIs(t, err, tools.ErrNotFound)
}
