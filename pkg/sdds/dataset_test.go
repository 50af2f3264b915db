package sdds

import (
	"bytes"
	"context"
	"io"
	"os"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ajitpratap0/sdds/pkg/config"
	"github.com/ajitpratap0/sdds/pkg/errors"
	"github.com/ajitpratap0/sdds/pkg/layout"
	"github.com/ajitpratap0/sdds/pkg/metrics"
	"github.com/ajitpratap0/sdds/pkg/observability"
	"github.com/ajitpratap0/sdds/pkg/scalar"
	"github.com/ajitpratap0/sdds/pkg/table"
	"github.com/ajitpratap0/sdds/pkg/testutil"
)

// testOptions returns options with a configuration untouched by the
// environment, adjusted by mutate
func testOptions(t *testing.T, mutate func(*config.Config)) []Option {
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	return []Option{WithConfig(cfg), WithLogger(testutil.TestLogger(t))}
}

func asciiMode(c *config.Config) { c.DefaultMode = "ascii" }

// writeBeam writes the given number of beam pages with rows rows each to path
func writeBeam(t *testing.T, path string, pages, rows int, opts ...Option) {
	t.Helper()
	out, err := Create(path, opts...)
	require.NoError(t, err)
	testutil.DefineBeam(t, out)
	require.NoError(t, out.WriteLayout())
	for page := 1; page <= pages; page++ {
		require.NoError(t, out.StartPage(rows))
		testutil.SetBeamPage(t, out.Page(), page, rows)
		require.NoError(t, out.WritePage())
	}
	require.NoError(t, out.Close())
}

func TestBasicPage(t *testing.T) {
	for _, mode := range []string{"binary", "ascii"} {
		t.Run(mode, func(t *testing.T) {
			opts := testOptions(t, func(c *config.Config) { c.DefaultMode = mode })
			path := testutil.TempPath(t, "basic.sdds")

			out, err := Create(path, opts...)
			require.NoError(t, err)
			_, err = out.DefineSimpleParameter("Name", "", scalar.TypeString)
			require.NoError(t, err)
			_, err = out.DefineSimpleColumn("x", "m", scalar.TypeDouble)
			require.NoError(t, err)
			require.NoError(t, out.WriteLayout())
			require.NoError(t, out.StartPage(3))
			require.NoError(t, out.Page().SetParameter(table.ByName("Name"), "run1"))
			require.NoError(t, out.Page().SetColumn(table.ByName("x"), []float64{1.0, 2.5, -3.0}, 3))
			require.NoError(t, out.WritePage())
			require.NoError(t, out.Close())

			in, err := Open(path, opts...)
			require.NoError(t, err)
			defer in.Close()
			page, err := in.ReadPage()
			require.NoError(t, err)
			assert.Equal(t, 1, page)
			p := in.Page()
			assert.Equal(t, 3, p.CountRowsOfInterest())
			x, err := p.ColumnFloat64(table.ByName("x"))
			require.NoError(t, err)
			assert.Equal(t, []float64{1.0, 2.5, -3.0}, x)
			name, err := p.Parameter(table.ByName("Name"))
			require.NoError(t, err)
			assert.Equal(t, "run1", name)

			n, err := p.FilterRowsByNumericWindow("x", 0.0, 10.0, table.And)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
			assert.Equal(t, []int{0, 1}, p.SelectedRows())
			assert.Equal(t, 2, p.CountRowsOfInterest())

			_, err = in.ReadPage()
			assert.Equal(t, io.EOF, err)
			_, err = in.ReadPage()
			assert.Equal(t, io.EOF, err)
		})
	}
}

func TestRoundTripModes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"binary native", nil},
		{"binary big-endian", func(c *config.Config) { c.OutputEndianness = "big" }},
		{"binary little-endian", func(c *config.Config) { c.OutputEndianness = "little" }},
		{"binary column-major", func(c *config.Config) { c.ColumnMajor = true }},
		{"ascii", asciiMode},
		{"ascii two lines per row", func(c *config.Config) { c.DefaultMode = "ascii"; c.LinesPerRow = 2 }},
		{"mmap input", func(c *config.Config) { c.UseMmap = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions(t, tt.mutate)
			path := testutil.TempPath(t, "beam.sdds")
			writeBeam(t, path, 3, 4, opts...)

			in, err := Open(path, opts...)
			require.NoError(t, err)
			defer in.Close()
			for page := 1; page <= 3; page++ {
				n, err := in.ReadPage()
				require.NoError(t, err)
				assert.Equal(t, page, n)
				testutil.AssertBeamPage(t, in.Page(), page, 4)
			}
			_, err = in.ReadPage()
			assert.Equal(t, io.EOF, err)
		})
	}
}

func TestCompressedTransports(t *testing.T) {
	for _, suffix := range []string{".gz", ".xz", ".lzma", ".zst", ".lz4", ".sz", ".s2"} {
		t.Run(suffix, func(t *testing.T) {
			opts := testOptions(t, asciiMode)
			path := testutil.TempPath(t, "beam.sdds"+suffix)
			writeBeam(t, path, 2, 3, opts...)

			raw := testutil.ReadFile(t, path)
			assert.False(t, bytes.HasPrefix(raw, []byte("SDDS")), "content should be compressed")

			in, err := Open(path, opts...)
			require.NoError(t, err)
			defer in.Close()
			if suffix == ".xz" || suffix == ".lzma" {
				assert.Equal(t, layout.ModeBinary, in.Layout().Data.Mode)
			} else {
				assert.Equal(t, layout.ModeASCII, in.Layout().Data.Mode)
			}
			for page := 1; page <= 2; page++ {
				_, err := in.ReadPage()
				require.NoError(t, err)
				testutil.AssertBeamPage(t, in.Page(), page, 3)
			}
			_, err = in.ReadPage()
			assert.Equal(t, io.EOF, err)

			err = in.GotoPage(1)
			assert.True(t, errors.IsType(err, errors.ErrorTypeTransport), "%v", err)
		})
	}
}

func TestStreams(t *testing.T) {
	var buf bytes.Buffer
	out, err := NewWriter(&buf, testOptions(t, nil)...)
	require.NoError(t, err)
	testutil.DefineBeam(t, out)
	require.NoError(t, out.WriteLayout())
	for page := 1; page <= 2; page++ {
		require.NoError(t, out.StartPage(2))
		testutil.SetBeamPage(t, out.Page(), page, 2)
		if page == 1 {
			err := out.UpdatePage()
			assert.True(t, errors.IsType(err, errors.ErrorTypeTransport), "%v", err)
		}
		require.NoError(t, out.WritePage())
	}
	require.NoError(t, out.Close())

	in, err := NewReader(bytes.NewReader(buf.Bytes()), testOptions(t, nil)...)
	require.NoError(t, err)
	require.NoError(t, in.GotoPage(2))
	n, err := in.ReadPage()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	testutil.AssertBeamPage(t, in.Page(), 2, 2)

	text, err := NewReader(strings.NewReader(buf.String()), testOptions(t, nil)...)
	require.NoError(t, err)
	_, err = text.ReadPage()
	require.NoError(t, err)
	require.NoError(t, text.Close())

	onlyReader, err := NewReader(io.MultiReader(bytes.NewReader(buf.Bytes())), testOptions(t, nil)...)
	require.NoError(t, err)
	err = onlyReader.GotoPage(1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))
}

func TestStateErrors(t *testing.T) {
	opts := testOptions(t, nil)
	out, err := Create(testutil.TempPath(t, "state.sdds"), opts...)
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, StateLayoutPending, out.State())

	assert.True(t, errors.IsType(out.StartPage(1), errors.ErrorTypeState))
	assert.True(t, errors.IsType(out.WritePage(), errors.ErrorTypeState))
	_, err = out.ReadPage()
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))

	_, err = out.DefineSimpleColumn("x", "", scalar.TypeDouble)
	require.NoError(t, err)
	_, err = out.DefineSimpleColumn("x", "", scalar.TypeDouble)
	assert.True(t, errors.IsType(err, errors.ErrorTypeName))
	require.NoError(t, out.WriteLayout())
	assert.Equal(t, StateLayoutWritten, out.State())

	assert.True(t, errors.IsType(out.WriteLayout(), errors.ErrorTypeState))
	_, err = out.DefineSimpleColumn("y", "", scalar.TypeDouble)
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))
	assert.True(t, errors.IsType(out.SetDescription("late", ""), errors.ErrorTypeState))

	require.NoError(t, out.StartPage(1))
	assert.Equal(t, StatePageOpen, out.State())
	require.NoError(t, out.AddRow(1.0))
	require.NoError(t, out.AddRow(2.0))
	assert.Equal(t, 2, out.Page().RowsInUse())
	require.NoError(t, out.WritePage())
	assert.True(t, errors.IsType(out.WritePage(), errors.ErrorTypeState))

	require.NoError(t, out.Close())
	require.NoError(t, out.Close())
	assert.Equal(t, StateClosed, out.State())
}

func TestVersionFollowsDeclaredTypes(t *testing.T) {
	tests := []struct {
		name   string
		t      scalar.Type
		mutate func(*config.Config)
		want   string
	}{
		{"double", scalar.TypeDouble, nil, "SDDS1\n"},
		{"ushort", scalar.TypeUShort, nil, "SDDS2\n"},
		{"column-major", scalar.TypeDouble, func(c *config.Config) { c.ColumnMajor = true }, "SDDS3\n"},
		{"longdouble", scalar.TypeLongDouble, nil, "SDDS4\n"},
		{"ulong64", scalar.TypeULong64, nil, "SDDS5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.TempPath(t, "v.sdds")
			out, err := Create(path, testOptions(t, tt.mutate)...)
			require.NoError(t, err)
			_, err = out.DefineSimpleColumn("v", "", tt.t)
			require.NoError(t, err)
			require.NoError(t, out.WriteLayout())
			require.NoError(t, out.Close())
			assert.True(t, strings.HasPrefix(string(testutil.ReadFile(t, path)), tt.want))
		})
	}
}

func TestOutputLock(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("advisory locks need flock")
	}
	path := testutil.TempPath(t, "locked.sdds")
	first, err := Create(path, testOptions(t, nil)...)
	require.NoError(t, err)

	_, err = Create(path, testOptions(t, nil)...)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport), "%v", err)
	_, err = Append(path, testOptions(t, nil)...)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport), "%v", err)

	unlocked, err := Create(path, testOptions(t, func(c *config.Config) { c.LockFiles = false })...)
	require.NoError(t, err)
	require.NoError(t, unlocked.Close())
	require.NoError(t, first.Close())

	again, err := Create(path, testOptions(t, nil)...)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestDisconnectReconnect(t *testing.T) {
	opts := testOptions(t, nil)
	path := testutil.TempPath(t, "burst.sdds")
	out, err := Create(path, opts...)
	require.NoError(t, err)
	testutil.DefineBeam(t, out)
	require.NoError(t, out.WriteLayout())

	for page := 1; page <= 2; page++ {
		require.NoError(t, out.StartPage(2))
		testutil.SetBeamPage(t, out.Page(), page, 2)
		require.NoError(t, out.Disconnect())
		err := out.WritePage()
		assert.True(t, errors.IsType(err, errors.ErrorTypeTransport), "%v", err)
		assert.True(t, errors.IsType(out.Disconnect(), errors.ErrorTypeState))
		require.NoError(t, out.Reconnect())
		require.NoError(t, out.WritePage())
	}
	require.NoError(t, out.Close())

	in, err := Open(path, opts...)
	require.NoError(t, err)
	defer in.Close()
	for page := 1; page <= 2; page++ {
		_, err := in.ReadPage()
		require.NoError(t, err)
		testutil.AssertBeamPage(t, in.Page(), page, 2)
	}

	var buf bytes.Buffer
	stream, err := NewWriter(&buf, opts...)
	require.NoError(t, err)
	assert.True(t, errors.IsType(stream.Disconnect(), errors.ErrorTypeTransport))
}

func TestInitializeCopyAndCopyPage(t *testing.T) {
	opts := testOptions(t, func(c *config.Config) { c.OutputEndianness = "big" })
	src := testutil.TempPath(t, "src.sdds")
	writeBeam(t, src, 2, 5, opts...)

	in, err := Open(src, testOptions(t, nil)...)
	require.NoError(t, err)
	defer in.Close()

	dst := testutil.TempPath(t, "dst.sdds")
	out, err := InitializeCopy(in, dst, testOptions(t, asciiMode)...)
	require.NoError(t, err)
	assert.Equal(t, layout.EndianBig, out.Layout().Data.Endianness)
	_, err = out.DefineSimpleParameter("Source", "", scalar.TypeString)
	require.NoError(t, err)
	require.NoError(t, out.WriteLayout())

	for {
		_, err := in.ReadPage()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		_, err = in.Page().FilterRowsByNumericWindow("id", 0, float64(in.PagesRead()*1000+2), table.And)
		require.NoError(t, err)
		require.NoError(t, out.CopyPage(in))
		require.NoError(t, out.Page().SetParameter(table.ByName("Source"), src))
		require.NoError(t, out.WritePage())
	}
	require.NoError(t, out.Close())

	copied, err := Open(dst, testOptions(t, nil)...)
	require.NoError(t, err)
	defer copied.Close()
	assert.Equal(t, layout.ModeBinary, copied.Layout().Data.Mode, "copies keep the source data mode")
	for page := 1; page <= 2; page++ {
		_, err := copied.ReadPage()
		require.NoError(t, err)
		testutil.AssertBeamPage(t, copied.Page(), page, 3)
		source, err := copied.Page().Parameter(table.ByName("Source"))
		require.NoError(t, err)
		assert.Equal(t, src, source)
	}
}

func TestMetricsAndTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	collector := metrics.NewCollector("metrics.sdds")

	opts := append(testOptions(t, nil),
		WithMetrics(collector),
		WithTracer(observability.NewDatasetTracerWith("metrics.sdds", tp)),
		WithContext(context.Background()),
	)
	path := testutil.TempPath(t, "metrics.sdds")
	writeBeam(t, path, 2, 3, opts...)

	written := collector.Snapshot(metrics.DirectionWrite)
	assert.Equal(t, int64(2), written.Pages)
	assert.Equal(t, int64(6), written.Rows)
	assert.Positive(t, written.Bytes)

	in, err := Open(path, opts...)
	require.NoError(t, err)
	for {
		if _, err := in.ReadPage(); err != nil {
			require.Equal(t, io.EOF, err)
			break
		}
	}
	require.NoError(t, in.Close())
	read := collector.Snapshot(metrics.DirectionRead)
	assert.Equal(t, int64(2), read.Pages)
	assert.Equal(t, int64(6), read.Rows)
	assert.Equal(t, written.Bytes, read.Bytes)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Equal(t, []string{
		"sdds.write_layout", "sdds.write_page", "sdds.write_page",
		"sdds.read_layout", "sdds.read_page", "sdds.read_page", "sdds.read_page",
	}, names)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(testutil.TempPath(t, "missing.sdds"), testOptions(t, nil)...)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))

	path := testutil.WriteFile(t, "bad.sdds", []byte("not a dataset\n"))
	_, err = Open(path, testOptions(t, nil)...)
	assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol))

	empty := testutil.WriteFile(t, "empty.sdds", nil)
	_, err = Open(empty, testOptions(t, func(c *config.Config) { c.UseMmap = true })...)
	assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol), "%v", err)

	_, err = Open(path, testOptions(t, func(c *config.Config) { c.LinesPerRow = 0 })...)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestHeaderIncludeRelativeToFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/columns.hdr", []byte("&column name=x, type=double &end\n"), 0o644))
	path := dir + "/main.sdds"
	require.NoError(t, os.WriteFile(path, []byte("SDDS1\n&include filename=columns.hdr &end\n&data mode=ascii &end\n2\n1.5\n2.5\n"), 0o644))

	in, err := Open(path, testOptions(t, nil)...)
	require.NoError(t, err)
	defer in.Close()
	_, err = in.ReadPage()
	require.NoError(t, err)
	x, err := in.Page().ColumnFloat64(table.ByName("x"))
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5}, x)
}
