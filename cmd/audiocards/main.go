// Package main provides the audiocards command line tool. It runs the same
// normalize, cut, join and anki operations as the API server on local files.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/maauso/audiocards/internal/archive"
	"github.com/maauso/audiocards/internal/audio"
	"github.com/maauso/audiocards/internal/bootstrap"
	"github.com/maauso/audiocards/internal/config"
	"github.com/maauso/audiocards/internal/job"
	"github.com/maauso/audiocards/internal/loudness"
	"github.com/maauso/audiocards/internal/pipeline"
	"github.com/maauso/audiocards/internal/transcript"
)

var (
	version = "0.0.1"
)

// Globals are the flags shared by every command.
type Globals struct {
	FFmpeg   string           `help:"Path to the ffmpeg binary" env:"FFMPEG_PATH" default:"ffmpeg"`
	TempDir  string           `help:"Directory for intermediate files" env:"TEMP_DIR" type:"path"`
	LogLevel string           `help:"Log level (debug, info, warn, error)" env:"LOG_LEVEL" default:"warn"`
	Quiet    bool             `short:"q" help:"Do not print progress"`
	Version  kong.VersionFlag `short:"v" help:"Show version information"`

	stderr io.Writer
}

// CLI defines the command-line interface
type CLI struct {
	Globals

	Normalize NormalizeCmd `cmd:"" help:"Correct the loudness of a recording"`
	Cut       CutCmd       `cmd:"" help:"Split a recording into one file per phrase"`
	Join      JoinCmd      `cmd:"" help:"Compose phrase files into one playback track"`
	Anki      AnkiCmd      `cmd:"" help:"Append sound references to a flashcard table"`
}

func main() {
	cli := &CLI{Globals: Globals{stderr: os.Stderr}}
	kctx := kong.Parse(cli,
		kong.Name("audiocards"),
		kong.Description("Prepare language learning audio for flashcards"),
		kong.UsageOnError(),
		kong.Vars{
			"version":       version,
			"suffix":        job.DefaultSuffix,
			"target_lufs":   fmt.Sprint(loudness.DefaultIntegratedLUFS),
			"peak_dbtp":     fmt.Sprint(loudness.DefaultTruePeakDBTP),
			"anki_filename": job.AnkiFileName,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	if err := kctx.Run(&cli.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// logger builds the command logger on stderr.
func (g *Globals) logger() *slog.Logger {
	cfg := &config.Config{LogFormat: "text", LogLevel: g.LogLevel}
	return cfg.NewLoggerTo(g.stderr)
}

// processor builds the ffmpeg backed pipeline.
func (g *Globals) processor() *pipeline.Processor {
	return bootstrap.NewProcessor(g.FFmpeg, g.TempDir, g.logger())
}

// progress returns a sink printing "label: N%" on stderr, or nil when quiet.
func (g *Globals) progress(label string) audio.Progress {
	if g.Quiet {
		return nil
	}
	return func(p int) {
		fmt.Fprintf(g.stderr, "\r%s: %3d%%", label, p)
		if p >= 100 {
			fmt.Fprintln(g.stderr)
		}
	}
}

// NormalizeCmd corrects loudness.
type NormalizeCmd struct {
	Input  string  `arg:"" help:"Recording to normalize" type:"existingfile"`
	Output string  `short:"o" help:"Output MP3 file" default:"normalized.mp3" type:"path"`
	LUFS   float64 `help:"Integrated loudness target" default:"${target_lufs}"`
	Peak   float64 `help:"True peak ceiling in dBTP" default:"${peak_dbtp}"`
}

// Run executes the command.
func (c *NormalizeCmd) Run(ctx context.Context, g *Globals) error {
	data, err := os.ReadFile(c.Input)
	if err != nil {
		return err
	}

	target := loudness.Target{IntegratedLUFS: c.LUFS, TruePeakDBTP: c.Peak}
	out, err := g.processor().Normalize(ctx, data, target, g.progress("normalize"))
	if err != nil {
		return err
	}
	return writeFile(c.Output, out)
}

// CutCmd splits a recording into chunks.
type CutCmd struct {
	Input      string `arg:"" help:"Recording to split" type:"existingfile"`
	Transcript string `short:"t" help:"Transcript with one line per phrase" type:"existingfile"`
	Suffix     string `short:"s" help:"Suffix of every chunk name" default:"${suffix}"`
	OutDir     string `short:"d" help:"Directory for the chunk files" default:"." type:"path"`
	Zip        string `short:"z" help:"Also write the chunks to this zip archive" type:"path"`
}

// Validate rejects a suffix that would put chunk files outside OutDir.
func (c *CutCmd) Validate() error {
	return transcript.CheckSuffix(c.Suffix)
}

// Run executes the command.
func (c *CutCmd) Run(ctx context.Context, g *Globals) error {
	data, err := os.ReadFile(c.Input)
	if err != nil {
		return err
	}
	var script []byte
	if c.Transcript != "" {
		if script, err = os.ReadFile(c.Transcript); err != nil {
			return err
		}
	}

	entries, err := g.processor().Cut(ctx, data, script, c.Suffix, g.progress("cut"))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(c.OutDir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, e := range entries {
		if !filepath.IsLocal(e.Name) {
			return fmt.Errorf("chunk name %q is not a local file name", e.Name)
		}
		if err := writeFile(filepath.Join(c.OutDir, e.Name), e.Data); err != nil {
			return err
		}
	}

	if c.Zip != "" {
		packed, err := archive.PackBytes(entries)
		if err != nil {
			return err
		}
		if err := writeFile(c.Zip, packed); err != nil {
			return err
		}
	}
	fmt.Fprintf(g.stderr, "wrote %d chunks to %s\n", len(entries), c.OutDir)
	return nil
}

// JoinCmd composes chunk files into one track.
type JoinCmd struct {
	Files  []string `arg:"" help:"Chunk files, or zip archives of chunks" type:"existingfile"`
	Mode   string   `short:"m" help:"SAI (speak after it) or LAR (listen and repeat)" enum:"SAI,LAR" default:"SAI"`
	Suffix string   `short:"s" help:"Suffix of the output name" default:"${suffix}"`
	Output string   `short:"o" help:"Output MP3 file, defaults to <mode>-<suffix>.mp3" type:"path"`
}

// Validate rejects a suffix that cannot be part of the default output name.
func (c *JoinCmd) Validate() error {
	return transcript.CheckSuffix(c.Suffix)
}

// Run executes the command.
func (c *JoinCmd) Run(ctx context.Context, g *Globals) error {
	files, err := readEntries(c.Files)
	if err != nil {
		return err
	}

	out, err := g.processor().Join(ctx, files, audio.Mode(c.Mode), g.progress("join"))
	if err != nil {
		return err
	}

	output := c.Output
	if output == "" {
		output = c.Mode + "-" + c.Suffix + ".mp3"
	}
	return writeFile(output, out)
}

// AnkiCmd pairs a table with sound file names.
type AnkiCmd struct {
	Table  string   `arg:"" help:"Tab-delimited flashcard table" type:"existingfile"`
	Files  []string `arg:"" help:"Sound files or zip archives; only their names are used"`
	Output string   `short:"o" help:"Output table" default:"${anki_filename}" type:"path"`
}

// Run executes the command.
func (c *AnkiCmd) Run(g *Globals) error {
	table, err := os.ReadFile(c.Table)
	if err != nil {
		return err
	}

	names, err := fileNames(c.Files)
	if err != nil {
		return err
	}

	p := pipeline.New(nil, nil, pipeline.WithLogger(g.logger()))
	out, err := p.Pair(table, names, g.progress("anki"))
	if err != nil {
		return err
	}
	return writeFile(c.Output, out)
}

// readEntries loads files as named entries, expanding zip archives.
func readEntries(paths []string) ([]archive.Entry, error) {
	var entries []archive.Entry
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		if isZip(p) {
			unpacked, err := archive.Unpack(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p, err)
			}
			entries = append(entries, unpacked...)
			continue
		}
		entries = append(entries, archive.Entry{Name: filepath.Base(p), Data: data})
	}
	return entries, nil
}

// fileNames returns the base names of paths, listing the entries of zip archives.
func fileNames(paths []string) ([]string, error) {
	var names []string
	for _, p := range paths {
		if !isZip(p) {
			names = append(names, filepath.Base(p))
			continue
		}
		entries, err := readEntries([]string{p})
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			names = append(names, e.Name)
		}
	}
	return names, nil
}

func isZip(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
