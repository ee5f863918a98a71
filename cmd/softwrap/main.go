// softwrap relaxes a triangle mesh as a mass-spring system, optionally
// wrapping it onto a target surface, and writes the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jeacom25b/Softwrap/pkg/mesh"
	"github.com/jeacom25b/Softwrap/pkg/recipe"
	"github.com/jeacom25b/Softwrap/pkg/session"
)

var version = "dev"

var verbose bool

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#AAAAAA"}).Width(12)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

func main() {
	root := &cobra.Command{
		Use:   "softwrap",
		Short: "Mass-spring mesh relaxation for retopology",
		Long: `softwrap relaxes a triangle mesh by treating its vertices as point
masses joined by springs, optionally attracting it onto a target surface.

Meshes are given as specs:
  sphere:R | box:X,Y,Z[,ROUND] | cylinder:H,R   (joined with '|', '@x,y,z' offsets)
  grid:NX,NY[,SPACING]                          flat grid in the XY plane
  path/to/mesh.json                             vertices/normals/indices JSON`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		relaxCmd(),
		checkCmd(),
		settingsCmd(),
		recipeCmd(),
	)

	if err := fang.Execute(context.Background(), root); err != nil {
		os.Exit(1)
	}
}

func relaxCmd() *cobra.Command {
	var (
		req          Request
		settingsPath string
		recipePath   string
		pins         []string
		outPath      string
		xMirror      bool
		seed         uint64
	)

	cmd := &cobra.Command{
		Use:   "relax <source>",
		Short: "Relax a mesh for a number of frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			req.Source = args[0]
			req.Settings = session.DefaultSettings()
			if settingsPath != "" {
				s, err := session.LoadSettings(settingsPath)
				if err != nil {
					return err
				}
				req.Settings = s
			}
			if cmd.Flags().Changed("x-mirror") {
				req.Settings.XMirror = xMirror
			}
			if cmd.Flags().Changed("seed") {
				req.Settings.Seed = seed
			}
			if recipePath != "" {
				src, err := os.ReadFile(recipePath)
				if err != nil {
					return err
				}
				req.Recipe = string(src)
			}
			for _, p := range pins {
				pr, err := parsePin(p)
				if err != nil {
					return err
				}
				req.Pins = append(req.Pins, pr)
			}

			res := NewApp(slog.Default()).Relax(ctx, req)
			printMessages(cmd.ErrOrStderr(), res)
			if !res.OK() {
				return fmt.Errorf("relax failed with %d error(s)", len(res.Errors))
			}
			if err := writeMesh(cmd.OutOrStdout(), outPath, res.Mesh); err != nil {
				return err
			}
			printSummary(cmd.ErrOrStderr(), req, res)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&req.Target, "target", "t", "", "target mesh spec to wrap onto")
	f.IntVar(&req.Cells, "cells", 16, "marching cubes cells for a shape source")
	f.IntVar(&req.TargetCells, "target-cells", 64, "marching cubes cells for a shape target")
	f.IntVarP(&req.Frames, "frames", "n", 100, "frames to run")
	f.Float64Var(&req.Jitter, "jitter", 0, "random displacement applied before the first frame")
	f.StringVarP(&settingsPath, "settings", "s", "", "TOML settings file")
	f.StringVarP(&recipePath, "recipe", "r", "", "frame recipe file")
	f.StringArrayVarP(&pins, "pin", "p", nil, "pin VERTEX:X,Y,Z (repeatable)")
	f.StringVarP(&outPath, "out", "o", "-", "output JSON file, - for stdout")
	f.BoolVar(&xMirror, "x-mirror", false, "keep the mesh symmetric across X")
	f.Uint64Var(&seed, "seed", 0, "sampler seed, 0 for random")
	return cmd
}

func checkCmd() *cobra.Command {
	var cells int
	cmd := &cobra.Command{
		Use:   "check <mesh>",
		Short: "Validate a mesh spec and print findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := NewApp(slog.Default()).LoadMesh(args[0], cells)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, titleStyle.Render(args[0]))
			fmt.Fprintf(w, "%s%d\n", keyStyle.Render("vertices"), m.VertexCount())
			fmt.Fprintf(w, "%s%d\n", keyStyle.Render("triangles"), m.TriangleCount())

			var errs int
			for _, f := range mesh.Check(m) {
				style := warnStyle
				if f.Severity == mesh.SeverityError {
					style = errStyle
					errs++
				}
				fmt.Fprintln(w, style.Render(f.Error()))
			}
			if errs > 0 {
				return fmt.Errorf("%d blocking finding(s)", errs)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&cells, "cells", 16, "marching cubes cells for a shape spec")
	return cmd
}

func settingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings [file]",
		Short: "Print normalized settings as TOML (defaults without a file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := session.DefaultSettings()
			if len(args) == 1 {
				var err error
				if s, err = session.LoadSettings(args[0]); err != nil {
					return err
				}
			}
			b, err := s.Encode()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}

func recipeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recipe <file>",
		Short: "Compile a frame recipe and print its plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			p, evalErrs, err := recipe.NewEngine(recipe.WithLogger(slog.Default())).Evaluate(string(src))
			if err != nil {
				return err
			}
			for _, e := range evalErrs {
				fmt.Fprintln(cmd.ErrOrStderr(), errStyle.Render(e.Error()))
			}
			if len(evalErrs) > 0 {
				return fmt.Errorf("%d recipe error(s)", len(evalErrs))
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.String())
			return nil
		},
	}
}

func writeMesh(stdout io.Writer, path string, m *mesh.Flat) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" || path == "-" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printMessages(w io.Writer, res Result) {
	for _, m := range res.Warnings {
		fmt.Fprintln(w, warnStyle.Render("warning: "+m.Message))
	}
	for _, m := range res.Errors {
		msg := m.Message
		if m.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", m.Line, msg)
		}
		fmt.Fprintln(w, errStyle.Render("error: "+msg))
	}
}

func printSummary(w io.Writer, req Request, res Result) {
	rows := [][2]string{
		{"source", req.Source},
		{"target", req.Target},
		{"vertices", fmt.Sprint(res.Mesh.VertexCount())},
		{"triangles", fmt.Sprint(res.Mesh.TriangleCount())},
		{"frames", fmt.Sprint(res.Frames)},
		{"pins", fmt.Sprint(res.Pins)},
		{"elapsed", res.Elapsed.String()},
	}
	fmt.Fprintln(w, titleStyle.Render("softwrap"))
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		fmt.Fprintln(w, keyStyle.Render(r[0])+r[1])
	}
}
