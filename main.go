package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/brackenfield/sampldiff/internal/platform"
	"github.com/brackenfield/sampldiff/pkg/archive"
	"github.com/brackenfield/sampldiff/pkg/bdiff"
	"github.com/brackenfield/sampldiff/pkg/patchfile"
	"github.com/brackenfield/sampldiff/pkg/sdconfig"
	"github.com/brackenfield/sampldiff/pkg/sdmetrics"
	"github.com/brackenfield/sampldiff/pkg/wavstream"
)

// adiff exit codes, frozen by the external interface contract.
const (
	adiffOK            = 0
	adiffErrOpenA      = 1
	adiffErrOpenB      = 2
	adiffErrChannels   = 3
	adiffErrSampleRate = 4
	adiffErrFormat     = 5
)

// apatch exit codes, frozen by the external interface contract.
const (
	apatchOK            = 0
	apatchErrOpenA      = 1
	apatchErrOpenB      = 2
	apatchErrOpenOutput = 3
)

func main() {
	root := &cobra.Command{
		Use:   "sampldiff",
		Short: "Content-defined binary diffing for fixed-size-sample streams",
		Long: `sampldiff computes and applies byte-exact diffs between two sample
streams (WAV audio by default) using content-defined chunking and a
byte-exact narrowing pass, and optionally archives the result in a
content-addressable, Merkle-verified store.`,
	}

	root.AddCommand(
		newDiffFramesCmd(),
		newPatchFramesCmd(),
		newArchiveCmd(),
		newServeMetricsCmd(),
	)

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func preflightOpen(path string) error {
	path = platform.LongPathname(path)
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return ensureReadable(path, info)
}

func newDiffFramesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff-frames FILE_A FILE_B",
		Short: "Diff two WAV files, printing one hunk per line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := runDiffFrames(args[0], args[1], cmd.OutOrStdout())
			if code != adiffOK {
				os.Exit(code)
			}
			return nil
		},
	}
}

func runDiffFrames(pathA, pathB string, out io.Writer) int {
	if err := preflightOpen(pathA); err != nil {
		fmt.Fprintf(os.Stderr, "sampldiff: opening %s: %v\n", pathA, err)
		return adiffErrOpenA
	}
	if err := preflightOpen(pathB); err != nil {
		fmt.Fprintf(os.Stderr, "sampldiff: opening %s: %v\n", pathB, err)
		return adiffErrOpenB
	}

	a, err := wavstream.Open(pathA)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sampldiff: %v\n", err)
		return adiffErrOpenA
	}
	b, err := wavstream.Open(pathB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sampldiff: %v\n", err)
		return adiffErrOpenB
	}

	if err := wavstream.CheckCompatible(a, b); err != nil {
		fmt.Fprintf(os.Stderr, "sampldiff: %v\n", err)
		switch {
		case errors.Is(err, wavstream.ErrChannels):
			return adiffErrChannels
		case errors.Is(err, wavstream.ErrSampleRate):
			return adiffErrSampleRate
		default:
			return adiffErrFormat
		}
	}

	cfg := sdconfig.LoadFromEnv(sdconfig.DefaultConfig(a.SampleSize()))
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "sampldiff: invalid configuration: %v\n", err)
		return adiffErrFormat
	}

	engine := bdiff.NewEngine(cfg.Chunking)
	hunks, err := engine.Bdiff(context.Background(), a.SampleSize(), a, b)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sampldiff: diff failed: %v\n", err)
		return adiffErrFormat
	}

	if err := patchfile.Write(out, hunks); err != nil {
		fmt.Fprintf(os.Stderr, "sampldiff: writing hunks: %v\n", err)
		return adiffErrFormat
	}
	return adiffOK
}

func newPatchFramesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patch-frames DIFF_FILE A B OUT",
		Short: "Apply a hunk list to reconstruct B from A",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := runPatchFrames(args[0], args[1], args[2], args[3])
			if code != apatchOK {
				os.Exit(code)
			}
			return nil
		},
	}
}

func runPatchFrames(diffPath, pathA, pathB, outPath string) int {
	if err := preflightOpen(pathA); err != nil {
		fmt.Fprintf(os.Stderr, "sampldiff: opening %s: %v\n", pathA, err)
		return apatchErrOpenA
	}
	if err := preflightOpen(pathB); err != nil {
		fmt.Fprintf(os.Stderr, "sampldiff: opening %s: %v\n", pathB, err)
		return apatchErrOpenB
	}

	diffFile, err := os.Open(diffPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sampldiff: opening %s: %v\n", diffPath, err)
		return apatchErrOpenA
	}
	defer diffFile.Close()

	hunks, err := patchfile.Read(diffFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sampldiff: reading hunks from %s: %v\n", diffPath, err)
		return apatchErrOpenA
	}

	a, err := wavstream.Open(pathA)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sampldiff: %v\n", err)
		return apatchErrOpenA
	}
	b, err := wavstream.Open(pathB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sampldiff: %v\n", err)
		return apatchErrOpenB
	}

	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sampldiff: creating %s: %v\n", outPath, err)
		return apatchErrOpenOutput
	}
	defer out.Close()

	if err := wavstream.ApplyPatch(a, b, hunks, out); err != nil {
		fmt.Fprintf(os.Stderr, "sampldiff: applying patch: %v\n", err)
		return apatchErrOpenOutput
	}
	return apatchOK
}

func newServeMetricsCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve Prometheus metrics for long-running batch hosts",
		RunE: func(cmd *cobra.Command, args []string) error {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(sdmetrics.Registry, promhttp.HandlerOpts{}))
			log.Printf("[serve-metrics] listening on %s", addr)
			return http.ListenAndServe(addr, mux)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9595", "Address to serve /metrics on")
	return cmd
}

func newArchiveCmd() *cobra.Command {
	var stateDir, hashAlgo string

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Content-addressable storage and version history for diffed assets",
	}
	cmd.PersistentFlags().StringVar(&stateDir, "state-dir", "./sampldiff-archive", "Directory holding the CAS store and history database")
	cmd.PersistentFlags().StringVar(&hashAlgo, "hash-algo", "sha256", "Content-addressing hash algorithm (sha256 or blake3)")

	openArchive := func() (*archive.Archive, error) {
		return archive.Open(stateDir+"/cas", stateDir+"/history.db", hashAlgo)
	}

	putCmd := &cobra.Command{
		Use:   "put ASSET FILE_A FILE_B",
		Short: "Diff FILE_A and FILE_B and archive the resulting version",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, pathA, pathB := args[0], args[1], args[2]

			a, err := wavstream.Open(pathA)
			if err != nil {
				return err
			}
			b, err := wavstream.Open(pathB)
			if err != nil {
				return err
			}
			if err := wavstream.CheckCompatible(a, b); err != nil {
				return err
			}

			cfg := sdconfig.LoadFromEnv(sdconfig.DefaultConfig(a.SampleSize()))
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			engine := bdiff.NewEngine(cfg.Chunking)
			hunks, err := engine.Bdiff(context.Background(), a.SampleSize(), a, b)
			if err != nil {
				return fmt.Errorf("diff failed: %w", err)
			}

			ar, err := openArchive()
			if err != nil {
				return err
			}
			defer ar.Close()

			manifest, err := ar.PutVersion(asset, hunks, b, b.SampleSize())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %s version %d (%d hunks)\n", asset, manifest.Version, len(manifest.HunkRefs))
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get ASSET VERSION",
		Short: "Print the hunk refs recorded for one archived version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset := args[0]
			ar, err := openArchive()
			if err != nil {
				return err
			}
			defer ar.Close()

			versions, err := ar.History.Versions(asset)
			if err != nil {
				return err
			}
			var version int
			if _, err := fmt.Sscan(args[1], &version); err != nil {
				return fmt.Errorf("invalid version %q: %w", args[1], err)
			}
			for _, m := range versions {
				if m.Version == version {
					for _, ref := range m.HunkRefs {
						fmt.Fprintf(cmd.OutOrStdout(), "%d %d %d %d %s\n", ref.A.Start, ref.A.End, ref.B.Start, ref.B.End, ref.CID)
					}
					return nil
				}
			}
			return fmt.Errorf("asset %s has no version %d", asset, version)
		},
	}

	verifyCmd := &cobra.Command{
		Use:   "verify ASSET",
		Short: "Verify the Merkle root of every archived version of an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset := args[0]
			ar, err := openArchive()
			if err != nil {
				return err
			}
			defer ar.Close()

			versions, err := ar.History.Versions(asset)
			if err != nil {
				return err
			}
			for _, m := range versions {
				ok, err := ar.Verify(m)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("asset %s version %d failed Merkle verification", asset, m.Version)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d versions verified\n", asset, len(versions))
			return nil
		},
	}

	gcCmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove unreferenced payloads from the CAS store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ar, err := openArchive()
			if err != nil {
				return err
			}
			defer ar.Close()

			n, err := ar.Store.GarbageCollect()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d unreferenced payloads\n", n)
			return nil
		},
	}

	cmd.AddCommand(putCmd, getCmd, verifyCmd, gcCmd)
	return cmd
}
