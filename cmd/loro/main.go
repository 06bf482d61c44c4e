// Command loro is a small CLI over pkg/loro: create a document file, export
// it in either wire format, import updates into it, and rewind it to an
// earlier frontier. Grounded on the teacher's cmd/main.go ("build options,
// construct, call a few operations, print") but organized as cobra
// subcommands the way cuemby-warren's cmd/warren/main.go does, since the
// teacher itself never exposed more than one entry point to imitate.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/loro-dev/loro/internal/config"
	"github.com/loro-dev/loro/internal/version"
	"github.com/loro-dev/loro/pkg/loro"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "loro",
	Short: "Inspect and exchange Loro CRDT documents from the command line",
}

var newCmd = &cobra.Command{
	Use:   "new FILE",
	Short: "Create a new empty document and write it to FILE as a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		peer, _ := cmd.Flags().GetUint64("peer")
		opts := config.Default()
		opts.PeerID = peer
		doc := loro.New(opts)

		blob, err := doc.Export(loro.EncodeFastSnapshot)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if err := os.WriteFile(args[0], blob, 0644); err != nil {
			return fmt.Errorf("write %s: %w", args[0], err)
		}
		fmt.Printf("created %s (peer %d)\n", args[0], doc.PeerID())
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE UPDATE",
	Short: "Import UPDATE's bytes into the document stored at FILE, then re-save it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDoc(args[0])
		if err != nil {
			return err
		}
		update, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[1], err)
		}
		if err := doc.Import(update); err != nil {
			return fmt.Errorf("import: %w", err)
		}
		if err := saveDoc(doc, args[0]); err != nil {
			return err
		}
		fmt.Printf("imported %s into %s\n", args[1], args[0])
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export FILE OUT",
	Short: "Export the document at FILE to OUT",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		encodeMode, err := parseEncodeMode(mode)
		if err != nil {
			return err
		}

		doc, err := loadDoc(args[0])
		if err != nil {
			return err
		}
		blob, err := doc.Export(encodeMode)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if err := os.WriteFile(args[1], blob, 0644); err != nil {
			return fmt.Errorf("write %s: %w", args[1], err)
		}
		fmt.Printf("exported %s (%s) to %s\n", args[0], mode, args[1])
		return nil
	},
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout FILE FRONTIERS",
	Short: "Rewind FILE's document to FRONTIERS (comma-separated counter@peer pairs) and re-save it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseFrontiers(args[1])
		if err != nil {
			return err
		}
		doc, err := loadDoc(args[0])
		if err != nil {
			return err
		}
		if err := doc.Checkout(target); err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		if err := saveDoc(doc, args[0]); err != nil {
			return err
		}
		fmt.Printf("checked out %s to %s\n", args[0], formatFrontiers(target))
		return nil
	},
}

var forkCmd = &cobra.Command{
	Use:   "fork FILE OUT",
	Short: "Fork the document at FILE into a new independent document file OUT",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDoc(args[0])
		if err != nil {
			return err
		}
		fork, err := doc.Fork()
		if err != nil {
			return fmt.Errorf("fork: %w", err)
		}
		if err := saveDoc(fork, args[1]); err != nil {
			return err
		}
		fmt.Printf("forked %s into %s (peer %d)\n", args[0], args[1], fork.PeerID())
		return nil
	},
}

func init() {
	newCmd.Flags().Uint64("peer", 0, "peer id (0 chooses one at random)")
	exportCmd.Flags().String("mode", "snapshot", "encode mode: snapshot or updates")

	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(forkCmd)
}

// loadDoc reads path as a FastSnapshot or FastUpdates blob and imports it
// into a fresh Document (a document file is always self-contained: no
// separate peer-id argument is needed since Import never needs one).
func loadDoc(path string) (*loro.Document, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc := loro.New(config.Default())
	if err := doc.Import(blob); err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	return doc, nil
}

func saveDoc(doc *loro.Document, path string) error {
	blob, err := doc.Export(loro.EncodeFastSnapshot)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := os.WriteFile(path, blob, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func parseEncodeMode(s string) (loro.EncodeMode, error) {
	switch s {
	case "snapshot":
		return loro.EncodeFastSnapshot, nil
	case "updates":
		return loro.EncodeFastUpdates, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want snapshot or updates)", s)
	}
}

// parseFrontiers parses a comma-separated list of "counter@peer" pairs,
// matching version.ID.String()'s own format.
func parseFrontiers(s string) (version.Frontiers, error) {
	parts := strings.Split(s, ",")
	out := make(version.Frontiers, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		half := strings.SplitN(p, "@", 2)
		if len(half) != 2 {
			return nil, fmt.Errorf("invalid frontier %q (want counter@peer)", p)
		}
		counter, err := strconv.ParseInt(half[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid counter in %q: %w", p, err)
		}
		peer, err := strconv.ParseUint(half[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid peer in %q: %w", p, err)
		}
		out = append(out, version.ID{Peer: peer, Counter: version.Counter(counter)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no frontiers given")
	}
	return out, nil
}

func formatFrontiers(f version.Frontiers) string {
	parts := make([]string, len(f))
	for i, id := range f {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}
