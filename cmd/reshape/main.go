package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"
	"time"

	"reshape/internal/config"
	"reshape/internal/engine"
	"reshape/internal/journal"
	"reshape/internal/logging"
	"reshape/internal/operation"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errFailed reports an operation or batch that ran but did not succeed. The
// result has already been printed.
var errFailed = errors.New("operation failed")

var (
	rootCmd = &cobra.Command{
		Use:           "reshape",
		Short:         "Verified symbol-level refactoring for TypeScript and JavaScript projects",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if rootDir != "" {
				cfg.Project.Root = rootDir
			}
			level := cfg.Logging.Level
			if verbose {
				level = "debug"
			}
			logger, err = logging.New(level, cfg.Logging.JSON)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	configPath string
	rootDir    string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	switch {
	case errors.Is(err, errFailed):
		os.Exit(2)
	case err != nil:
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "reshape.yaml", "Path to the config file")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", "", "Project root (overrides project.root)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
	historyCmd.Flags().StringVar(&historyBatch, "batch", "", "Show the entries of one batch")

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(historyCmd)
}

func openEngine() (*engine.Engine, error) {
	return engine.New(cfg, engine.WithLogger(logger))
}

var applyCmd = &cobra.Command{
	Use:   "apply <operation.json|->",
	Short: "Execute one rename, move or remove operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		op, err := operation.Decode(data)
		if err != nil {
			return err
		}

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		res := eng.Execute(cmd.Context(), op)
		if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if !res.Success {
			return errFailed
		}
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <batch.json|->",
	Short: "Execute a list of operations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		b, err := operation.DecodeBatch(data)
		if err != nil {
			return err
		}

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		out := eng.ExecuteBatch(cmd.Context(), b)
		if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
		if !out.Success {
			return errFailed
		}
		return nil
	},
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols <file>",
	Short: "List the declarations a selector can name in a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		decls, err := eng.Symbols(args[0])
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), decls)
	},
}

var (
	historyLimit int
	historyBatch string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently executed operations from the journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		var entries []journal.Entry
		if historyBatch != "" {
			entries, err = eng.BatchHistory(cmd.Context(), historyBatch)
		} else {
			entries, err = eng.History(cmd.Context(), historyLimit)
		}
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tTYPE\tSYMBOL\tFILE\tOK\tERROR")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.CreatedAt.Format(time.DateTime), e.Type, e.SelectorName, e.SelectorFile,
				strconv.FormatBool(e.Success), e.Error)
		}
		return w.Flush()
	},
}

func readInput(stdin io.Reader, arg string) ([]byte, error) {
	if arg == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", arg, err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
