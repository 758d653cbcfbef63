package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/cachekit"
	"github.com/unkn0wn-root/cachekit/config"
	"github.com/unkn0wn-root/cachekit/factory"
	zaplog "github.com/unkn0wn-root/cachekit/log/zap"
)

type globals struct {
	configFile string
	adapter    string
	verbose    bool
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:           "cachectl",
		Short:         "Inspect and modify cache adapters",
		Long:          "Run single cache operations against an adapter defined in a YAML config file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVarP(&g.configFile, "config", "c", envOr("CACHEKIT_CONFIG", "cachekit.yaml"), "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&g.adapter, "adapter", "a", "", "Adapter name (default: the only one defined)")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log adapter diagnostics to stderr")

	rootCmd.AddCommand(
		getCmd(g),
		setCmd(g),
		hasCmd(g),
		deleteCmd(g),
		counterCmd(g, "incr", "Increment a counter", 1),
		counterCmd(g, "decr", "Decrement a counter", -1),
		keysCmd(g),
		clearCmd(g),
		adaptersCmd(g),
	)
	return rootCmd
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func loadConfig(g *globals) (*config.File, error) { return config.Load(g.configFile) }

// open builds the selected adapter. The returned func releases it.
func (g *globals) open() (cachekit.Adapter, func(), error) {
	f, err := loadConfig(g)
	if err != nil {
		return nil, nil, err
	}
	name := g.adapter
	if name == "" {
		names := f.Names()
		if len(names) != 1 {
			return nil, nil, fmt.Errorf("--adapter is required: config defines %d adapters", len(names))
		}
		name = names[0]
	}
	def, err := f.Adapter(name)
	if err != nil {
		return nil, nil, err
	}

	logger := zap.NewNop()
	if g.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, nil, err
		}
	}
	a, err := factory.New(def, cachekit.Options{Logger: zaplog.New(logger)})
	if err != nil {
		return nil, nil, fmt.Errorf("adapter %q: %w", name, err)
	}
	return a, func() {
		_ = factory.Close(context.Background(), a)
		_ = logger.Sync()
	}, nil
}
