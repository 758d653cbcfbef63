package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/cachekit"
)

func getCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a cached value as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := g.open()
			if err != nil {
				return err
			}
			defer done()

			v, err := a.Get(cmd.Context(), args[0], nil)
			if err != nil {
				return err
			}
			if v == nil {
				return fmt.Errorf("key not found: %s", args[0])
			}
			return printJSON(cmd, v)
		},
	}
}

func setCmd(g *globals) *cobra.Command {
	var (
		ttl     time.Duration
		seconds int64
		forever bool
		raw     bool
	)
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value (parsed as JSON unless --raw)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value any = args[1]
			if !raw {
				if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
					value = args[1]
				}
			}

			a, done, err := g.open()
			if err != nil {
				return err
			}
			defer done()

			var ok bool
			switch {
			case forever:
				ok, err = a.SetForever(cmd.Context(), args[0], value)
			case cmd.Flags().Changed("ttl"):
				ok, err = a.Set(cmd.Context(), args[0], value, cachekit.Interval(ttl))
			case cmd.Flags().Changed("seconds"):
				ok, err = a.Set(cmd.Context(), args[0], value, cachekit.Seconds(seconds))
			default:
				ok, err = a.Set(cmd.Context(), args[0], value, cachekit.DefaultTTL)
			}
			return report(cmd, ok, err, "stored", "not stored")
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Lifetime as a duration")
	cmd.Flags().Int64Var(&seconds, "seconds", 0, "Lifetime in seconds; below 1 deletes the key")
	cmd.Flags().BoolVar(&forever, "forever", false, "Store without expiry")
	cmd.Flags().BoolVar(&raw, "raw", false, "Store the value as a plain string")
	cmd.MarkFlagsMutuallyExclusive("ttl", "seconds", "forever")
	return cmd
}

func hasCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "has <key>",
		Short: "Report whether a key is present",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := g.open()
			if err != nil {
				return err
			}
			defer done()

			ok, err := a.Has(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
}

func deleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <key>",
		Aliases: []string{"del", "rm"},
		Short:   "Remove a key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := g.open()
			if err != nil {
				return err
			}
			defer done()

			ok, err := a.Delete(cmd.Context(), args[0])
			return report(cmd, ok, err, "deleted", "not found")
		},
	}
}

func counterCmd(g *globals, use, short string, sign int64) *cobra.Command {
	var by int64
	cmd := &cobra.Command{
		Use:   use + " <key>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := g.open()
			if err != nil {
				return err
			}
			defer done()

			var (
				n  int64
				ok bool
			)
			if sign > 0 {
				n, ok, err = a.Increment(cmd.Context(), args[0], by)
			} else {
				n, ok, err = a.Decrement(cmd.Context(), args[0], by)
			}
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s failed: %s is absent or not a counter", use, args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
	cmd.Flags().Int64VarP(&by, "by", "b", 1, "Step")
	return cmd
}

func keysCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "keys [prefix]",
		Short: "List stored keys, including the adapter prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := g.open()
			if err != nil {
				return err
			}
			defer done()

			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			keys, err := a.Keys(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(keys, "\n"))
			}
			return nil
		},
	}
}

func clearCmd(g *globals) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the adapter's entries (memcached and redis flush the whole database)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear without --yes")
			}
			a, done, err := g.open()
			if err != nil {
				return err
			}
			defer done()

			ok, err := a.Clear(cmd.Context())
			return report(cmd, ok, err, "cleared", "clear failed")
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm")
	return cmd
}

func adaptersCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "adapters",
		Short: "List adapters defined in the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadConfig(g)
			if err != nil {
				return err
			}
			for _, name := range f.Names() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, f.Adapters[name].Type)
			}
			return nil
		},
	}
}

func report(cmd *cobra.Command, ok bool, err error, yes, no string) error {
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s", no)
	}
	fmt.Fprintln(cmd.OutOrStdout(), yes)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	return enc.Encode(v)
}
