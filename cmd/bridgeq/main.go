package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	cfgpkg "github.com/flutterjanus/bridgeq/internal/config"
	"github.com/flutterjanus/bridgeq/internal/queue"
	"github.com/flutterjanus/bridgeq/internal/registry"
	"github.com/flutterjanus/bridgeq/internal/runtime"
	logpkg "github.com/flutterjanus/bridgeq/pkg/log"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bridgeq",
		Short: "Durable message queue CLI",
		Long:  "bridgeq is a durable, at-least-once message queue over a local store. This CLI publishes, drains and inspects channels.",
	}
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "path to a JSON or YAML config file")
	pf.String("data-dir", "", "data directory (default: platform data dir)")
	pf.String("fsync", "", "fsync mode: always|interval|never")
	pf.String("log-level", "", "log level: debug|info|warn|error")
	pf.String("log-format", "", "log format: text|json")

	rootCmd.AddCommand(publishCmd())
	rootCmd.AddCommand(listenCmd())
	rootCmd.AddCommand(pendingCmd())
	rootCmd.AddCommand(ackCmd())
	rootCmd.AddCommand(gcCmd())
	rootCmd.AddCommand(clearCmd())
	rootCmd.AddCommand(healthCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration: file, then BRIDGEQ_* env, then flags.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, err
	}
	cfgpkg.FromEnv(&cfg)
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("fsync"); v != "" {
		cfg.Fsync = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}
	return cfg, nil
}

func openRuntime(cmd *cobra.Command) (*runtime.Runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	rt, err := runtime.Open(cfg)
	if err != nil {
		return nil, err
	}
	// Pebble logs through the standard library; route it to ours.
	logpkg.RedirectStdLog(rt.Logger())
	return rt, nil
}

func openChannel(rt *runtime.Runtime, name, filter string) (*queue.Queue[queue.Record], error) {
	return registry.GetOrCreate[queue.Record](rt.Registry(), name, queue.RecordCodec{}, queue.Options{Filter: filter})
}

func publishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish <channel> <json>",
		Short: "Persist a message into a channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			rec, err := queue.DecodeRecord([]byte(args[1]))
			if err != nil {
				return err
			}
			q, err := openChannel(rt, args[0], "")
			if err != nil {
				return err
			}
			mid, err := q.Send(cmd.Context(), rec)
			if err != nil {
				return err
			}
			fmt.Println(mid)
			return nil
		},
	}
	return cmd
}

func listenCmd() *cobra.Command {
	var autoAck bool
	var filter string
	cmd := &cobra.Command{
		Use:   "listen <channel>",
		Short: "Replay pending messages and stream live ones until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			q, err := openChannel(rt, args[0], filter)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			// drain concurrently so replay never blocks on the buffer
			done := make(chan struct{})
			go func() {
				defer close(done)
				enc := json.NewEncoder(os.Stdout)
				for d := range q.Messages() {
					_ = enc.Encode(d.Msg)
					if autoAck {
						if err := q.Ack(ctx, d.ID); err != nil {
							rt.Logger().Error("ack failed", logpkg.Str("id", d.ID), logpkg.Err(err))
						}
					}
				}
			}()
			if err := q.Initialize(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			q.Dispose()
			<-done
			return nil
		},
	}
	cmd.Flags().BoolVar(&autoAck, "ack", false, "acknowledge each message after printing it")
	cmd.Flags().StringVar(&filter, "filter", "", "CEL expression; only matching records are emitted")
	return cmd
}

func pendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending <channel>",
		Short: "List the pending set in replay order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			q, err := openChannel(rt, args[0], "")
			if err != nil {
				return err
			}
			recs, err := q.Pending()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			for _, rec := range recs {
				if err := enc.Encode(rec); err != nil {
					return err
				}
			}
			return nil
		},
	}
	return cmd
}

func ackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ack <channel> <id>...",
		Short: "Acknowledge one or more message ids",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			q, err := openChannel(rt, args[0], "")
			if err != nil {
				return err
			}
			for _, mid := range args[1:] {
				if err := q.Ack(cmd.Context(), mid); err != nil {
					return fmt.Errorf("ack %s: %w", mid, err)
				}
			}
			return nil
		},
	}
	return cmd
}

func gcCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gc <channel>",
		Short: "Reconcile acknowledged messages out of the pending set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			q, err := openChannel(rt, args[0], "")
			if err != nil {
				return err
			}
			removed, err := q.GarbageCollect(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("removed %d\n", removed)
			return nil
		},
	}
	return cmd
}

func clearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear <channel>",
		Short: "Erase a channel's entire keyspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			q, err := openChannel(rt, args[0], "")
			if err != nil {
				return err
			}
			return q.ClearAll(cmd.Context())
		},
	}
	return cmd
}

func healthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the store opens and reads",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.CheckHealth(context.Background()); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
	return cmd
}
