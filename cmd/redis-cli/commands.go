package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pior/redis"
	"github.com/pior/redis/resp"
)

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), viper.GetDuration("timeout"))
}

var (
	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Check that the server answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			start := time.Now()
			if err := client.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "PONG (took %v)\n", time.Since(start))
			return nil
		},
	}

	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Print the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			item, err := client.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if !item.Found {
				fmt.Fprintln(cmd.OutOrStdout(), "(nil)")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(item.Value))
			return nil
		},
	}

	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Set the value of a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			ttl, _ := cmd.Flags().GetDuration("ttl")
			nx, _ := cmd.Flags().GetBool("nx")
			item := redis.Item{Key: args[0], Value: []byte(args[1]), TTL: ttl}

			if nx {
				stored, err := client.Add(ctx, item)
				if err != nil {
					return err
				}
				if !stored {
					fmt.Fprintln(cmd.OutOrStdout(), "not stored: key exists")
					return nil
				}
			} else if err := client.Set(ctx, item); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}

	delCmd = &cobra.Command{
		Use:   "del [key...]",
		Short: "Delete keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			n, err := client.Delete(ctx, args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "(integer) %d\n", n)
			return nil
		},
	}

	incrCmd = &cobra.Command{
		Use:   "incr [key] [delta]",
		Short: "Increment a counter",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			delta := int64(1)
			if len(args) == 2 {
				d, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("delta must be a number: %w", err)
				}
				delta = d
			}

			n, err := client.Increment(ctx, args[0], delta)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "(integer) %d\n", n)
			return nil
		},
	}

	doCmd = &cobra.Command{
		Use:   "do [command] [arg...]",
		Short: "Send any command and print the raw reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			return runRaw(ctx, cmd.OutOrStdout(), args)
		},
	}
)

func init() {
	setCmd.Flags().Duration("ttl", redis.NoTTL, "expiration of the key")
	setCmd.Flags().Bool("nx", false, "only set the key if it does not exist")
}

// runRaw sends args as a command and prints the reply the way redis-cli
// does.
func runRaw(ctx context.Context, w io.Writer, args []string) error {
	cmdArgs := make([]any, len(args)-1)
	for i, a := range args[1:] {
		cmdArgs[i] = a
	}

	cmd, err := redis.NewCommand(resp.ParseFrame, args[0], cmdArgs...)
	if err != nil {
		return err
	}

	frame, err := redis.Do(ctx, client, cmd)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, formatReply(frame, ""))
	return nil
}

func formatReply(f resp.Frame, indent string) string {
	switch f.Kind {
	case resp.SimpleString:
		return f.Str
	case resp.Error:
		return "(error) " + f.Str
	case resp.Integer:
		return "(integer) " + strconv.FormatInt(f.Int, 10)
	case resp.BulkString:
		if f.Null {
			return "(nil)"
		}
		return strconv.Quote(string(f.Bulk))
	case resp.Array:
		if f.Null {
			return "(nil)"
		}
		if len(f.Array) == 0 {
			return "(empty array)"
		}
		var out string
		for i, e := range f.Array {
			prefix := strconv.Itoa(i+1) + ") "
			if i > 0 {
				out += "\n" + indent
			}
			out += prefix + formatReply(e, indent+"   ")
		}
		return out
	default:
		return f.String()
	}
}
