package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/atomic"

	"github.com/ASHISH26940/heliokv/internal/rpc"
)

var clientFlags struct {
	addr    string
	timeout time.Duration
	clients int
}

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Talk to a heliokv node over gRPC",
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Run one bump-and-restore cycle",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, _ []string) error {
		return c.Update(ctx)
	}),
}

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Print the counter",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, _ []string) error {
		v, err := c.Read(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	}),
}

var requestCmd = &cobra.Command{
	Use:     "request <operation> <key> [value]",
	Short:   "Send one get/put/delete request",
	Example: "  heliokv client request put apple 10",
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error {
		resp, err := c.HandleRequest(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp)
		return nil
	}),
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Read the counter, update it, and read it again",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, _ []string) error {
		before, after, err := check(ctx, c)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[client] (before) counter = %d\n", before)
		fmt.Fprintf(cmd.OutOrStdout(), "[client] (after)  counter = %d\n", after)
		return nil
	}),
}

var raceCmd = &cobra.Command{
	Use:   "race",
	Short: "Run many concurrent checks and count nonzero counter reads",
	Args:  cobra.NoArgs,
	RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, _ []string) error {
		res, err := race(ctx, c, clientFlags.clients)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d clients, %d reads, %d nonzero\n", clientFlags.clients, res.reads, res.nonzero)
		return nil
	}),
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive request shell",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func init() {
	pf := clientCmd.PersistentFlags()
	pf.StringVarP(&clientFlags.addr, "addr", "a", "localhost:9080", "gRPC address of the node")
	pf.DurationVar(&clientFlags.timeout, "timeout", time.Minute, "Per-command timeout")
	raceCmd.Flags().IntVarP(&clientFlags.clients, "clients", "n", 50, "Number of concurrent clients")

	clientCmd.AddCommand(updateCmd, readCmd, requestCmd, checkCmd, raceCmd, shellCmd)
}

type clientFunc func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, args []string) error

// withClient dials the node, runs fn under the command timeout and closes the connection.
func withClient(fn clientFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), clientFlags.timeout)
		defer cancel()
		c, err := rpc.Dial(ctx, clientFlags.addr)
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(ctx, cmd, c, args)
	}
}

// counterClient is the part of rpc.Client the counter experiments use.
type counterClient interface {
	Update(ctx context.Context) error
	Read(ctx context.Context) (int64, error)
}

func check(ctx context.Context, c counterClient) (before, after int64, err error) {
	if before, err = c.Read(ctx); err != nil {
		return 0, 0, errors.Wrap(err, "read before update")
	}
	if err = c.Update(ctx); err != nil {
		return 0, 0, errors.Wrap(err, "update")
	}
	if after, err = c.Read(ctx); err != nil {
		return 0, 0, errors.Wrap(err, "read after update")
	}
	return before, after, nil
}

type raceResult struct {
	reads   int64
	nonzero int64
}

// race runs n concurrent checks and tallies the counter values they saw.
func race(ctx context.Context, c counterClient, n int) (raceResult, error) {
	if n < 1 {
		return raceResult{}, errors.Errorf("clients must be at least 1, got %d", n)
	}
	var (
		wg      sync.WaitGroup
		reads   atomic.Int64
		nonzero atomic.Int64
		errOnce sync.Once
		first   error
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			before, after, err := check(ctx, c)
			if err != nil {
				errOnce.Do(func() { first = err })
				return
			}
			reads.Add(2)
			for _, v := range []int64{before, after} {
				if v != 0 {
					nonzero.Inc()
				}
			}
		}()
	}
	wg.Wait()
	return raceResult{reads: reads.Load(), nonzero: nonzero.Load()}, first
}

func runShell(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	dialCtx, cancel := context.WithTimeout(ctx, clientFlags.timeout)
	c, err := rpc.Dial(dialCtx, clientFlags.addr)
	cancel()
	if err != nil {
		return err
	}
	defer c.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "heliokv> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          cmd.OutOrStdout(),
	})
	if err != nil {
		return errors.Wrap(err, "start shell")
	}
	defer rl.Close()

	out := rl.Stdout()
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if line == "" {
				return nil
			}
			continue
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if err := shellLine(ctx, out, c, strings.TrimSpace(line)); err != nil {
			if err == io.EOF {
				return nil
			}
			fmt.Fprintln(out, "error:", err)
		}
	}
}

// shellClient is the part of rpc.Client the shell uses.
type shellClient interface {
	counterClient
	HandleRequest(ctx context.Context, line string) (string, error)
}

// shellLine executes one shell input. It returns io.EOF when the user asks to quit.
func shellLine(ctx context.Context, out io.Writer, c shellClient, line string) error {
	if clientFlags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, clientFlags.timeout)
		defer cancel()
	}

	switch strings.ToLower(line) {
	case "":
		return nil
	case "quit", "exit":
		return io.EOF
	case "update":
		return c.Update(ctx)
	case "read":
		v, err := c.Read(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "counter = %d\n", v)
		return nil
	}
	resp, err := c.HandleRequest(ctx, line)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, resp)
	return nil
}
