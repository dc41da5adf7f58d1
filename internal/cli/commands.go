package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/docsync/internal/api"
	"github.com/example/docsync/internal/core"
	"github.com/example/docsync/internal/events"
	"github.com/example/docsync/internal/models"
)

// withEnv builds the Env, runs fn and closes the Env afterwards.
func withEnv(cmd *cobra.Command, opts *RootOptions, factory EnvFactory, fn func(*Env) error) error {
	env, err := factory(cmd.Context(), opts)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to initialize", err)
	}
	defer env.Close()
	return fn(env)
}

func lookup(env *Env, name string) (*api.DocumentRepository, error) {
	repo, ok := env.Registry.Lookup(name)
	if !ok {
		return nil, &ExitError{
			Code:    ExitCommandError,
			Message: fmt.Sprintf("unknown collection %q (registered: %s)", name, strings.Join(env.Registry.Names(), ", ")),
		}
	}
	return repo, nil
}

// settled closes the returned channel once every task queued on sched
// before the call, and every completion those tasks queued, has run.
func settled(sched core.Scheduler) <-chan struct{} {
	done := make(chan struct{})
	sched.Background(func() {
		sched.Foreground(func() { close(done) })
	})
	return done
}

func waitSettled(ctx context.Context, sched core.Scheduler) error {
	select {
	case <-settled(sched):
		return nil
	case <-ctx.Done():
		return WrapExitError(ExitFailure, "timed out", ctx.Err())
	}
}

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions, factory EnvFactory) *cobra.Command {
	return &cobra.Command{
		Use:          "list",
		Short:        "List registered collections",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, opts, factory, func(env *Env) error {
				out := newFormatter(opts, cmd.OutOrStdout())
				names := env.Registry.Names()
				if opts.Format == "json" {
					infos := make([]api.CollectionInfo, 0, len(names))
					for _, name := range names {
						repo, _ := env.Registry.Lookup(name)
						d := repo.Descriptor()
						infos = append(infos, api.CollectionInfo{Name: name, Kind: d.Kind.String(), Descriptor: d})
					}
					return out.Success(infos)
				}
				for _, name := range names {
					repo, _ := env.Registry.Lookup(name)
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, repo.Descriptor().Kind)
				}
				return nil
			})
		},
	}
}

// NewGetCommand creates the get command.
func NewGetCommand(opts *RootOptions, factory EnvFactory) *cobra.Command {
	return &cobra.Command{
		Use:          "get <collection>",
		Short:        "Fetch every record of a collection once",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, factory, func(env *Env) error {
				repo, err := lookup(env, args[0])
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
				defer cancel()

				type result struct {
					recs []*models.Document
					err  error
				}
				results := make(chan result, 1)
				repo.Fetch(ctx,
					func(recs []*models.Document) { results <- result{recs: recs} },
					func(err error) { results <- result{err: err} },
				)

				select {
				case res := <-results:
					if res.err != nil {
						return engineError("fetch failed", res.err)
					}
					return newFormatter(opts, cmd.OutOrStdout()).Records(res.recs)
				case <-ctx.Done():
					return WrapExitError(ExitFailure, "timed out", ctx.Err())
				}
			})
		},
	}
}

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Field string
	Op    string
	Value string
	Type  string
	Count int
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions, factory EnvFactory) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <collection>",
		Short: "Run a live query and print every result batch",
		Long: `Run a live query against a collection and print each result batch.

Without --field every record matches. The command stops after --count
batches, or runs until interrupted when --count is 0.

Example:
  docsyncctl query tasks --field status --op eq --value open --count 1`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts.RootOptions, factory, func(env *Env) error {
				return runQuery(cmd, opts, env, args[0])
			})
		},
	}

	cmd.Flags().StringVar(&opts.Field, "field", "", "field to filter on")
	cmd.Flags().StringVar(&opts.Op, "op", "", "comparator (eq, lt, lte, gt, gte)")
	cmd.Flags().StringVar(&opts.Value, "value", "", "value to compare against")
	cmd.Flags().StringVar(&opts.Type, "type", "", "value type (string|int|float|bool), inferred when empty")
	cmd.Flags().IntVar(&opts.Count, "count", 0, "stop after this many batches (0 runs until interrupted)")

	return cmd
}

func runQuery(cmd *cobra.Command, opts *QueryOptions, env *Env, name string) error {
	repo, err := lookup(env, name)
	if err != nil {
		return err
	}
	q, err := buildQuery(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid query", err)
	}

	s := repo.Query(cmd.Context(), q)
	defer s.Cancel()

	out := newFormatter(opts.RootOptions, cmd.OutOrStdout())
	for seen := 0; opts.Count == 0 || seen < opts.Count; seen++ {
		select {
		case batch, open := <-s.Events():
			if !open {
				if err := s.Err(); err != nil {
					return engineError("query terminated", err)
				}
				return nil
			}
			if err := out.Records(batch); err != nil {
				return err
			}
		case <-cmd.Context().Done():
			return nil
		}
	}
	return nil
}

func buildQuery(opts *QueryOptions) (models.Query, error) {
	cmp, err := models.ParseComparator(opts.Op)
	if err != nil {
		return models.Query{}, err
	}
	q := models.Query{Field: opts.Field, Comparator: cmp}
	if !q.Filtered() {
		return models.Query{}, nil
	}
	q.Value, err = api.ParseValue(opts.Value, opts.Type)
	return q, err
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(opts *RootOptions, factory EnvFactory) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:          "watch <collection>",
		Short:        "Subscribe to a key-tree node and print every change",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, factory, func(env *Env) error {
				repo, err := lookup(env, args[0])
				if err != nil {
					return err
				}
				out := newFormatter(opts, cmd.OutOrStdout())

				batches := make(chan []*models.Document)
				failed := make(chan error, 1)
				ctx, cancel := context.WithCancel(cmd.Context())
				defer cancel()
				stop := repo.Observe(ctx,
					func(recs []*models.Document) {
						select {
						case batches <- recs:
						case <-ctx.Done():
						}
					},
					func(err error) { failed <- err },
				)
				defer stop()

				for seen := 0; count == 0 || seen < count; seen++ {
					select {
					case recs := <-batches:
						if err := out.Records(recs); err != nil {
							return err
						}
					case err := <-failed:
						return engineError("subscription terminated", err)
					case <-ctx.Done():
						return nil
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many changes (0 runs until interrupted)")
	return cmd
}

// NewCreateCommand creates the create command.
func NewCreateCommand(opts *RootOptions, factory EnvFactory) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "create <collection>",
		Short: "Create a record with a generated identifier",
		Example: `  docsyncctl create tasks --data '{"title":"write docs","status":"open"}'`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var fields map[string]any
			if err := json.Unmarshal([]byte(data), &fields); err != nil {
				return WrapExitError(ExitCommandError, "invalid --data JSON", err)
			}
			return withEnv(cmd, opts, factory, func(env *Env) error {
				repo, err := lookup(env, args[0])
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
				defer cancel()

				var (
					created *models.Address
					failure error
				)
				repo.Create(ctx, &models.Document{Data: fields},
					func(addr models.Address) { created = &addr },
					func(err error) { failure = err },
				)
				if err := waitSettled(ctx, env.Scheduler); err != nil {
					return err
				}
				switch {
				case failure != nil:
					return engineError("create failed", failure)
				case created == nil:
					return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("%s does not support create", args[0])}
				}
				out := newFormatter(opts, cmd.OutOrStdout())
				if opts.Format == "json" {
					return out.Success(api.CreatedResponse{ID: created.ID(), Address: *created})
				}
				return out.Success(created.ID())
			})
		},
	}
	cmd.Flags().StringVar(&data, "data", "{}", "record fields as a JSON object")
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(opts *RootOptions, factory EnvFactory) *cobra.Command {
	return &cobra.Command{
		Use:          "delete <collection> <id>",
		Short:        "Delete a record by identifier",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, factory, func(env *Env) error {
				repo, err := lookup(env, args[0])
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
				defer cancel()

				var (
					deleted bool
					failure error
				)
				repo.Delete(ctx, &models.Document{ID: args[1]},
					func() { deleted = true },
					func(err error) { failure = err },
				)
				if err := waitSettled(ctx, env.Scheduler); err != nil {
					return err
				}
				switch {
				case failure != nil:
					return engineError("delete failed", failure)
				case !deleted:
					return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("%s does not support delete", args[0])}
				}
				return newFormatter(opts, cmd.OutOrStdout()).Success("deleted " + args[1])
			})
		},
	}
}

// NewEventsCommand creates the events command, which tails the mutation
// event queue.
func NewEventsCommand(opts *RootOptions, factory EnvFactory) *cobra.Command {
	return &cobra.Command{
		Use:          "events",
		Short:        "Print mutation events from RABBITMQ_URL until interrupted",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, opts, factory, func(env *Env) error {
				if env.Config == nil || env.Config.RabbitMQURL == "" {
					return &ExitError{Code: ExitCommandError, Message: "RABBITMQ_URL is not set"}
				}
				sub, err := events.NewPublisher(events.Config{URL: env.Config.RabbitMQURL, Queue: env.Config.RabbitMQQueue}, env.Logger)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to connect to RabbitMQ", err)
				}
				defer sub.Close()

				out := newFormatter(opts, cmd.OutOrStdout())
				return sub.Consume(cmd.Context(), func(ev events.Event) {
					if opts.Format == "json" {
						_ = out.Success(ev)
						return
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s/%s\n",
						ev.OccurredAt.Format("15:04:05"), ev.Type, ev.Collection, ev.ID)
				})
			})
		},
	}
}
