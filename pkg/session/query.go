package session

import (
	"context"
	"errors"
	"iter"

	"go.uber.org/zap"

	"github.com/kandev/agentsdk/pkg/streamjson"
	"github.com/kandev/agentsdk/pkg/transport"
)

// Query runs one prompt and yields the resulting agent messages lazily.
//
// With no hooks, no permission callback and no in-process tool servers the
// prompt is passed as a CLI argument and stdin closes immediately; the
// sequence is exactly what the CLI emits until end of stream. Otherwise an
// interactive session is run transparently for this single exchange.
func Query(ctx context.Context, prompt string, opts *Options) iter.Seq2[streamjson.Message, error] {
	if opts == nil {
		opts = &Options{}
	}
	if opts.needsInteractive() {
		return interactiveQuery(ctx, prompt, opts)
	}
	return oneShotQuery(ctx, prompt, opts)
}

func oneShotQuery(ctx context.Context, prompt string, opts *Options) iter.Seq2[streamjson.Message, error] {
	return func(yield func(streamjson.Message, error) bool) {
		renderer := opts.Renderer
		if renderer == nil {
			renderer = DefaultRenderer{}
		}
		args, err := renderer.Render(opts, prompt, true)
		if err != nil {
			yield(nil, err)
			return
		}

		log := opts.logger().WithComponent("query")

		tr := transport.NewSubprocess(transport.Options{
			Args:           args,
			Dir:            opts.WorkingDir,
			Env:            opts.Env,
			OneShot:        true,
			StderrObserver: opts.StderrObserver,
			Resolver:       queryResolver(opts),
			Launcher:       opts.Launcher,
			Logger:         opts.logger(),
		})
		if err := tr.Connect(ctx); err != nil {
			yield(nil, err)
			return
		}
		defer func() {
			_ = tr.Close(context.Background())
		}()

		for msg, err := range tr.ReadMessages(ctx) {
			if err != nil {
				var unknown *streamjson.UnknownFrameError
				if errors.As(err, &unknown) {
					log.Warn("dropping unknown frame", zap.String("frame_type", unknown.FrameType))
					continue
				}
				yield(nil, err)
				return
			}
			// Control frames are not expected in one-shot mode.
			switch msg.(type) {
			case *streamjson.ControlRequest, *streamjson.ControlResponse, *streamjson.ControlCancelRequest:
				log.Warn("dropping control frame in one-shot mode", zap.String("frame_type", msg.MessageType()))
				continue
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

func interactiveQuery(ctx context.Context, prompt string, opts *Options) iter.Seq2[streamjson.Message, error] {
	return func(yield func(streamjson.Message, error) bool) {
		sess := New(opts)
		if err := sess.Connect(ctx); err != nil {
			yield(nil, err)
			return
		}
		defer func() {
			_ = sess.Close(context.Background())
		}()

		if err := sess.Send(ctx, prompt, ""); err != nil {
			yield(nil, err)
			return
		}

		for msg, err := range sess.ReceiveResponse(ctx) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

func queryResolver(opts *Options) transport.ExecutableResolver {
	if opts.Resolver != nil {
		return opts.Resolver
	}
	return &transport.PathResolver{Path: opts.CLIPath}
}

// Connect builds a session from options and performs the full startup
// handshake. It is the entry point for interactive use.
func Connect(ctx context.Context, opts *Options) (*Session, error) {
	sess := New(opts)
	if err := sess.Connect(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}
