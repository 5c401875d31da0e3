// Package control implements the engine's external command surface: a
// small fixed command set (run, pause, pausewait, shutdown, status, and
// "interrupt <jobID>") reachable over stdin or HTTP,
// throttled so a runaway client can't flood the engine with admission
// decisions.
package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"cameleer/internal/history"
	logx "cameleer/pkg/logx"
)

// ErrUnknownCommand is returned for any token not in the fixed command set.
var ErrUnknownCommand = errors.New("control: unknown command")

// Engine is the subset of *engine.Engine the control surface drives.
type Engine interface {
	Run()
	Pause()
	PauseWait(ctx context.Context) error
	Shutdown(ctx context.Context) error
	InterruptJob(jobID uint64) error
	History() []history.Item
}

// Surface dispatches command lines against an Engine, rate-limited so a
// misbehaving client can't starve the engine's own goroutines.
type Surface struct {
	eng     Engine
	log     logx.Logger
	limiter *rate.Limiter
	onShut  func()
}

// New builds a Surface. ratePerSec <= 0 disables throttling (every command
// admitted immediately).
func New(eng Engine, log logx.Logger, ratePerSec float64, burst int) *Surface {
	if log.IsZero() {
		log = logx.Nop()
	}
	var limiter *rate.Limiter
	if ratePerSec > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	return &Surface{eng: eng, log: log, limiter: limiter}
}

// OnShutdown installs a callback invoked once a "shutdown" command has been
// dispatched to the engine, letting the host unblock its own main loop.
func (s *Surface) OnShutdown(fn func()) { s.onShut = fn }

func (s *Surface) allow() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}

// Dispatch executes one whitespace-tokenized command line: run, pause,
// pausewait, shutdown, status, or "interrupt <jobID>". There is no "load"
// command and no invocation of other engine methods by name; any other
// token is rejected with ErrUnknownCommand.
func (s *Surface) Dispatch(ctx context.Context, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	if !s.allow() {
		return "", fmt.Errorf("control: rate limit exceeded")
	}

	cmd := strings.ToLower(fields[0])
	switch cmd {
	case "run":
		s.eng.Run()
		return "ok", nil
	case "pause":
		s.eng.Pause()
		return "ok", nil
	case "pausewait":
		if err := s.eng.PauseWait(ctx); err != nil {
			return "", err
		}
		return "ok", nil
	case "shutdown":
		err := s.eng.Shutdown(ctx)
		if s.onShut != nil {
			s.onShut()
		}
		if err != nil {
			return "", err
		}
		return "ok", nil
	case "status":
		items := s.eng.History()
		var b strings.Builder
		fmt.Fprintf(&b, "%d job(s) in history\n", len(items))
		for _, it := range items {
			status := "ok"
			if it.Error != "" {
				status = "failed: " + it.Error
			}
			fmt.Fprintf(&b, "job=%d task=%s duration=%s %s\n", it.JobID, it.Task, it.Finished.Sub(it.Started), status)
		}
		return b.String(), nil
	case "interrupt":
		if len(fields) != 2 {
			return "", fmt.Errorf("%w: usage: interrupt <jobID>", ErrUnknownCommand)
		}
		id, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return "", fmt.Errorf("control: bad job id %q: %w", fields[1], err)
		}
		if err := s.eng.InterruptJob(id); err != nil {
			return "", err
		}
		return "ok", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
}

// ServeStdin reads newline-delimited commands from r until EOF or ctx is
// cancelled, writing one response line per command to w.
func (s *Surface) ServeStdin(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Text()
		reply, err := s.Dispatch(ctx, line)
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
			s.log.Warn("stdin command failed", logx.String("line", line), logx.Err(err))
			continue
		}
		if reply != "" {
			fmt.Fprintf(w, "%s\n", reply)
		}
	}
	return scanner.Err()
}

// controlPathPrefix is the literal path substring an HTTP control request
// must contain, using a fixed prefix match rather than a full router
// dependency.
const controlPathPrefix = "control/command/"

// HTTPHandler serves commands over GET requests whose path contains
// ".../control/command/<cmd>[/<arg>]".
func (s *Surface) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := strings.Index(r.URL.Path, controlPathPrefix)
		if idx < 0 {
			http.NotFound(w, r)
			return
		}
		rest := r.URL.Path[idx+len(controlPathPrefix):]
		line := strings.ReplaceAll(strings.Trim(rest, "/"), "/", " ")

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		reply, err := s.Dispatch(ctx, line)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprintf(w, "error: %v\n", err)
			return
		}
		fmt.Fprintf(w, "%s\n", reply)
	})
}

// ListenAndServeHTTP starts an HTTP server bound to addr serving the control
// handler, returning once ctx is cancelled or the server fails.
func ListenAndServeHTTP(ctx context.Context, addr string, s *Surface) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.HTTPHandler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
