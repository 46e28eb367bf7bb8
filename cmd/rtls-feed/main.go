// Command rtls-feed replays a gateway capture into a running rtls engine
// over its HTTP API.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ktrzcinx/rtls/internal/api"
	"github.com/ktrzcinx/rtls/internal/rtls"
	"github.com/ktrzcinx/rtls/internal/serialmux"
)

var (
	server   = flag.String("server", "http://localhost:8080", "Base URL of the rtls HTTP API")
	input    = flag.String("file", "-", `Capture file of gateway lines ("-" reads stdin)`)
	interval = flag.Duration("interval", 0, "Delay between lines (0 sends as fast as possible)")
	restamp  = flag.Bool("restamp", false, "Drop capture timestamps and let the server stamp samples")
	timeout  = flag.Duration("timeout", 5*time.Second, "Per-request timeout")
)

// stats counts the outcome of each replayed line.
type stats struct {
	Sent, Skipped, Rejected int
}

func main() {
	flag.Parse()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	var r io.Reader = os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open capture")
		}
		defer f.Close()
		r = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := api.NewClient(*server, &http.Client{Timeout: *timeout})
	f := &feeder{
		client:   client,
		restamp:  *restamp,
		interval: *interval,
		logf: func(format string, v ...interface{}) {
			logger.Warn().Msg(fmt.Sprintf(format, v...))
		},
	}
	st, err := f.run(ctx, r)
	logger.Info().Int("sent", st.Sent).Int("skipped", st.Skipped).Int("rejected", st.Rejected).Msg("replay finished")
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("replay failed")
	}
}

type feeder struct {
	client   *api.Client
	restamp  bool
	interval time.Duration
	logf     func(string, ...interface{})
}

// run sends every line of r. Lines the server rejects are counted and
// logged; a transport failure ends the replay.
func (f *feeder) run(ctx context.Context, r io.Reader) (stats, error) {
	var st stats
	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		line := scanner.Text()
		err := f.send(ctx, line)
		var se *api.StatusError
		switch {
		case errors.Is(err, errSkip):
			st.Skipped++
			continue
		case errors.As(err, &se), errors.Is(err, serialmux.ErrMalformedLine):
			st.Rejected++
			f.logf("line %d %q: %v", lineNo, line, err)
		case err != nil:
			return st, fmt.Errorf("line %d: %w", lineNo, err)
		default:
			st.Sent++
		}
		if f.interval > 0 {
			select {
			case <-ctx.Done():
				return st, ctx.Err()
			case <-time.After(f.interval):
			}
		}
	}
	return st, scanner.Err()
}

var errSkip = errors.New("skip")

func (f *feeder) send(ctx context.Context, line string) error {
	switch serialmux.ClassifyPayload(line) {
	case serialmux.EventTypeRange:
		rr, err := serialmux.ParseRange(line)
		if err != nil {
			return err
		}
		var ts *uint32
		if rr.HasTimestamp && !f.restamp {
			ts = &rr.Timestamp
		}
		_, err = f.client.AddMeasure(ctx, rr.A, rr.B, float64(rr.Distance), ts)
		return err
	case serialmux.EventTypeDevice:
		d, err := serialmux.ParseDevice(line)
		if err != nil {
			return err
		}
		err = f.client.AddDevice(ctx, d.ID, d.X, d.Y, d.Z)
		if errors.Is(err, rtls.ErrDuplicateDevice) {
			return nil
		}
		return err
	default:
		return errSkip
	}
}
