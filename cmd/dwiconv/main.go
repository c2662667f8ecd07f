package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	cmd "github.com/jpfielding/dwiconv.go/cmd/dwiconv/cmd"
	"github.com/jpfielding/dwiconv.go/pkg/logging"
)

var (
	GitSHA string = "NA"
)

func main() {
	// register sigterm for graceful shutdown
	ctx, cnc := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cnc()
	go func() {
		defer cnc() // this cnc is from notify and removes the signal so subsequent ctrl-c will restore kill functions
		<-ctx.Done()
	}()
	slog.SetDefault(logging.Logger(os.Stdout, false, slog.LevelInfo))
	ctx = logging.AppendCtx(ctx,
		slog.Group("dwiconv",
			slog.String("name", "dwiconv"),
			slog.String("git", GitSHA),
			slog.String("run", uuid.NewString()),
		))
	cmd.NewRoot(ctx, GitSHA).Execute()
}
