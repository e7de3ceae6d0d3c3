// Command bulkdemo exercises the bulk executor end to end against an HTTP
// endpoint: it submits a batch of create operations spread across a fixed
// partition key range, waits for every one to resolve, and reports how many
// succeeded and how many failed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cosmosdb-go/bulkexecutor/bulk"
	"github.com/cosmosdb-go/bulkexecutor/routing"
	"github.com/cosmosdb-go/bulkexecutor/transport"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		handleRun(os.Args[2:])
	case "version", "-v", "--version":
		fmt.Printf("bulkdemo v%s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("bulkdemo - exercise the bulk execution engine against an HTTP endpoint")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  bulkdemo run [options]")
	fmt.Println("  bulkdemo version")
	fmt.Println("  bulkdemo help")
	fmt.Println()
	fmt.Println("Run 'bulkdemo run --help' for options.")
}

func handleRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	endpoint := fs.String("endpoint", "http://localhost:8081", "batch endpoint base URL")
	count := fs.Int("count", 200, "number of create operations to submit")
	timeout := fs.Duration("timeout", 60*time.Second, "overall run deadline")
	debug := fs.Bool("debug", false, "enable debug-level logging")
	fs.Parse(args)

	logLevel := "INFO"
	if *debug {
		logLevel = "DEBUG"
	}

	ht, err := transport.NewHTTPTransport(transport.DefaultHTTPOptions(*endpoint))
	if err != nil {
		fmt.Fprintf(os.Stderr, "bulkdemo: creating transport: %v\n", err)
		os.Exit(1)
	}

	resolver := newStaticResolver()

	opts := bulk.DefaultExecutorOptions()
	opts.Logger = bulk.NewLogger(logLevel, os.Stdout)
	opts.LogLevel = logLevel
	opts.DebugMode = *debug
	opts.OnRangeCreated = func(rangeID string) {
		fmt.Printf("range %s activated\n", rangeID)
	}

	exec := bulk.NewExecutor(&opts, ht, resolver)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	waiters := make([]*bulk.OperationContext, 0, *count)
	for i := 0; i < *count; i++ {
		payload := map[string]interface{}{
			"id":    fmt.Sprintf("doc-%d", i),
			"value": i,
		}
		op := bulk.NewOperation(bulk.OpCreate, routing.PartitionKeyValue{Components: []interface{}{fmt.Sprintf("tenant-%d", i%4)}}, payload, bulk.OperationOptions{})
		opCtx, err := exec.Add(ctx, op)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bulkdemo: add failed for %s: %v\n", op.ID, err)
			continue
		}
		waiters = append(waiters, opCtx)
	}

	var succeeded, failed int
	for _, w := range waiters {
		r := w.Wait()
		if r.Err != nil {
			failed++
		} else {
			succeeded++
		}
	}

	if err := exec.Dispose(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "bulkdemo: dispose failed: %v\n", err)
	}
	if err := ht.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "bulkdemo: transport close failed: %v\n", err)
	}

	fmt.Printf("done: %d succeeded, %d failed\n", succeeded, failed)
}

// staticResolver is a single-range Resolver used when no real container
// metadata endpoint is available; it is enough to exercise the engine's
// batching, dispatch, and congestion control end to end.
type staticResolver struct {
	def *routing.PartitionKeyDefinition
	rm  *routing.RoutingMap
}

func newStaticResolver() *staticResolver {
	return &staticResolver{
		def: &routing.PartitionKeyDefinition{Paths: []string{"/tenant"}, Kind: routing.KindHash},
		rm: &routing.RoutingMap{Ranges: []routing.Range{
			{ID: "0", MinInclusive: "", MaxExclusive: routing.MaximumExclusive},
		}},
	}
}

func (s *staticResolver) PartitionKeyDefinition(ctx context.Context) (*routing.PartitionKeyDefinition, error) {
	return s.def, nil
}

func (s *staticResolver) RoutingMap(ctx context.Context) (*routing.RoutingMap, error) {
	return s.rm, nil
}

func (s *staticResolver) NonePartitionKeyValue(ctx context.Context) (routing.PartitionKeyValue, error) {
	return routing.PartitionKeyValue{None: true}, nil
}

func (s *staticResolver) Refresh(ctx context.Context) {}
