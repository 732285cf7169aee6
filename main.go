package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/fabfab/contextsync/api"
	"github.com/fabfab/contextsync/config"
	"github.com/fabfab/contextsync/database"
	"github.com/fabfab/contextsync/embeddings"
	"github.com/fabfab/contextsync/index"
	"github.com/fabfab/contextsync/ingestion"
	"github.com/fabfab/contextsync/knowledge"
	"github.com/fabfab/contextsync/llm"
	"github.com/fabfab/contextsync/rag"
	"github.com/fabfab/contextsync/sources"
	"github.com/fabfab/contextsync/syncer"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	cfg := config.Load()

	switch cmd {
	case "serve":
		serveCmd(cfg, logger)
	case "sync":
		syncCmd(cfg, logger)
	case "explain":
		explainCmd(cfg, logger, args)
	case "clear":
		clearCmd(cfg, logger, args)
	default:
		logger.Printf("unknown command: %s", cmd)
		printUsage()
		os.Exit(1)
	}
}

// engine bundles the wired-up services plus the handles that need closing.
type engine struct {
	store     *index.Store
	graph     *knowledge.Graph
	rag       *rag.Service
	ingest    *ingestion.Service
	scheduler *syncer.Scheduler

	pool   *pgxpool.Pool
	driver neo4j.DriverWithContext
}

// buildEngine constructs every component explicitly. Backing resources that
// fail to come up leave their component degraded rather than aborting: the
// process serves placeholder results and logs the condition once.
func buildEngine(ctx context.Context, cfg config.Config, logger *log.Logger) *engine {
	e := &engine{}

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Printf("postgres unavailable, index store will be degraded: %v", err)
	} else {
		e.pool = pool
	}

	if cfg.Neo4jURI != "" {
		driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
		if err != nil {
			logger.Printf("neo4j unavailable, related-file lookups disabled: %v", err)
		} else {
			e.driver = driver
		}
	}
	e.graph = knowledge.NewGraph(e.driver)

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Printf("embedder unavailable: %v", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Printf("llm unavailable: %v", err)
	}

	e.store = index.New(ctx, e.pool, embedder, cfg.Embeddings.Dimension, logger)
	e.ingest = ingestion.NewService(e.store, e.graph, logger)
	e.rag = rag.NewService(e.store, llmClient, e.graph, logger)

	slack := sources.NewSlackClient(cfg.SlackBotToken, logger)
	jira := sources.NewJiraClient(cfg.JiraDomain, cfg.JiraEmail, cfg.JiraAPIToken, logger)

	e.scheduler = syncer.New(slack, jira, e.ingest, syncer.Config{
		ChannelID: cfg.SlackChannelID,
		JQL:       cfg.JiraJQL,
		BatchSize: cfg.SyncBatchSize,
		Interval:  cfg.SyncInterval,
	}, logger)

	return e
}

func (e *engine) close(ctx context.Context) {
	if e.pool != nil {
		e.pool.Close()
	}
	if e.driver != nil {
		_ = e.driver.Close(ctx)
	}
}

func serveCmd(cfg config.Config, logger *log.Logger) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	e := buildEngine(ctx, cfg, logger)
	defer e.close(context.Background())

	e.scheduler.Start(ctx)

	srv := api.NewServer(e.rag, e.scheduler, logger)
	go func() {
		if err := srv.Start(cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Printf("HTTP server error: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")

	e.scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown error: %v", err)
	}

	logger.Printf("stopped")
}

func syncCmd(cfg config.Config, logger *log.Logger) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	e := buildEngine(ctx, cfg, logger)
	defer e.close(ctx)

	report := e.scheduler.SyncNow(ctx)
	out, _ := json.Marshal(report)
	fmt.Println(string(out))
}

func explainCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("explain", flag.ExitOnError)
	filePath := flags.String("file", "", "path of the file the snippet comes from")
	lineNumbers := flags.String("lines", "", "line range of the snippet, e.g. 10-25")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse explain flags: %v", err)
	}

	snippet, err := io.ReadAll(os.Stdin)
	if err != nil {
		logger.Fatalf("read snippet from stdin: %v", err)
	}
	if strings.TrimSpace(string(snippet)) == "" {
		logger.Fatalf("no code snippet on stdin")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	e := buildEngine(ctx, cfg, logger)
	defer e.close(ctx)

	markdown, err := e.rag.Explain(ctx, string(snippet), *filePath, *lineNumbers)
	if err != nil {
		logger.Fatalf("explain failed: %v", err)
	}
	fmt.Println(markdown)
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	if !*confirmed {
		fmt.Print("This will permanently delete the indexed context data. Continue? [y/N]: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logger.Fatalf("read confirmation: %v", err)
			}
			logger.Println("clear aborted")
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			logger.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	e := buildEngine(ctx, cfg, logger)
	defer e.close(ctx)

	if err := e.store.Clear(ctx); err != nil {
		logger.Fatalf("clear index: %v", err)
	}
	logger.Println("cleared context_chunks")

	if err := e.graph.Purge(ctx); err != nil {
		logger.Fatalf("clear mention graph: %v", err)
	}
	logger.Println("mention graph cleared")
}

func printUsage() {
	fmt.Println("Usage: contextsync <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  serve    Run the HTTP API and the background sync loop (default)")
	fmt.Println("  sync     Run one sync cycle and print the report")
	fmt.Println("  explain  Explain a code snippet read from stdin (--file, --lines)")
	fmt.Println("  clear    Remove indexed context data")
}
