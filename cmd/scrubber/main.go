package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/arclight-io/scrubber/internal/config"
	"github.com/arclight-io/scrubber/internal/engine"
	"github.com/arclight-io/scrubber/internal/infrastructure"
	"github.com/arclight-io/scrubber/internal/ledger"
	"github.com/arclight-io/scrubber/internal/messages"
	"github.com/arclight-io/scrubber/internal/pipeline"
	"github.com/arclight-io/scrubber/internal/tokens"
)

func main() {
	var (
		configPath     = flag.String("config", "", "Path to TOML config file (default config.toml if present)")
		mode           = flag.String("mode", "redact", "Run mode: redact (batch pipeline), obfuscate, or deobfuscate (single message from the store or stdin)")
		user           = flag.String("user", "", "User id for obfuscate/deobfuscate modes")
		conversation   = flag.String("conversation", "", "Conversation id for obfuscate/deobfuscate modes")
		messageID      = flag.String("message", "", "Message id to load from the store for obfuscate/deobfuscate modes (reads stdin when empty)")
		tier           = flag.String("tier", "", "Detection service tier: S, S0, or F0 (bounds concurrent batches)")
		batchSize      = flag.Int("batch-size", 0, "Documents per detection call (max 5)")
		language       = flag.String("language", "", "Language code for detection (default en)")
		cloudMode      = flag.Bool("cloud-mode", false, "Store redacted messages in the document store instead of a local file")
		redactedOutput = flag.String("redacted-output", "", "Local JSON path for redacted messages")
		failedOutput   = flag.String("failed-output", "", "Local CSV path for failed-message metadata")
		endpoint       = flag.String("language-endpoint", "", "Override the Azure AI Language endpoint")
		key            = flag.String("language-key", "", "Override the Azure AI Language key")
		verbose        = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("config load failed: ", err)
	}
	cfg.Finalize()

	// Flags merge after Finalize so they win over environment variables.
	overlay := &config.Config{}
	overlay.Pipeline.Tier = *tier
	overlay.Pipeline.BatchSize = *batchSize
	overlay.Pipeline.Language = *language
	overlay.Pipeline.CloudMode = *cloudMode
	overlay.Pipeline.RedactedOutput = *redactedOutput
	overlay.Pipeline.FailedOutput = *failedOutput
	overlay.Detection.Endpoint = *endpoint
	overlay.Detection.Key = *key
	cfg.Merge(overlay)

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	infra, err := infrastructure.New(cfg, *verbose)
	if err != nil {
		log.Fatal("startup failed: ", err)
	}
	defer infra.Run.Close()

	if *mode != "redact" {
		if err := runMessage(cfg, infra, *mode, *user, *conversation, *messageID); err != nil {
			infra.Logger.Error("run failed", "error", err)
			infra.Run.Close()
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, infra); err != nil {
		infra.Logger.Error("run failed", "error", err)
		fmt.Fprintln(os.Stderr, "Run failed. Check the logs above and re-run to resume processing.")
		infra.Run.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, infra *infrastructure.Infrastructure) error {
	if err := infra.Open(); err != nil {
		return err
	}

	conn := infra.Database.Connection()
	p := pipeline.New(
		cfg,
		messages.New(conn, infra.Logger),
		ledger.New(conn, infra.Logger),
		infra.Detector,
		infra.Artifacts,
		infra.Logger,
	)

	summary, err := p.Run(infra.Run.Context())
	if err != nil {
		return err
	}

	infra.Logger.Info(
		"run complete",
		"run_id", summary.RunID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"progress", summary.Progress.String(),
	)
	return nil
}

// runMessage tokenizes or restores a single message, scoped to one
// (user, conversation) partition, and writes the result to stdout. The
// message content comes from the store when -message is given, otherwise
// from stdin.
func runMessage(cfg *config.Config, infra *infrastructure.Infrastructure, mode, user, conversation, messageID string) error {
	if mode != "obfuscate" && mode != "deobfuscate" {
		return fmt.Errorf("unknown mode %q: must be redact, obfuscate, or deobfuscate", mode)
	}
	if conversation == "" {
		return fmt.Errorf("%s mode requires -conversation", mode)
	}
	if messageID == "" && user == "" {
		return fmt.Errorf("%s mode requires -user when reading from stdin", mode)
	}

	if err := infra.Open(); err != nil {
		return err
	}
	ctx := infra.Run.Context()
	conn := infra.Database.Connection()

	var content string
	if messageID != "" {
		msg, err := messages.New(conn, infra.Logger).Get(ctx, conversation, messageID)
		if err != nil {
			return err
		}
		content = msg.Content
		if user == "" {
			user = msg.UserID
		}
	} else {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read message from stdin: %w", err)
		}
		content = string(raw)
	}

	store := tokens.New(conn, infra.Logger)
	e := engine.New(infra.Detector, store, cfg.Pipeline.Language, infra.Logger)

	var (
		result string
		err    error
	)
	if mode == "obfuscate" {
		result, err = e.Obfuscate(ctx, content, user, conversation)
	} else {
		result, err = e.Deobfuscate(ctx, content, user, conversation)
	}
	if err != nil {
		return err
	}

	fmt.Println(result)
	return nil
}
