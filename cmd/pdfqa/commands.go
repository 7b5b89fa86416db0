package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"pdfqa/internal/chunker"
	"pdfqa/internal/config"
	"pdfqa/internal/document"
	"pdfqa/internal/embedding"
	"pdfqa/internal/llm"
	"pdfqa/internal/logging"
	"pdfqa/internal/service"
	"pdfqa/internal/tui"
)

type app struct {
	configPath string
	cfg        *config.AppConfig
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "pdfqa",
		Short:         "Ask questions about a PDF or text document",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to YAML config (default ./config.yaml or ~/.config/pdfqa/config.yaml)")
	root.AddCommand(a.askCmd(), a.chatCmd(), a.chunksCmd(), a.configCmd())
	return root
}

func (a *app) loadConfig() error {
	var err error
	if a.configPath == "" {
		a.cfg, _, err = config.LoadDefault()
	} else {
		a.cfg, err = config.Load(a.configPath)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return nil
}

func (a *app) askCmd() *cobra.Command {
	var showSources bool
	cmd := &cobra.Command{
		Use:   "ask FILE QUESTION...",
		Short: "Answer a single question about FILE",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(a.cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			svc, err := a.newService(logger)
			if err != nil {
				return err
			}
			sess, err := svc.Ingest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := sess.Ask(cmd.Context(), strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Answer)
			if showSources {
				for i, s := range res.Sources {
					fmt.Fprintf(out, "\n[%d] chunk #%d  distance=%.4f\n%s\n", i+1, s.Index, s.Distance, s.Text)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSources, "sources", false, "print the retrieved chunks after the answer")
	return cmd
}

func (a *app) chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat FILE",
		Short: "Open an interactive question session for FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logCfg := a.cfg.Log
			if logCfg.File == "" {
				logCfg.File = filepath.Join(os.TempDir(), "pdfqa.log")
			}
			logger, err := logging.New(logCfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			svc, err := a.newService(logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Indexing %s...\n", args[0])
			sess, err := svc.Ingest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			m := tui.New(cmd.Context(), sess, args[0], sess.Summary(), questionTimeout(a.cfg), logger.With(zap.String("session", sess.ID())))
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
}

func (a *app) chunksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chunks FILE",
		Short: "Print the word windows FILE is split into",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := document.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ch, err := chunker.NewWordChunker(a.cfg.Chunker.ChunkSize, a.cfg.Chunker.Overlap)
			if err != nil {
				return err
			}
			chunks, err := ch.Chunk(doc)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range chunks {
				words := strings.Fields(c.Text)
				fmt.Fprintf(out, "--- chunk %d (%d words): %s ... %s\n", c.Index, len(words), words[0], words[len(words)-1])
			}
			fmt.Fprintf(out, "%d chunks, size=%d overlap=%d\n", len(chunks), a.cfg.Chunker.ChunkSize, a.cfg.Chunker.Overlap)
			return nil
		},
	}
}

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func (a *app) newService(logger *zap.Logger) (*service.RAGService, error) {
	emb, err := embedding.New(a.cfg.Embedder)
	if err != nil {
		return nil, err
	}
	chat, err := llm.NewClient(llm.ClientConfig{
		BaseURL:   a.cfg.Answerer.BaseURL,
		APIKeyEnv: a.cfg.Answerer.APIKeyEnv,
		Timeout:   time.Duration(a.cfg.Answerer.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("chat client init failed: %w", err)
	}
	logger.Debug("pipeline ready",
		zap.String("embedder", emb.Name()),
		zap.String("chat_model", a.cfg.Answerer.ChatModel),
	)
	return service.New(a.cfg, emb, chat, logger)
}

// questionTimeout bounds one TUI question including retries.
func questionTimeout(cfg *config.AppConfig) time.Duration {
	if cfg.Answerer.TimeoutSecs <= 0 {
		return 0
	}
	return time.Duration(cfg.Answerer.TimeoutSecs*cfg.Retry.MaxAttempts) * time.Second
}
