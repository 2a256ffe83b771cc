package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"document-qa/internal/helper"
	"document-qa/internal/models"
	"document-qa/internal/rag"
	"document-qa/internal/vectorstore"
)

var (
	queryTopK    int
	queryModel   string
	querySources bool
	queryJSON    bool
	chatModel    string
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the configured providers offer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		names, err := a.llm.Models(cmd.Context())
		if err != nil {
			return err
		}
		if len(names) == 0 {
			return models.NewConfigError("generation.model", "no models available")
		}
		for _, name := range names {
			marker := " "
			if name == a.cfg.Generation.Model {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
		}
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <dir>",
	Short: "Index every PDF, Markdown and text file under a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, err := a.rag.Index(ctx, args[0])
		if report != nil {
			printReport(cmd.OutOrStdout(), report)
		}
		return err
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a question from the uploaded documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		if queryModel != "" {
			if err := a.llm.ValidateModel(cmd.Context(), queryModel); err != nil {
				return err
			}
		}
		answer, err := a.rag.Query(cmd.Context(), models.Query{
			Text:        strings.Join(args, " "),
			TopK:        queryTopK,
			Model:       queryModel,
			WithSources: querySources || queryJSON,
		})
		if err != nil {
			return err
		}
		if queryJSON {
			helper.PrettyPrint(cmd.OutOrStdout(), answer)
			return nil
		}
		printAnswer(cmd.OutOrStdout(), answer)
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Talk to the model without consulting the documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}

		if chatModel != "" {
			if err := a.llm.ValidateModel(cmd.Context(), chatModel); err != nil {
				return err
			}
		}
		answer, err := a.rag.Chat(cmd.Context(), chatModel, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every indexed document from the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.rag.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Store cleared")
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the chromem store to a snapshot file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSnapshot(cmd, args, func(ctx context.Context, snap vectorstore.Snapshotter, path string) error {
			return snap.Export(ctx, path)
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Replace the chromem store with a snapshot file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSnapshot(cmd, args, func(ctx context.Context, snap vectorstore.Snapshotter, path string) error {
			return snap.Import(ctx, path)
		})
	},
}

func withSnapshot(cmd *cobra.Command, args []string, fn func(context.Context, vectorstore.Snapshotter, string) error) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := vectorstore.AsSnapshotter(a.store)
	if err != nil {
		return err
	}
	var path string
	if len(args) == 1 {
		path = args[0]
	}
	if err := fn(cmd.Context(), snap, path); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Done")
	return nil
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	queryCmd.Flags().StringVarP(&queryModel, "model", "m", "", "generation model, optionally prefixed with openai/ or claude/")
	queryCmd.Flags().BoolVar(&querySources, "sources", false, "print the chunks the answer is based on")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the answer as JSON")
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "generation model")

	rootCmd.AddCommand(modelsCmd, uploadCmd, queryCmd, chatCmd, clearCmd, exportCmd, importCmd, shellCmd)
}

func printReport(w io.Writer, report *rag.IndexReport) {
	fmt.Fprintf(w, "Documents: %d/%d\n", report.Indexed, report.Files)
	fmt.Fprintf(w, "Chunks: %d\n", report.Chunks)
	if report.Duration > 0 {
		fmt.Fprintf(w, "Duration: %s\n", report.Duration.Round(time.Millisecond))
	}
	if len(report.Failed) > 0 {
		fmt.Fprintln(w, "Failed documents:")
		for _, failed := range report.Failed {
			fmt.Fprintf(w, "  - %s: %s\n", failed.Path, failed.Reason)
		}
	}
}

func printAnswer(w io.Writer, answer *models.Answer) {
	fmt.Fprintln(w, answer.Text)
	if answer.Dropped > 0 {
		fmt.Fprintf(w, "\n(%d context chunk(s) left out to fit the prompt limit)\n", answer.Dropped)
	}
	if len(answer.Sources) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for i, src := range answer.Sources {
		fmt.Fprintf(w, "  [%d] %s (chunk %d, distance %.4f)\n", i+1, src.Path, src.ChunkIndex, src.Distance)
	}
}

// userMessage turns an error into the message shown to the user.
func userMessage(err error) string {
	var (
		embedErr *models.EmbeddingServiceError
		genErr   *models.GenerationServiceError
		cfgErr   *models.ConfigurationError
	)
	switch {
	case errors.Is(err, models.ErrBusy):
		return "System is busy processing documents. Please wait."
	case errors.Is(err, models.ErrEmptyStore):
		return "No documents have been uploaded yet."
	case errors.As(err, &embedErr):
		return "Embedding service unavailable: " + embedErr.Err.Error()
	case errors.As(err, &genErr):
		return "Generation failed: " + genErr.Err.Error()
	case errors.As(err, &cfgErr):
		return "Configuration error: " + cfgErr.Error()
	}
	return "Error: " + err.Error()
}
