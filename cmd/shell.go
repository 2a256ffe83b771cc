package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"document-qa/internal/models"
	"document-qa/internal/rag"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session with /model, /mode, /upload and /sources commands",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		sh := newShell(a.rag, a.llm, a.cfg.Generation.Model, cmd.InOrStdin(), cmd.OutOrStdout())
		return sh.run(cmd.Context())
	},
}

type modelValidator interface {
	ValidateModel(ctx context.Context, model string) error
}

const (
	modeRAG  = "rag"
	modeChat = "chat"
)

const shellHelp = `Commands:
  /model <name>      switch the generation model
  /mode chat|rag     answer from the model alone or from the documents
  /upload <dir>      index a directory in the background
  /sources on|off    show the chunks behind each answer
  /quit              leave
Anything else is a question.`

type shell struct {
	rag     *rag.RAG
	models  modelValidator
	in      io.Reader
	out     io.Writer
	model   string
	mode    string
	sources bool

	mu sync.Mutex // guards out
	wg sync.WaitGroup
}

func newShell(r *rag.RAG, v modelValidator, model string, in io.Reader, out io.Writer) *shell {
	return &shell{rag: r, models: v, in: in, out: out, model: model, mode: modeRAG}
}

func (s *shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// run reads lines until EOF or /quit and waits for background uploads.
func (s *shell) run(ctx context.Context) error {
	defer s.wg.Wait()
	s.printf("%s\n", shellHelp)

	scanner := bufio.NewScanner(s.in)
	for {
		s.printf("%s> ", s.mode)
		if !scanner.Scan() {
			s.printf("\n")
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := s.command(ctx, line); quit {
				return nil
			}
			continue
		}
		s.ask(ctx, line)
	}
}

func (s *shell) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		s.printf("%s\n", shellHelp)
	case "/model":
		if arg == "" {
			s.printf("Current model: %s\n", s.model)
			return false
		}
		if err := s.models.ValidateModel(ctx, arg); err != nil {
			s.printf("%s\n", userMessage(err))
			return false
		}
		s.model = arg
		s.printf("Model set to %s\n", arg)
	case "/mode":
		switch arg {
		case modeChat, modeRAG:
			s.mode = arg
			s.printf("Mode set to %s\n", arg)
		default:
			s.printf("Usage: /mode chat|rag\n")
		}
	case "/sources":
		switch arg {
		case "on":
			s.sources = true
		case "off":
			s.sources = false
		default:
			s.printf("Usage: /sources on|off\n")
			return false
		}
		s.printf("Sources %s\n", arg)
	case "/upload":
		if arg == "" {
			s.printf("Usage: /upload <dir>\n")
			return false
		}
		if s.rag.Indexing() {
			s.printf("%s\n", userMessage(models.ErrBusy))
			return false
		}
		s.upload(ctx, arg)
	default:
		s.printf("Unknown command %s, try /help\n", name)
	}
	return false
}

func (s *shell) upload(ctx context.Context, dir string) {
	s.printf("Uploading %s in the background...\n", dir)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		report, err := s.rag.Index(ctx, dir)

		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			log.Error().Err(err).Str("root", dir).Msg("Upload failed")
			fmt.Fprintf(s.out, "\nUpload of %s failed: %s\n", dir, userMessage(err))
		} else {
			fmt.Fprintf(s.out, "\nUpload of %s finished\n", dir)
		}
		if report != nil {
			printReport(s.out, report)
		}
	}()
}

func (s *shell) ask(ctx context.Context, question string) {
	var (
		answer *models.Answer
		err    error
	)
	if s.mode == modeChat {
		answer, err = s.rag.Chat(ctx, s.model, question)
	} else {
		answer, err = s.rag.Query(ctx, models.Query{Text: question, Model: s.model, WithSources: s.sources})
	}
	if err != nil {
		s.printf("%s\n", userMessage(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	printAnswer(s.out, answer)
}

