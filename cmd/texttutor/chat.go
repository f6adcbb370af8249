package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/texttutor/internal/conversation"
	"github.com/kalambet/texttutor/internal/document"
	"github.com/kalambet/texttutor/internal/pipeline"
	"github.com/kalambet/texttutor/internal/session"
)

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question answering in the terminal",
	Long: `Start a session, ingest the given documents and answer questions read
from stdin, one per line. Every answered question is recorded.

Commands inside the chat:
  /pdf PATH    ingest a PDF
  /text TEXT   ingest a block of text
  /quit        end the session

Examples:
  texttutor chat --pdf ./lecture.pdf
  texttutor chat --text "Mitochondria are the powerhouse of the cell."`,
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs, err := inputsFromFlags(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.sessions.CloseAll()
		return runChat(ctx, a, inputs, os.Stdin, os.Stdout)
	},
}

func init() {
	chatCmd.Flags().StringArray("pdf", nil, "PDF file to ingest (repeatable)")
	chatCmd.Flags().String("text", "", "text to ingest")
}

func runChat(ctx context.Context, a *app, inputs []pipeline.Input, in io.Reader, out io.Writer) error {
	sess, err := a.sessions.Start(ctx)
	if err != nil {
		return err
	}
	defer a.sessions.End(sess.ID)

	for _, input := range inputs {
		if err := ingestInput(ctx, a.pipeline, sess, input); err != nil {
			return err
		}
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	prompt := func() { fmt.Fprint(out, colorize(colorBold, "? ")) }

	prompt()
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit" || line == "/exit":
			return nil
		case strings.HasPrefix(line, "/pdf "):
			if input, err := readPDF(strings.TrimSpace(strings.TrimPrefix(line, "/pdf "))); err != nil {
				printError("%v", err)
			} else if err := ingestInput(ctx, a.pipeline, sess, input); err != nil {
				printError("%v", err)
			}
		case strings.HasPrefix(line, "/text "):
			if err := ingestInput(ctx, a.pipeline, sess, pipeline.TextInput(strings.TrimPrefix(line, "/text "))); err != nil {
				printError("%v", err)
			}
		default:
			ans, err := a.pipeline.Ask(ctx, sess, line)
			switch {
			case errors.Is(err, pipeline.ErrNoCorpus):
				printWarning("Ingest a document first (/pdf PATH or /text TEXT).")
			case errors.Is(err, conversation.ErrPersistence):
				writeAnswer(out, ans.Text, ans.Sources)
				printWarning("Answer not recorded: %v", err)
			case err != nil:
				printError("%v", err)
			default:
				writeAnswer(out, ans.Text, ans.Sources)
			}
		}
		prompt()
	}
	return scanner.Err()
}

func ingestInput(ctx context.Context, p *pipeline.Pipeline, sess *session.Session, input pipeline.Input) error {
	res, err := p.Ingest(ctx, sess, input)
	if err != nil {
		return err
	}
	if res.Chunks == 0 {
		printWarning("Nothing to ingest from %s", document.FormatSource(res.Source))
		return nil
	}
	printSuccess("Ingested %s (%d chunks)", document.FormatSource(res.Source), res.Chunks)
	return nil
}

func readPDF(path string) (pipeline.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Input{}, fmt.Errorf("reading file: %w", err)
	}
	return pipeline.PDFInput(filepath.Base(path), data), nil
}

// inputsFromFlags reads --pdf and --text.
func inputsFromFlags(cmd *cobra.Command) ([]pipeline.Input, error) {
	pdfs, _ := cmd.Flags().GetStringArray("pdf")
	text, _ := cmd.Flags().GetString("text")

	var inputs []pipeline.Input
	for _, path := range pdfs {
		input, err := readPDF(path)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, input)
	}
	if text != "" {
		inputs = append(inputs, pipeline.TextInput(text))
	}
	return inputs, nil
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ingest documents and answer a single question",
	Long: `Ingest the given documents into a fresh session and answer one question.

Examples:
  texttutor ask "What is the main argument?" --pdf ./essay.pdf
  texttutor ask "Who wrote it?" --text "Hamlet was written by Shakespeare."`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs, err := inputsFromFlags(cmd)
		if err != nil {
			return err
		}
		if len(inputs) == 0 {
			return fmt.Errorf("one of --pdf or --text is required")
		}
		ctx := cmd.Context()
		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.sessions.CloseAll()
		return runAsk(ctx, a, inputs, strings.Join(args, " "), os.Stdout)
	},
}

func init() {
	askCmd.Flags().StringArray("pdf", nil, "PDF file to ingest (repeatable)")
	askCmd.Flags().String("text", "", "text to ingest")
}

func runAsk(ctx context.Context, a *app, inputs []pipeline.Input, question string, out io.Writer) error {
	sess, err := a.sessions.Start(ctx)
	if err != nil {
		return err
	}
	defer a.sessions.End(sess.ID)

	for _, input := range inputs {
		if err := ingestInput(ctx, a.pipeline, sess, input); err != nil {
			return err
		}
	}

	ans, err := a.pipeline.Ask(ctx, sess, question)
	if err != nil && !errors.Is(err, conversation.ErrPersistence) {
		return err
	}
	writeAnswer(out, ans.Text, ans.Sources)
	return err
}
