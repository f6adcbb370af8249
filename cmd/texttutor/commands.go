package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/texttutor/internal/api"
	"github.com/kalambet/texttutor/internal/config"
	"github.com/kalambet/texttutor/internal/conversation"
	"github.com/kalambet/texttutor/internal/pipeline"
)

// --- session ---

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Start or end a session on the running server",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a session and make it the current one",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/sessions", nil)
		if err != nil {
			return err
		}
		var s api.SessionResponse
		if err := decodeJSON(resp, &s); err != nil {
			return err
		}
		if err := saveCurrentSession(s.ID); err != nil {
			printWarning("could not save current session: %v", err)
		}
		fmt.Println(s.ID)
		printSuccess("Session started")
		return nil
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end",
	Short: "End a session and discard its documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := sessionID(cmd)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/sessions/"+id)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		if cur, _ := loadCurrentSession(); cur == id {
			clearCurrentSession()
		}
		printSuccess("Session %s ended", id)
		return nil
	},
}

func init() {
	sessionEndCmd.Flags().String("session", "", "session id (default: current session)")
	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionEndCmd)
}

func currentSessionPath() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg.Storage.DataDir, "current_session"), nil
}

func saveCurrentSession(id string) error {
	path, err := currentSessionPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(id), 0o600)
}

func loadCurrentSession() (string, error) {
	path, err := currentSessionPath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func clearCurrentSession() {
	if path, err := currentSessionPath(); err == nil {
		os.Remove(path)
	}
}

// sessionID returns --session or the saved current session.
func sessionID(cmd *cobra.Command) (string, error) {
	if id, _ := cmd.Flags().GetString("session"); id != "" {
		return id, nil
	}
	id, err := loadCurrentSession()
	if errors.Is(err, fs.ErrNotExist) || (err == nil && id == "") {
		return "", fmt.Errorf("no current session: run 'texttutor session start' or pass --session")
	}
	return id, err
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Add a document to a session on the running server",
	Long: `Add a document to a session on the running server.

Examples:
  texttutor ingest --pdf ./chapter1.pdf
  texttutor ingest --text "The French Revolution began in 1789."`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		pdfPath, _ := cmd.Flags().GetString("pdf")
		if text == "" && pdfPath == "" {
			return fmt.Errorf("one of --text or --pdf is required")
		}

		id, err := sessionID(cmd)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var res pipeline.IngestResult
		path := "/sessions/" + id + "/documents"
		if pdfPath != "" {
			data, err := os.ReadFile(pdfPath)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			resp, err := client.upload(cmd.Context(), path, "file", filepath.Base(pdfPath), data)
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, &res); err != nil {
				return err
			}
		} else {
			resp, err := client.post(cmd.Context(), path, api.IngestRequest{Text: text})
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, &res); err != nil {
				return err
			}
		}

		printSuccess("Ingested %s (%d chunks)", res.Source, res.Chunks)
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("text", "", "text to ingest")
	ingestCmd.Flags().String("pdf", "", "PDF file to ingest")
	ingestCmd.Flags().String("session", "", "session id (default: current session)")
}

// --- question ---

var questionCmd = &cobra.Command{
	Use:   "question <question>",
	Short: "Ask a question in a session on the running server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := sessionID(cmd)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/sessions/"+id+"/questions", api.QuestionRequest{
			Question: strings.Join(args, " "),
		})
		if err != nil {
			return err
		}
		var ans api.QuestionResponse
		if err := decodeJSON(resp, &ans); err != nil {
			return err
		}
		writeAnswer(os.Stdout, ans.Answer, ans.Sources)
		if ans.Warning != "" {
			printWarning("%s", ans.Warning)
		}
		return nil
	},
}

func init() {
	questionCmd.Flags().String("session", "", "session id (default: current session)")
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded questions and answers, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		records, err := conversation.NewLog(cfg.ConversationsDir(), setupLogging(cfg)).List()
		if err != nil {
			return err
		}
		if limit > 0 && len(records) > limit {
			records = records[:limit]
		}
		return writeHistory(os.Stdout, records, asJSON)
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of records (0 for all)")
	historyCmd.Flags().Bool("json", false, "print records as JSON")
}

func writeHistory(w io.Writer, records []conversation.Record, asJSON bool) error {
	if asJSON {
		if records == nil {
			records = []conversation.Record{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "No conversations recorded.")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(w, "%s  %s\n", colorize(colorCyan, r.Timestamp), colorize(colorBold, r.Question))
		answer := r.Answer
		if runes := []rune(answer); len(runes) > 300 {
			answer = string(runes[:300]) + "..."
		}
		fmt.Fprintf(w, "  %s\n", answer)
		if len(r.Sources) > 0 {
			fmt.Fprintf(w, "  sources: %s\n", strings.Join(r.Sources, ", "))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "($"+k.EnvVar+")"))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
