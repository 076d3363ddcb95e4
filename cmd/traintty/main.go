package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"traintty/internal/api"
	"traintty/internal/career"
	"traintty/internal/chat"
	appI18n "traintty/internal/i18n"
	"traintty/internal/llm"
	"traintty/internal/model"
	"traintty/internal/session"
	"traintty/internal/store"
	"traintty/internal/tui"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "traintty",
		Short: "Terminal client for the TrainPI learning platform",
	}

	chatCommand := chatCmd()
	root.AddCommand(chatCommand, uploadCmd(), careerCmd(), masteryCmd(), progressCmd(),
		loginCmd(), logoutCmd(), whoamiCmd(), clearCmd(), exportCmd())

	// Make "chat" the default when no subcommand is given.
	root.RunE = chatCommand.RunE

	// Register chat flags on root so bare `traintty --direct ...` still works.
	root.Flags().AddFlagSet(chatCommand.Flags())

	return root
}

func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", defaultDBPath(), "SQLite database path")
	f.String("base-url", "", "Learning backend base URL (empty = production)")
	f.StringP("lang", "l", "en", "UI language (en, ru)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func addAuthFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("auth-url", "", "Identity provider base URL")
	f.String("auth-key", "", "Identity provider API key")
}

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive learning chat",
		RunE:  runChat,
	}
	addCommonFlags(cmd)
	addAuthFlags(cmd)
	f := cmd.Flags()
	f.StringP("experience", "e", "intermediate", "Experience level (beginner, intermediate, expert)")
	f.StringP("framework", "f", "", "Framework focus for generated content")
	f.Bool("direct", false, "Talk to an OpenAI-compatible endpoint instead of the backend")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL (direct mode)")
	f.String("llm-key", "ollama", "API key for direct mode")
	f.String("llm-model", "llama3.2", "Model name for direct mode")
	return cmd
}

func uploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload and distill a document into the conversation",
		Args:  cobra.ExactArgs(1),
		RunE:  runUpload,
	}
	addCommonFlags(cmd)
	addAuthFlags(cmd)
	cmd.Flags().StringP("experience", "e", "intermediate", "Experience level (beginner, intermediate, expert)")
	return cmd
}

func careerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "career",
		Short: "Run the career discovery assessment",
		RunE:  runCareer,
	}
	addCommonFlags(cmd)
	addAuthFlags(cmd)

	roadmap := &cobra.Command{
		Use:   "roadmap <target role>",
		Short: "Generate a learning roadmap toward a role",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRoadmap,
	}
	addCommonFlags(roadmap)
	addAuthFlags(roadmap)
	cmd.AddCommand(roadmap)
	return cmd
}

func masteryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mastery",
		Short: "Show your mastery snapshot",
		RunE:  runMastery,
	}
	addCommonFlags(cmd)
	addAuthFlags(cmd)
	cmd.Flags().StringP("topic", "t", "", "Limit the snapshot to one topic")
	return cmd
}

func progressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show your dashboard progress",
		RunE:  runProgress,
	}
	addCommonFlags(cmd)
	addAuthFlags(cmd)
	return cmd
}

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in with a magic link",
		Args:  cobra.ExactArgs(1),
		RunE:  runLogin,
	}
	addCommonFlags(cmd)
	addAuthFlags(cmd)
	cmd.Flags().Duration("timeout", 5*time.Minute, "How long to wait for the link to be clicked")
	return cmd
}

func logoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the local session",
		RunE:  runLogout,
	}
	addCommonFlags(cmd)
	return cmd
}

func whoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE:  runWhoami,
	}
	addCommonFlags(cmd)
	return cmd
}

func clearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the conversation and forget the document",
		RunE:  runClear,
	}
	addCommonFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the conversation transcript as JSON",
		RunE:  runExport,
	}
	addCommonFlags(cmd)
	cmd.Flags().StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("TRAINTTY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("traintty")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/traintty")
	v.AddConfigPath("/etc/traintty")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func defaultDBPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "traintty", "traintty.db")
	}
	return "traintty.db"
}

func openStore(v *viper.Viper) (*store.Store, error) {
	path := v.GetString("db")
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	return store.New(path)
}

func newSession(v *viper.Viper, st *store.Store) *session.Manager {
	provider := session.NewHTTPProvider(v.GetString("auth-url"), v.GetString("auth-key"))
	return session.New(provider, st, slog.Default())
}

func runChat(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	st, err := openStore(v)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	sess := newSession(v, st)
	apiClient := api.New(v.GetString("base-url"), slog.Default())

	cfg := model.ChatConfig{
		BaseURL:          v.GetString("base-url"),
		ExplanationLevel: model.LevelForExperience(v.GetString("experience")),
		Framework:        v.GetString("framework"),
		Direct:           v.GetBool("direct"),
		Lang:             lang,
	}

	var llmClient *llm.Client
	if cfg.Direct {
		llmClient = llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"))
		slog.Info("direct mode", "llm_url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	}

	orch, err := chat.New(apiClient, llmClient, st, sess, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("restore conversation: %w", err)
	}

	ctx := appI18n.WithLocalizer(context.Background(), appI18n.NewLocalizer(lang))
	program := tea.NewProgram(tui.New(ctx, orch), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func runUpload(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	st, err := openStore(v)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	sess := newSession(v, st)
	cfg := model.ChatConfig{
		ExplanationLevel: model.LevelForExperience(v.GetString("experience")),
	}
	orch, err := chat.New(api.New(v.GetString("base-url"), slog.Default()), nil, st, sess, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("restore conversation: %w", err)
	}

	msg, err := orch.UploadDocument(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Println(msg.Content)
	fmt.Printf("\nlesson_id: %s\nconversation_id: %s\n", orch.LessonID(), orch.ConversationID())
	return nil
}

func runCareer(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	st, err := openStore(v)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()
	sess := newSession(v, st)

	fmt.Println("Answer these questions to discover careers that match your interests and work style.")
	fmt.Println()

	stepper := career.NewStepper()
	scanner := bufio.NewScanner(os.Stdin)
	for {
		q := stepper.Current()
		fmt.Printf("[%d/%d] %s\n", stepper.Step()+1, stepper.Total(), q.Text)
		for i, label := range career.LikertLabels {
			fmt.Printf("  %d. %s\n", i+1, label)
		}
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		rating, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
		if err != nil || stepper.Rate(rating) != nil {
			fmt.Println("Please enter a number from 1 to 5.")
			continue
		}
		done, err := stepper.Next()
		if err != nil {
			return err
		}
		fmt.Println()
		if done {
			break
		}
	}

	fmt.Println("Analyzing your responses...")
	matches, err := career.Match(cmd.Context(), api.New(v.GetString("base-url"), slog.Default()), stepper, sess.UserID())
	if err != nil {
		return fmt.Errorf("career matching: %w", err)
	}
	fmt.Println(career.FormatMatches(matches))
	return nil
}

func runRoadmap(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	st, err := openStore(v)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()
	sess := newSession(v, st)

	role := strings.Join(args, " ")
	roadmap, err := career.Roadmap(cmd.Context(), api.New(v.GetString("base-url"), slog.Default()), role, sess.UserID())
	if err != nil {
		return fmt.Errorf("generating roadmap: %w", err)
	}
	fmt.Println(career.FormatRoadmap(roadmap))
	return nil
}

func runMastery(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	st, err := openStore(v)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()
	sess := newSession(v, st)

	snap, err := api.New(v.GetString("base-url"), slog.Default()).
		Mastery(cmd.Context(), sess.UserID(), v.GetString("topic"))
	if err != nil {
		return fmt.Errorf("fetching mastery: %w", err)
	}
	fmt.Println(chat.FormatMastery(snap))
	return nil
}

func runProgress(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	st, err := openStore(v)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()
	sess := newSession(v, st)

	progress, err := api.New(v.GetString("base-url"), slog.Default()).
		UserProgress(cmd.Context(), sess.UserID())
	if err != nil {
		return fmt.Errorf("fetching progress: %w", err)
	}
	data, err := json.MarshalIndent(progress, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	st, err := openStore(v)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()
	sess := newSession(v, st)

	ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))
	defer cancel()

	fmt.Printf("Sending a magic link to %s. Click it to finish signing in.\n", args[0])
	user, err := sess.SignInWithMagicLink(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s (%s)\n", user.Email, user.ID)
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	st, err := openStore(v)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	for _, key := range []string{store.KeyAuthToken, store.KeyUserID, store.KeyUserEmail} {
		if err := st.DeleteSetting(key); err != nil {
			return fmt.Errorf("clearing %s: %w", key, err)
		}
	}
	fmt.Println("Signed out.")
	return nil
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	st, err := openStore(v)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	email, err := st.GetSetting(store.KeyUserEmail)
	if err != nil {
		return err
	}
	userID, err := st.GetSetting(store.KeyUserID)
	if err != nil {
		return err
	}
	if userID == "" {
		fmt.Println("Not signed in.")
		return nil
	}
	fmt.Printf("%s (%s)\n", email, userID)
	return nil
}

func runClear(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	st, err := openStore(v)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	if err := st.ClearConversation(); err != nil {
		return fmt.Errorf("clear conversation: %w", err)
	}
	fmt.Println("Conversation cleared.")
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	st, err := openStore(v)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	export, err := st.ExportTranscript()
	if err != nil {
		return fmt.Errorf("export transcript: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	return nil
}
