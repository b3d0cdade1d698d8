package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/physicalai/tbrag/internal/cache"
	"github.com/physicalai/tbrag/internal/config"
	"github.com/physicalai/tbrag/internal/profile"
	"github.com/physicalai/tbrag/internal/retrieval"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the textbook a question",
	Long: `Ask the textbook a question.

Examples:
  tbrag ask "How does a ROS 2 node publish to a topic?"
  tbrag ask --top-k 3 "What is a VLA model?"
  tbrag ask --selection "$(pbpaste)" "Explain this passage"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topK, _ := cmd.Flags().GetInt("top-k")
		selection, _ := cmd.Flags().GetString("selection")

		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}

		body := map[string]any{"question": strings.Join(args, " ")}
		if topK > 0 {
			body["top_k"] = topK
		}
		if selection != "" {
			body["selected_text"] = selection
		}

		resp, err := client.post(cmd.Context(), "/api/query", body)
		if err != nil {
			return err
		}
		var result retrieval.Response
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, result.Answer)
		if len(result.Sources) > 0 {
			fmt.Fprintf(out, "\n%s\n", colorize(colorBold, "Sources"))
			for _, s := range result.Sources {
				fmt.Fprintf(out, "  %s %s [score: %.3f]\n",
					colorize(colorCyan, s.SectionID), s.SectionTitle, s.RelevanceScore)
			}
		}
		fmt.Fprintf(stderr, "\n%s\n", colorize(colorCyan, fmt.Sprintf("answered in %d ms", result.QueryTimeMs)))
		return nil
	},
}

func init() {
	askCmd.Flags().Int("top-k", 0, "number of sources to retrieve (default 5)")
	askCmd.Flags().String("selection", "", "answer from this passage instead of searching")
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update your learner profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/profile")
		if err != nil {
			return err
		}
		var stored profile.Stored
		if err := decodeJSON(resp, &stored); err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stored)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Save your learner profile",
	Long: `Save your learner profile. Unset levels default to "none".

Examples:
  tbrag profile set --python intermediate --ros2 beginner --robotics simulation_only
  tbrag profile set --hardware gpu_nvidia,jetson_orin --goals "build a biped"
  tbrag profile set --file profile.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := profileFromFlags(cmd)
		if err != nil {
			return err
		}

		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/profile", p)
		if err != nil {
			return err
		}
		var result struct {
			Status      string `json:"status"`
			ProfileHash string `json:"profile_hash"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Profile saved (hash %s)", result.ProfileHash)
		return nil
	},
}

func profileFromFlags(cmd *cobra.Command) (profile.Profile, error) {
	var p profile.Profile
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return p, fmt.Errorf("reading profile file: %w", err)
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return p, fmt.Errorf("invalid profile JSON: %w", err)
		}
	}

	for flag, field := range map[string]*string{
		"python":     &p.SoftwareExperience.Python,
		"cpp":        &p.SoftwareExperience.Cpp,
		"ros2":       &p.SoftwareExperience.ROS2,
		"typescript": &p.SoftwareExperience.TypeScript,
		"robotics":   &p.RoboticsExperience,
	} {
		if cmd.Flags().Changed(flag) {
			*field, _ = cmd.Flags().GetString(flag)
		}
	}
	if cmd.Flags().Changed("hardware") {
		p.HardwareAccess = splitList(mustString(cmd, "hardware"))
	}
	if cmd.Flags().Changed("goals") {
		p.LearningGoals = splitList(mustString(cmd, "goals"))
	}
	return p, nil
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func init() {
	profileSetCmd.Flags().String("file", "", "read the profile from a JSON file")
	profileSetCmd.Flags().String("python", "", "Python level (none|beginner|intermediate|advanced)")
	profileSetCmd.Flags().String("cpp", "", "C++ level")
	profileSetCmd.Flags().String("ros2", "", "ROS 2 level")
	profileSetCmd.Flags().String("typescript", "", "TypeScript level")
	profileSetCmd.Flags().String("robotics", "", "robotics experience (none|simulation_only|real_hardware)")
	profileSetCmd.Flags().String("hardware", "", "comma-separated hardware you can access")
	profileSetCmd.Flags().String("goals", "", "comma-separated learning goals")
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
}

// --- personalize / translate ---

var personalizeCmd = &cobra.Command{
	Use:   "personalize <chapter>",
	Short: "Get a chapter rewritten for your profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chapterID, err := parseChapter(args[0])
		if err != nil {
			return err
		}
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/personalize", map[string]any{"chapter_id": chapterID})
		if err != nil {
			return err
		}
		var result cache.PersonalizeResult
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		reportGenerated(result.IsCached, result.GenerationTimeMs)
		return writeOutput(cmd, result.PersonalizedMarkdown)
	},
}

var translateCmd = &cobra.Command{
	Use:   "translate <chapter>",
	Short: "Get a chapter translated (ur, de, fr or en)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chapterID, err := parseChapter(args[0])
		if err != nil {
			return err
		}
		lang, _ := cmd.Flags().GetString("lang")

		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/translate", map[string]any{
			"chapter_id":  chapterID,
			"target_lang": lang,
		})
		if err != nil {
			return err
		}
		var result cache.TranslateResult
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		reportGenerated(result.IsCached, result.GenerationTimeMs)
		return writeOutput(cmd, result.TranslatedMarkdown)
	},
}

func init() {
	personalizeCmd.Flags().StringP("output", "o", "", "write markdown to this file instead of stdout")
	translateCmd.Flags().StringP("output", "o", "", "write markdown to this file instead of stdout")
	translateCmd.Flags().String("lang", "ur", "target language (ur|de|fr|en)")
}

func parseChapter(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid chapter %q: expected a chapter number", arg)
	}
	return id, nil
}

func reportGenerated(cached bool, ms int64) {
	if cached {
		printStep("Served from cache")
		return
	}
	printStep("Generated in %d ms", ms)
}

func writeOutput(cmd *cobra.Command, markdown string) error {
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), markdown)
		return nil
	}
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	printSuccess("Wrote %s", path)
	return nil
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server health and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/health")
		if err != nil {
			printStatus("Server", "stopped (%s)", client.baseURL)
		} else {
			var health struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			defer resp.Body.Close()
			if json.NewDecoder(resp.Body).Decode(&health) != nil {
				printStatus("Server", "error (HTTP %d)", resp.StatusCode)
			} else {
				printStatus("Server", "%s at %s", health.Status, client.baseURL)
				for _, name := range []string{"sqlite", "blob_store", "vector_index"} {
					if v, ok := health.Checks[name]; ok {
						printStatus("  "+name, "%s", v)
					}
				}
			}
		}

		cfg, err := config.Load()
		if err != nil {
			printWarning("config: %v", err)
			return nil
		}
		printStatus("Embedding", "%s/%s (dim %d)", cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.Dimension)
		printStatus("Generation", "%s/%s", cfg.Generation.Provider, cfg.Generation.Model)
		printStatus("Vector index", "%s (%s)", cfg.Vector.Backend, cfg.Vector.Collection)
		printStatus("Docs dir", "%s", cfg.Ingest.DocsDir)
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
		return nil
	},
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
			line := fmt.Sprintf("  %s = %s", colorize(colorBold, k.Key), k.Value)
			if k.FromEnv {
				line += colorize(colorYellow, fmt.Sprintf("  (from %s)", k.EnvVar))
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
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
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a value from the config file, restoring its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
