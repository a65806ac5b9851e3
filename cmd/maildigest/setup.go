package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/maildigest/internal/config"
	"github.com/jackzampolin/maildigest/internal/home"
)

var setupForce bool

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive first-run configuration",
	Long: `Create the maildigest home directory and write an initial config file.

Prompts for a profile name, the digest categories, and how the API key
should be supplied. Values left blank keep their defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		if h.ConfigExists() && !setupForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", h.ConfigPath())
		}

		cfg := config.DefaultConfig()
		reader := bufio.NewReader(os.Stdin)

		fmt.Printf("maildigest setup — writing %s\n\n", h.ConfigPath())

		if v := prompt(reader, "Your name (stamped into report headers)", ""); v != "" {
			cfg.Profile.Name = v
		}
		if v := prompt(reader, "Your email", ""); v != "" {
			cfg.Profile.Email = v
		}
		if v := prompt(reader, "Categories (comma-separated)", strings.Join(cfg.Categories, ",")); v != "" {
			cfg.Categories = splitList(v)
		}
		if v := prompt(reader, "Model", cfg.Provider.Model); v != "" {
			cfg.Provider.Model = v
		}
		if v := prompt(reader, "API key (blank keeps ${OPENAI_API_KEY})", ""); v != "" {
			cfg.Provider.APIKey = v
		}

		if err := config.Write(cfg, h.ConfigPath()); err != nil {
			return err
		}

		fmt.Printf("\nWrote %s\n", h.ConfigPath())
		fmt.Printf("Drop mail exports under %s/<category>/ and run 'maildigest run'.\n", h.MailPath())
		return nil
	},
}

func init() {
	setupCmd.Flags().BoolVar(&setupForce, "force", false, "overwrite an existing config file")
}

func prompt(r *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, err := r.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
