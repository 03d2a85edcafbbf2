package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloudsmiths/idman/pkg/config"
	"github.com/cloudsmiths/idman/pkg/crypto"
	"github.com/cloudsmiths/idman/pkg/directory"
	"github.com/cloudsmiths/idman/pkg/errdefs"
	"github.com/cloudsmiths/idman/pkg/events"
	"github.com/cloudsmiths/idman/pkg/log"
	"github.com/cloudsmiths/idman/pkg/storage"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if e, ok := errdefs.AsError(err); ok {
			fmt.Fprintf(os.Stderr, "Suggestion: %s\n", e.Suggestion())
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "idman",
	Short: "idman - Cloud identity administration",
	Long: `idman administers a cloud identity directory: bulk permission
assignments, declarative access templates, backup and restore of the
directory state, retention enforcement, and portable exports.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"idman version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to the configuration file")
	rootCmd.PersistentFlags().String("profile", "", "Configuration profile to use")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().Bool("progress", false, "Stream operation events to stderr")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log-level")
		jsonOutput, _ := cmd.Flags().GetBool("log-json")
		log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOutput})
	}

	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(retentionCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(orphanCmd)
}

// app holds the wired dependencies shared by all commands
type app struct {
	profileName  string
	profile      *config.Profile
	store        *storage.BoltStore
	client       directory.Client
	broker       *events.Broker
	progress     events.Subscriber
	progressDone chan struct{}
}

// newApp loads configuration and opens the local store. The directory
// client is only built when withClient is set so offline commands (list,
// show, export) work without credentials.
func newApp(cmd *cobra.Command, withClient bool) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	profileFlag, _ := cmd.Flags().GetString("profile")
	if configPath == "" {
		configPath = config.DefaultPath()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	name, profile, err := cfg.Resolve(profileFlag)
	if err != nil {
		return nil, err
	}

	dataDir := profile.StoragePath
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".idman", name)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	var encryptor *crypto.Encryptor
	if profile.EncryptionKeyID != "" {
		password := os.Getenv("IDMAN_ENCRYPTION_PASSWORD")
		if password == "" {
			return nil, errdefs.New(errdefs.KindConfiguration, errdefs.CodeCorruptConfig,
				"profile requires encryption but IDMAN_ENCRYPTION_PASSWORD is not set")
		}
		encryptor, err = crypto.NewEncryptorFromPassword(password, profile.EncryptionKeyID)
		if err != nil {
			return nil, err
		}
	}

	store, err := storage.NewBoltStore(dataDir, encryptor)
	if err != nil {
		return nil, err
	}

	a := &app{
		profileName: name,
		profile:     profile,
		store:       store,
		broker:      events.NewBroker(),
	}
	a.broker.Start()

	if showProgress, _ := cmd.Flags().GetBool("progress"); showProgress {
		a.progress = a.broker.Subscribe()
		a.progressDone = make(chan struct{})
		go func() {
			defer close(a.progressDone)
			for e := range a.progress {
				line := e.Message
				if line == "" {
					line = string(e.Type)
				}
				fmt.Fprintf(os.Stderr, "  · %s\n", line)
			}
		}()
	}

	if withClient {
		client, err := directory.NewAWSClient(cmd.Context(),
			profile.Region, profile.InstanceARN, profile.IdentityStoreID)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.client = client
	}
	return a, nil
}

func (a *app) Close() {
	if a.progress != nil {
		a.broker.Unsubscribe(a.progress)
		<-a.progressDone
	}
	a.broker.Stop()
	a.store.Close()
}

// confirm prompts on stdin and reports whether the user answered yes
func confirm(prompt string) (bool, error) {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}
