package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"chat-widget/db"
	"chat-widget/llm"
	"chat-widget/storage"
	"chat-widget/ui"
	"chat-widget/utils"
	"chat-widget/widget"
)

var (
	version = "0.1.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to chatbot-config.json")
	showVersion := flag.Bool("version", false, "Show version information")
	debug := flag.Bool("debug", false, "Log request and stream details")
	storeKey := flag.Bool("store-key", false, "Read an API key from stdin and save it in the OS keyring")
	forgetKey := flag.Bool("forget-key", false, "Remove the API key from the OS keyring")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Chat Widget v%s\n", version)
		os.Exit(0)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.GetLogPath())
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	logger.SetDebug(*debug)

	logger.Info("Starting Chat Widget v%s", version)

	// Load or create default configuration
	actualConfigPath := *configPath
	if actualConfigPath == "" {
		actualConfigPath, err = utils.EnsureDefaultConfig()
		if err != nil {
			logger.Error("Failed to create default config: %v", err)
			os.Exit(1)
		}
	}
	logger.Info("Using config file: %s", actualConfigPath)

	config, err := utils.LoadConfig(actualConfigPath)
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	credentials := utils.NewCredentialSource(config.KeyringService, logger)

	if *storeKey || *forgetKey {
		if err := manageKey(credentials, *storeKey); err != nil {
			logger.Error("%v", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	settings, err := utils.LoadSettings(actualConfigPath, credentials, logger)
	if err != nil {
		logger.Error("Failed to load settings: %v", err)
		os.Exit(1)
	}

	// The database only backs durable storage
	var database *db.DB
	if settings.StorageMode == utils.StorageDurable {
		database, err = db.New(settings.DataPath)
		if err != nil {
			logger.Error("Failed to initialize database: %v", err)
			os.Exit(1)
		}
		defer database.Close()
		logger.Info("Database initialized: %s", settings.DataPath)

		// Streaming rewrites the stored conversation once per delta
		defer func() {
			if err := database.Vacuum(); err != nil {
				logger.Warn("%v", err)
			}
		}()
	}

	backend, err := storage.BackendFor(settings.StorageMode, database)
	if err != nil {
		logger.Error("Failed to initialize storage: %v", err)
		os.Exit(1)
	}
	store := storage.NewStore(settings.StorageMode, backend, logger)

	provider, err := llm.NewOpenAIProvider(llm.Config{
		APIKey:   settings.APIKey,
		Endpoint: settings.Endpoint,
		Model:    settings.Model,
		Timeout:  settings.Timeout,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize provider: %v", err)
		os.Exit(1)
	}
	logger.Info("%s provider ready (model %s, stream %t, storage %s)", provider.Name(), settings.Model, settings.Stream, settings.StorageMode)

	controller := widget.NewController(settings, provider, store, logger)

	// Create and run application
	app := ui.NewApp(settings, controller, logger)
	defer app.Cleanup()

	logger.Info("Application started")
	app.Run()
	logger.Info("Application stopped")
}

// manageKey stores a key read from stdin, or removes the stored one
func manageKey(credentials *utils.CredentialSource, store bool) error {
	if !store {
		if err := credentials.DeleteAPIKey(); err != nil {
			return fmt.Errorf("failed to remove API key: %w", err)
		}
		fmt.Println("API key removed from keyring")
		return nil
	}

	fmt.Print("API key: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("failed to read API key: %w", err)
	}
	if err := credentials.StoreAPIKey(strings.TrimSpace(line)); err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}
	fmt.Println("API key saved to keyring")
	return nil
}
