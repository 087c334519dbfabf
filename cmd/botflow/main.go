// Botflow CLI — управление ботами, триггерами, сценариями и диалогами
// через HTTP API, а также локальная проверка и прогон сценариев.
//
// Использование:
//
//	botflow [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	bot           Управление ботами
//	trigger       Управление триггерами
//	scenario      Версии сценариев, validate, simulate
//	conversation  Диалоги, состояние, включение бота
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Botflow/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "botflow",
		Short:         "Botflow CLI — bot conversation engine tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("BOTFLOW_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewBotCmd(clientFn, outputFn),
		cli.NewTriggerCmd(clientFn, outputFn),
		cli.NewScenarioCmd(clientFn, outputFn),
		cli.NewConversationCmd(clientFn, outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
