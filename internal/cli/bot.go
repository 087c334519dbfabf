package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewBotCmd создаёт группу команд для управления ботами и их триггерами.
func NewBotCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Manage bots",
	}

	cmd.AddCommand(
		newBotListCmd(clientFn, outputFn),
		newBotCreateCmd(clientFn, outputFn),
		newBotShowCmd(clientFn, outputFn),
		newBotUpdateCmd(clientFn, outputFn),
		newBotDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

var botHeaders = []string{"ID", "NAME", "CHANNEL", "ACTIVE", "DEFAULT_RESPONSE"}

func botRow(b BotResponse) []string {
	return []string{b.ID, b.Name, b.ChannelNumberID, strconv.FormatBool(b.IsActive), truncate(b.DefaultResponse, 40)}
}

func newBotListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var businessID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bots",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			bots, err := client.ListBots(businessID)
			if err != nil {
				return err
			}

			rows := make([][]string, len(bots))
			for i, b := range bots {
				rows[i] = botRow(b)
			}

			out.Print(botHeaders, rows, bots)
			return nil
		},
	}

	cmd.Flags().StringVar(&businessID, "business", "", "Filter by business ID")

	return cmd
}

func newBotCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateBotRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			bot, err := client.CreateBot(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Bot created: %s", bot.ID))
			out.Print(botHeaders, [][]string{botRow(*bot)}, bot)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.BusinessID, "business", "", "Business ID (required)")
	cmd.Flags().StringVar(&req.ChannelNumberID, "channel", "", "Channel phone number ID (required)")
	cmd.Flags().StringVar(&req.Name, "name", "", "Bot name (required)")
	cmd.Flags().StringVar(&req.DefaultResponse, "default-response", "", "Reply when nothing else matches")
	cmd.Flags().BoolVar(&req.IsActive, "active", false, "Activate the bot right away")
	cmd.MarkFlagRequired("business")
	cmd.MarkFlagRequired("channel")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newBotShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show bot details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			bot, err := client.GetBot(args[0])
			if err != nil {
				return err
			}

			out.Print(botHeaders, [][]string{botRow(*bot)}, bot)
			return nil
		},
	}
}

func newBotUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name, channel, defaultResponse, active string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateBotRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("channel") {
				req.ChannelNumberID = &channel
			}
			if cmd.Flags().Changed("default-response") {
				req.DefaultResponse = &defaultResponse
			}
			if cmd.Flags().Changed("active") {
				b, err := strconv.ParseBool(active)
				if err != nil {
					return fmt.Errorf("invalid value for --active: %s", active)
				}
				req.IsActive = &b
			}

			bot, err := client.UpdateBot(args[0], req)
			if err != nil {
				return err
			}

			out.Success("Bot updated")
			out.Print(botHeaders, [][]string{botRow(*bot)}, bot)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New bot name")
	cmd.Flags().StringVar(&channel, "channel", "", "New channel phone number ID")
	cmd.Flags().StringVar(&defaultResponse, "default-response", "", "New default response (empty disables it)")
	cmd.Flags().StringVar(&active, "active", "", "Set active status (true/false)")

	return cmd
}

func newBotDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a bot with its triggers and scenarios",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteBot(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Bot deleted: %s", args[0]))
			return nil
		},
	}
}

// NewTriggerCmd создаёт группу команд для управления триггерами.
func NewTriggerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Manage keyword triggers",
	}

	cmd.AddCommand(
		newTriggerListCmd(clientFn, outputFn),
		newTriggerCreateCmd(clientFn, outputFn),
		newTriggerUpdateCmd(clientFn, outputFn),
		newTriggerDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

var triggerHeaders = []string{"ID", "PRIORITY", "KEYWORDS", "ACTIVE", "RESPONSE"}

func triggerRow(t TriggerResponse) []string {
	return []string{
		t.ID,
		strconv.Itoa(t.Priority),
		strings.Join(t.Keywords, ","),
		strconv.FormatBool(t.IsActive),
		truncate(t.Response, 40),
	}
}

func newTriggerListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list BOT_ID",
		Short: "List bot triggers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			triggers, err := client.ListTriggers(args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(triggers))
			for i, t := range triggers {
				rows[i] = triggerRow(t)
			}

			out.Print(triggerHeaders, rows, triggers)
			return nil
		},
	}
}

func newTriggerCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req TriggerRequest

	cmd := &cobra.Command{
		Use:   "create BOT_ID",
		Short: "Create a trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			t, err := client.CreateTrigger(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Trigger created: %s", t.ID))
			out.Print(triggerHeaders, [][]string{triggerRow(*t)}, t)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&req.Keywords, "keyword", nil, "Keyword (repeatable or comma-separated, required)")
	cmd.Flags().StringVar(&req.Response, "response", "", "Reply text (required)")
	cmd.Flags().IntVar(&req.Priority, "priority", 0, "Lower value is checked first")
	cmd.MarkFlagRequired("keyword")
	cmd.MarkFlagRequired("response")

	return cmd
}

func newTriggerUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var keywords []string
	var response, active string
	var priority int

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateTriggerRequest{}
			if cmd.Flags().Changed("keyword") {
				req.Keywords = keywords
			}
			if cmd.Flags().Changed("response") {
				req.Response = &response
			}
			if cmd.Flags().Changed("priority") {
				req.Priority = &priority
			}
			if cmd.Flags().Changed("active") {
				b, err := strconv.ParseBool(active)
				if err != nil {
					return fmt.Errorf("invalid value for --active: %s", active)
				}
				req.IsActive = &b
			}

			t, err := client.UpdateTrigger(args[0], req)
			if err != nil {
				return err
			}

			out.Success("Trigger updated")
			out.Print(triggerHeaders, [][]string{triggerRow(*t)}, t)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&keywords, "keyword", nil, "Replace keywords")
	cmd.Flags().StringVar(&response, "response", "", "New reply text")
	cmd.Flags().IntVar(&priority, "priority", 0, "New priority")
	cmd.Flags().StringVar(&active, "active", "", "Set active status (true/false)")

	return cmd
}

func newTriggerDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteTrigger(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Trigger deleted: %s", args[0]))
			return nil
		},
	}
}

// truncate обрезает текст для таблицы.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
