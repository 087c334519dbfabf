package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

// NewConversationCmd создаёт группу команд для диалогов.
func NewConversationCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversation",
		Aliases: []string{"conv"},
		Short:   "Inspect conversations and hand them over",
	}

	cmd.AddCommand(
		newConversationListCmd(clientFn, outputFn),
		newConversationShowCmd(clientFn, outputFn),
		newConversationStateCmd(clientFn, outputFn),
		newConversationBotCmd(clientFn, outputFn),
		newConversationMessagesCmd(clientFn, outputFn),
		newConversationSendCmd(clientFn, outputFn),
	)

	return cmd
}

var conversationHeaders = []string{"ID", "CUSTOMER", "CHANNEL", "BOT", "STATUS", "LAST_MESSAGE"}

func conversationRow(c ConversationResponse) []string {
	customer := c.CustomerPhone
	if c.CustomerName != "" {
		customer = c.CustomerName + " " + c.CustomerPhone
	}
	bot := "off"
	if c.IsBotActive {
		bot = "on"
	}
	return []string{c.ID, customer, c.ChannelNumberID, bot, c.Status, c.LastMessageAt}
}

func newConversationListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var businessID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent conversations of a business",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			convs, err := client.ListConversations(businessID, limit)
			if err != nil {
				return err
			}

			rows := make([][]string, len(convs))
			for i, c := range convs {
				rows[i] = conversationRow(c)
			}

			out.Print(conversationHeaders, rows, convs)
			return nil
		},
	}

	cmd.Flags().StringVar(&businessID, "business", "", "Business ID (required)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of conversations")
	cmd.MarkFlagRequired("business")

	return cmd
}

func newConversationShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show conversation details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			conv, err := client.GetConversation(args[0])
			if err != nil {
				return err
			}

			out.Print(conversationHeaders, [][]string{conversationRow(*conv)}, conv)
			return nil
		},
	}
}

func newConversationStateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "state ID",
		Short: "Show where the conversation is in its flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			st, err := client.GetState(args[0])
			if err != nil {
				return err
			}

			if out.IsJSON() {
				out.JSON(st)
				return nil
			}

			out.Table([]string{"NODE", "STARTED", "ENDED", "VERSION", "UPDATED"}, [][]string{{
				st.CurrentNodeID,
				strconv.FormatBool(st.Started),
				strconv.FormatBool(st.Ended),
				strconv.FormatInt(st.Version, 10),
				st.UpdatedAt,
			}})

			if len(st.Variables) > 0 {
				keys := make([]string, 0, len(st.Variables))
				for k := range st.Variables {
					keys = append(keys, k)
				}
				sort.Strings(keys)

				rows := make([][]string, len(keys))
				for i, k := range keys {
					rows[i] = []string{k, st.Variables[k]}
				}
				fmt.Fprintln(out.Writer())
				out.Table([]string{"VARIABLE", "VALUE"}, rows)
			}
			return nil
		},
	}
}

func newConversationBotCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "bot ID on|off",
		Short: "Switch the bot on or off for a conversation",
		Long: `Switch the bot on or off for a conversation.

"off" hands the conversation to an operator. "on" gives it back to the bot;
if its flow had finished, the flow starts over on the next message.`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var active bool
			switch args[1] {
			case "on":
				active = true
			case "off":
				active = false
			default:
				return fmt.Errorf("invalid value %q: want on or off", args[1])
			}

			conv, err := client.SetBot(args[0], active)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Bot %s for conversation %s", args[1], conv.ID))
			return nil
		},
	}
}

func newConversationMessagesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "messages ID",
		Short: "Show the message log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			msgs, err := client.ListMessages(args[0], limit)
			if err != nil {
				return err
			}

			rows := make([][]string, len(msgs))
			for i, m := range msgs {
				from := "customer"
				if m.Direction == "outbound" {
					from = "operator"
					if m.SentByBot {
						from = "bot"
					}
				}
				status := m.Status
				if m.ErrorMessage != "" {
					status += ": " + truncate(m.ErrorMessage, 30)
				}
				rows[i] = []string{m.CreatedAt, from, truncate(m.Content, 60), status}
			}

			out.Print([]string{"TIME", "FROM", "CONTENT", "STATUS"}, rows, msgs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of messages")

	return cmd
}

func newConversationSendCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "send ID TEXT",
		Short: "Send an inbound message as the customer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			res, err := client.SendMessage(args[0], args[1])
			if err != nil {
				return err
			}

			if out.IsJSON() {
				out.JSON(res)
				return nil
			}
			switch {
			case res.Duplicate:
				out.Success("Message already received")
			case res.Queued:
				out.Success(fmt.Sprintf("Message queued: %s", res.MessageID))
			default:
				out.Success(fmt.Sprintf("Message stored, waiting for polling: %s", res.MessageID))
			}
			return nil
		},
	}
}
