package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Botflow/internal/engine"
	"github.com/shaiso/Botflow/internal/state"
	"github.com/shaiso/Botflow/internal/telemetry"
)

// NewScenarioCmd создаёт группу команд для сценариев ботов.
func NewScenarioCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Manage and test bot scenarios",
	}

	cmd.AddCommand(
		newScenarioListCmd(clientFn, outputFn),
		newScenarioPublishCmd(clientFn, outputFn),
		newScenarioActiveCmd(clientFn, outputFn),
		newScenarioActivateCmd(clientFn, outputFn),
		newScenarioValidateCmd(clientFn, outputFn),
		newScenarioSimulateCmd(outputFn),
	)

	return cmd
}

var scenarioHeaders = []string{"ID", "VERSION", "NAME", "ACTIVE", "CREATED"}

func scenarioRow(s ScenarioResponse) []string {
	return []string{s.ID, strconv.Itoa(s.Version), s.Name, strconv.FormatBool(s.IsActive), s.CreatedAt}
}

func newScenarioListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list BOT_ID",
		Short: "List scenario versions of a bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			versions, err := client.ListScenarios(args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(versions))
			for i, s := range versions {
				rows[i] = scenarioRow(s)
			}

			out.Print(scenarioHeaders, rows, versions)
			return nil
		},
	}
}

func newScenarioPublishCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var inactive bool

	cmd := &cobra.Command{
		Use:   "publish BOT_ID FILE",
		Short: "Publish a flow graph (YAML or JSON) as a new scenario version",
		Long: `Publish a flow graph as a new scenario version.

The graph is validated locally first, then by the server.
FILE may be "-" to read from stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			graph, err := ReadGraph(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := engine.Validate(graph); err != nil {
				return fmt.Errorf("graph is invalid:\n%w", err)
			}
			data, err := graphJSON(graph)
			if err != nil {
				return err
			}

			s, err := client.PublishScenario(args[0], name, data, !inactive)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Scenario published: version %d", s.Version))
			out.Print(scenarioHeaders, [][]string{scenarioRow(*s)}, s)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "main", "Scenario name")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Publish without activating")

	return cmd
}

func newScenarioActiveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "active BOT_ID",
		Short: "Show the active scenario version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			s, err := client.GetActiveScenario(args[0])
			if err != nil {
				return err
			}

			if out.IsJSON() {
				out.JSON(s)
				return nil
			}
			out.Table(scenarioHeaders, [][]string{scenarioRow(*s)})
			fmt.Fprintf(out.Writer(), "\n%s\n", s.Graph)
			return nil
		},
	}
}

func newScenarioActivateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "activate BOT_ID VERSION",
		Short: "Make a scenario version active (rollback)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			version, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid version: %s", args[1])
			}

			s, err := client.ActivateScenario(args[0], version)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Scenario version %d is active", s.Version))
			return nil
		},
	}
}

// errInvalidGraph возвращается validate, чтобы код выхода был ненулевым.
var errInvalidGraph = errors.New("flow graph is invalid")

func newScenarioValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a flow graph file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			graph, err := ReadGraph(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			var res ValidateResponse
			if remote {
				data, err := graphJSON(graph)
				if err != nil {
					return err
				}
				r, err := clientFn().ValidateScenario(data)
				if err != nil {
					return err
				}
				res = *r
			} else {
				res = localValidate(graph)
			}

			if out.IsJSON() {
				out.JSON(res)
			} else if res.Valid {
				out.Success(fmt.Sprintf("OK: %d nodes", res.Nodes))
			} else {
				rows := make([][]string, len(res.Errors))
				for i, e := range res.Errors {
					rows[i] = []string{e.NodeID, e.Field, e.Message}
				}
				out.Table([]string{"NODE", "FIELD", "ERROR"}, rows)
			}

			if !res.Valid {
				return errInvalidGraph
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Validate on the API server")

	return cmd
}

func localValidate(g *engine.Graph) ValidateResponse {
	res := ValidateResponse{Valid: true, Nodes: g.Len()}

	err := engine.Validate(g)
	if err == nil {
		return res
	}

	res.Valid = false
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}
	for _, e := range errs {
		var ve *engine.ValidationError
		if errors.As(e, &ve) {
			res.Errors = append(res.Errors, GraphError{NodeID: ve.NodeID, Field: ve.Field, Message: ve.Message})
			continue
		}
		res.Errors = append(res.Errors, GraphError{Message: e.Error()})
	}
	return res
}

func newScenarioSimulateCmd(outputFn func() *Output) *cobra.Command {
	var (
		triggers        []string
		defaultResponse string
		stateDB         string
		conversation    string
		maxSteps        int
		verbose         bool
	)

	cmd := &cobra.Command{
		Use:   "simulate FILE",
		Short: "Chat with a flow graph locally",
		Long: `Run a flow graph without a server. Each stdin line is an inbound
customer message; bot replies are printed as they are sent.

With --state-db the conversation state is kept in SQLite, so a later run
with the same --conversation continues where the previous one stopped.`,
		Example: `  botflow scenario simulate flow.yaml --trigger "price,cost=From $10" <<EOF
hello
Alice
EOF`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			graph, err := ReadGraph(args[0], nil)
			if err != nil {
				return err
			}

			cfg := SimulateConfig{
				Graph:           graph,
				DefaultResponse: defaultResponse,
				MaxSteps:        maxSteps,
			}
			for i, def := range triggers {
				t, err := ParseTrigger(def, i+1)
				if err != nil {
					return err
				}
				cfg.Triggers = append(cfg.Triggers, t)
			}
			if conversation != "" {
				id, err := uuid.Parse(conversation)
				if err != nil {
					return fmt.Errorf("invalid --conversation: %w", err)
				}
				cfg.ConversationID = id
			}
			if verbose {
				cfg.Logger = telemetry.NewLogger(cmd.ErrOrStderr(), "debug", "text")
			}
			if stateDB != "" {
				store, err := state.OpenSQLite(stateDB)
				if err != nil {
					return err
				}
				defer store.Close()
				cfg.Store = store
			}

			res, err := Simulate(cmd.Context(), cfg, cmd.InOrStdin(), out.Writer())
			if err != nil {
				return err
			}

			if out.IsJSON() {
				out.JSON(res)
				return nil
			}
			out.Success(fmt.Sprintf("conversation %s: %d messages, %d answered, node=%q ended=%t",
				res.ConversationID, res.Messages, res.Handled, res.State.CurrentNodeID, res.State.Ended))
			if len(res.State.Variables) > 0 {
				out.Success(fmt.Sprintf("variables: %v", res.State.Variables))
			}
			if len(res.Customer.Tags) > 0 {
				out.Success(fmt.Sprintf("tags: %v", res.Customer.Tags))
			}
			for _, d := range res.Deals {
				out.Success(fmt.Sprintf("deal: %s (%s)", d.Title, d.Stage))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&triggers, "trigger", nil, `Trigger "kw1,kw2=response"; earlier flags win`)
	cmd.Flags().StringVar(&defaultResponse, "default-response", "", "Reply when no trigger or flow step answers")
	cmd.Flags().StringVar(&stateDB, "state-db", "", "SQLite file for conversation state")
	cmd.Flags().StringVar(&conversation, "conversation", "", "Conversation ID to continue (with --state-db)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Node limit per message (default 50)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print engine logs to stderr")

	return cmd
}
