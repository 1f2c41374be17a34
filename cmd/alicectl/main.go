package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"alice/internal/datetime"
	"alice/internal/domain"
	"alice/internal/timezone"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "alicectl",
		Short:        "Inspect Alice skill requests and date/time entities",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(decodeCmd())
	return rootCmd
}

type refFlags struct {
	now string
	tz  string
}

func (f *refFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.now, "now", "", "reference instant, RFC3339 (default: current time)")
	cmd.Flags().StringVar(&f.tz, "tz", "", "IANA timezone to view the reference instant in")
}

func (f *refFlags) reference() (time.Time, error) {
	now := time.Now()
	if f.now != "" {
		parsed, err := time.Parse(time.RFC3339, f.now)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse --now: %w", err)
		}
		now = parsed
	}
	if f.tz != "" {
		loc, err := timezone.Parse(f.tz)
		if err != nil {
			return time.Time{}, err
		}
		now = now.In(loc)
	}
	return now, nil
}

func resolveCmd() *cobra.Command {
	var ref refFlags
	var entityType string

	cmd := &cobra.Command{
		Use:   "resolve [entity value json]",
		Short: "Resolve a YANDEX.DATETIME value against a reference instant",
		Example: `  alicectl resolve --now 2010-03-01T00:00:00Z '{"year": 1, "year_is_relative": true}'
  echo '{"day": 3, "day_is_relative": true}' | alicectl resolve`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := argOrStdin(cmd, args)
			if err != nil {
				return err
			}
			now, err := ref.reference()
			if err != nil {
				return err
			}

			entity := domain.NewEntity(entityType, json.RawMessage(raw))
			got, err := entity.DateTime(now)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), got.Format(time.RFC3339))
			return nil
		},
	}
	ref.register(cmd)
	cmd.Flags().StringVar(&entityType, "type", datetime.EntityType, "entity type tag")
	return cmd
}

type entitySummary struct {
	Index    int    `json:"index"`
	Slot     string `json:"slot,omitempty"`
	Type     string `json:"type"`
	Start    uint16 `json:"start"`
	End      uint16 `json:"end"`
	HasDate  bool   `json:"has_date"`
	HasTime  bool   `json:"has_time"`
	Resolved string `json:"resolved,omitempty"`
	Error    string `json:"error,omitempty"`
}

type requestSummary struct {
	Command     string          `json:"command"`
	RequestType string          `json:"request_type"`
	KnownType   bool            `json:"known_type"`
	Timezone    string          `json:"timezone"`
	NewSession  bool            `json:"new_session"`
	Intents     []string        `json:"intents,omitempty"`
	Entities    []entitySummary `json:"entities"`
}

func decodeCmd() *cobra.Command {
	var ref refFlags

	cmd := &cobra.Command{
		Use:   "decode [request.json]",
		Short: "Decode a webhook request and summarize its entities",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body []byte
			var err error
			if len(args) == 1 && args[0] != "-" {
				body, err = os.ReadFile(args[0])
			} else {
				body, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}

			var in domain.RawIncomingMessage
			if err := json.Unmarshal(body, &in); err != nil {
				return fmt.Errorf("decode request: %w", err)
			}

			now, err := ref.reference()
			if err != nil {
				return err
			}
			if ref.tz == "" && in.Meta.Timezone != "" {
				if loc, tzErr := timezone.Parse(in.Meta.Timezone); tzErr == nil {
					now = now.In(loc)
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summarize(&in, now))
		},
	}
	ref.register(cmd)
	return cmd
}

func summarize(in *domain.RawIncomingMessage, now time.Time) requestSummary {
	out := requestSummary{
		Command:     in.Request.Command,
		RequestType: string(in.Request.Type),
		KnownType:   in.Request.Type.IsKnown(),
		Timezone:    in.Meta.Timezone,
		NewSession:  in.Session.New,
		Entities:    []entitySummary{},
	}
	for i := range in.Request.Nlu.Entities {
		out.Entities = append(out.Entities, summarizeEntity(i, "", &in.Request.Nlu.Entities[i], now))
	}
	for id, intent := range in.Request.Nlu.Intents {
		out.Intents = append(out.Intents, id)
		for name, slot := range intent.Slots {
			if slot == nil {
				continue
			}
			out.Entities = append(out.Entities, summarizeEntity(-1, id+"."+name, slot, now))
		}
	}
	return out
}

func summarizeEntity(index int, slot string, e *domain.Entity, now time.Time) entitySummary {
	s := entitySummary{
		Index:   index,
		Slot:    slot,
		Type:    e.Type,
		Start:   e.Tokens.Start,
		End:     e.Tokens.End,
		HasDate: e.HasDate(),
		HasTime: e.HasTime(),
	}
	if !e.IsDateTime() {
		return s
	}
	got, err := e.DateTime(now)
	if err != nil {
		s.Error = err.Error()
		return s
	}
	s.Resolved = got.Format(time.RFC3339)
	return s
}

func argOrStdin(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	body, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}
