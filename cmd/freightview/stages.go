package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Mr-Dark-debug/freightview/internal/api"
	"github.com/Mr-Dark-debug/freightview/internal/promotions"
)

// manifest is the file read by `stages apply`.
type manifest struct {
	Freight []api.Freight `json:"freight"`
	Stages  []api.Stage   `json:"stages"`
}

// decodeManifest accepts a manifest object, a single stage, or a stage list.
func decodeManifest(r io.Reader) (manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return manifest{}, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return manifest{}, fmt.Errorf("empty manifest")
	}

	var m manifest
	if data[0] == '[' {
		if err := json.Unmarshal(data, &m.Stages); err != nil {
			return manifest{}, fmt.Errorf("decode stage list: %w", err)
		}
		return m, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	_, hasStages := probe["stages"]
	_, hasFreight := probe["freight"]
	if hasStages || hasFreight {
		if err := json.Unmarshal(data, &m); err != nil {
			return manifest{}, fmt.Errorf("decode manifest: %w", err)
		}
		return m, nil
	}

	var stage api.Stage
	if err := json.Unmarshal(data, &stage); err != nil {
		return manifest{}, fmt.Errorf("decode stage: %w", err)
	}
	m.Stages = []api.Stage{stage}
	return m, nil
}

func newStagesCommand(opt *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "Apply and list stages",
	}
	cmd.AddCommand(newStagesApplyCommand(opt), newStagesListCommand(opt))
	return cmd
}

func newStagesApplyCommand(opt *options) *cobra.Command {
	var projectFlag, file string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or update stages and freight from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := opt.project(projectFlag)
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open manifest: %w", err)
				}
				defer f.Close()
				in = f
			}
			m, err := decodeManifest(in)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			c := opt.client()
			for _, f := range m.Freight {
				if _, err := c.PutFreight(ctx, project, f); err != nil {
					return fmt.Errorf("apply freight %s: %w", f.ID, err)
				}
				fmt.Fprintf(opt.out, "freight/%s applied\n", f.ID)
			}
			for _, s := range m.Stages {
				if s.Metadata.Name == "" {
					return fmt.Errorf("stage without metadata.name")
				}
				if _, err := c.PutStage(ctx, project, s); err != nil {
					return fmt.Errorf("apply stage %s: %w", s.Metadata.Name, err)
				}
				fmt.Fprintf(opt.out, "stage/%s applied\n", s.Metadata.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&projectFlag, "project", "p", "", "target project (default ui.project)")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "manifest file, - for stdin")
	return cmd
}

func newStagesListCommand(opt *options) *cobra.Command {
	var projectFlag, output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the stages of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := opt.project(projectFlag)
			if err != nil {
				return err
			}
			stages, err := opt.client().ListStages(cmd.Context(), project)
			if err != nil {
				return err
			}
			if output == "json" {
				return opt.printJSON(stages)
			}

			rows := make([][]string, 0, len(stages))
			for _, s := range stages {
				current := "-"
				if f := s.Status.CurrentFreight; f != nil {
					current = promotions.ShortFreight(f.ID)
				}
				rows = append(rows, []string{s.Metadata.Name, current, strconv.Itoa(len(s.Status.History))})
			}
			fmt.Fprintln(opt.out, renderTable([]string{"NAME", "CURRENT FREIGHT", "HISTORY"}, rows))
			return nil
		},
	}
	cmd.Flags().StringVarP(&projectFlag, "project", "p", "", "project (default ui.project)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: json")
	return cmd
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().PaddingRight(2)
		}).
		String()
}
