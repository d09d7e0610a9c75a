package cmd

import (
	"bufio"
	"fmt"
	"io"

	"github.com/atikulmunna/logbook/internal/output"
	"github.com/atikulmunna/logbook/internal/query"
	"github.com/atikulmunna/logbook/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Record sample entries and query them interactively",
	Long: `Record one sample message for each of api1..api9, then read a level and a
source (output file path) from standard input and print the matching entries.

Example:
  printf 'info\ndefault.log\n' | logbook demo`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

var sampleMessages = []struct{ api, message string }{
	{"api1", "Inside the Search API from API1"},
	{"api2", "Query executed successfully from API2"},
	{"api3", "Database connection failed from API3"},
	{"api4", "Invalid request received from API4"},
	{"api5", "Data processing completed from API5"},
	{"api6", "User logged in successfully from API6"},
	{"api7", "File uploaded successfully from API7"},
	{"api8", "Payment processed successfully from API8"},
	{"api9", "Email sent successfully from API9"},
}

func runDemo(cmd *cobra.Command, _ []string) error {
	store := storage.Open(viper.GetString("properties"), storage.WithLogger(newLogger(cmd).With("command", "demo")))
	q := query.New(store)

	for _, s := range sampleMessages {
		q.Log(s.api, s.message)
	}

	renderer := output.New(viper.GetString("output"), cmd.OutOrStdout())
	return demo(q, renderer, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// demo prompts for a level and a source and renders the entries matching both.
func demo(q *query.Interface, renderer output.Renderer, in io.Reader, out, errOut io.Writer) error {
	scanner := bufio.NewScanner(in)

	level, err := prompt(scanner, out, "Enter the level")
	if err != nil {
		return err
	}
	source, err := prompt(scanner, out, "Enter the source")
	if err != nil {
		return err
	}

	logs := q.QueryLogs(&level, nil, nil, &source)
	if len(logs) == 0 {
		fmt.Fprintln(errOut, "API log Data not found")
		return nil
	}
	for _, l := range logs {
		if err := renderer.Render(l); err != nil {
			return fmt.Errorf("render: %w", err)
		}
	}
	return nil
}

func prompt(scanner *bufio.Scanner, out io.Writer, label string) (string, error) {
	fmt.Fprintln(out, label)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read %s: %w", label, err)
		}
		return "", fmt.Errorf("read %s: unexpected end of input", label)
	}
	return scanner.Text(), nil
}
