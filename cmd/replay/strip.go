package main

import (
	"fmt"
	"os"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	"github.com/vango-dev/replay/pkg/contract"
	"github.com/vango-dev/replay/pkg/dom"
	"github.com/vango-dev/replay/pkg/jsaction"
)

func stripCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "strip FILE",
		Short: "Remove replay markers and state scripts from rendered HTML",
		Long: `Strip removes the replay markup contract from a server-rendered HTML
file: delegation markers (jsaction), fragment markers (ngb), and embedded
replay-state scripts. Use it on post-hydration snapshots, or to sanitize
SSR output when replay is disabled.

The rewritten document goes to stdout unless -o names a file.

Examples:
  replay strip page.html > clean.html
  replay strip page.html -o clean.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStrip(args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write result to file instead of stdout")

	return cmd
}

func runStrip(path, output string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := dom.ParseString(string(data))
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	markers, scripts := stripReplayMarkup(doc)

	rendered, err := dom.Render(doc)
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}

	if output == "" {
		fmt.Print(rendered)
		return nil
	}
	if err := os.WriteFile(output, []byte(rendered), 0o644); err != nil {
		return err
	}
	success("wrote %s (%d markers, %d state scripts removed)", output, markers, scripts)
	return nil
}

// stripReplayMarkup removes delegation and fragment markers and replay-state
// scripts from the document, returning how many of each were removed.
func stripReplayMarkup(doc *html.Node) (markers, scripts int) {
	gq := goquery.NewDocumentFromNode(doc)

	for _, n := range gq.Find("[" + jsaction.Attribute + "]").Nodes {
		dom.RemoveAttr(n, jsaction.Attribute)
		markers++
	}
	for _, n := range gq.Find("[" + jsaction.FragmentAttribute + "]").Nodes {
		dom.RemoveAttr(n, jsaction.FragmentAttribute)
		markers++
	}
	for _, n := range gq.Find(fmt.Sprintf("script[type=%q]", contract.ScriptType)).Nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
			scripts++
		}
	}
	return markers, scripts
}
