package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"github.com/vango-dev/replay/pkg/contract"
	"github.com/vango-dev/replay/pkg/dom"
	"github.com/vango-dev/replay/pkg/fragment"
	"github.com/vango-dev/replay/pkg/jsaction"
)

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Report embedded replay state in server-rendered HTML",
		Long: `Inspect parses a server-rendered HTML file and reports its replay
contract: applications with embedded state scripts, deferred fragments,
and the elements carrying delegation markers.

Examples:
  replay inspect page.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(args[0])
		},
	}
}

func runInspect(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	fmt.Printf("%s\n\n", path)

	inspectApplications(doc)
	inspectFragments(doc)
	inspectDelegatedElements(doc)
	return nil
}

// inspectApplications reports each embedded replay-state script.
func inspectApplications(doc *goquery.Document) {
	scripts := doc.Find(fmt.Sprintf("script[type=%q]", contract.ScriptType))

	fmt.Printf("Applications (%d):\n", scripts.Length())
	if scripts.Length() == 0 {
		info("none")
		fmt.Println()
		return
	}

	scripts.Each(func(_ int, sel *goquery.Selection) {
		appID := sel.AttrOr(contract.ScriptAppAttr, "(unnamed)")
		bundle, err := contract.DecodeBundle(sel.Text())
		if err != nil {
			warn("%s: undecodable state script: %v", appID, err)
			return
		}

		container := bundle.Descriptor.Container
		if container == "" {
			container = "(document root)"
		}
		info("%s", appID)
		info("  container:      %s", container)
		info("  event types:    %s", joinOrDash(bundle.Descriptor.EventTypes))
		info("  capture types:  %s", joinOrDash(bundle.Descriptor.CaptureEventTypes))
		info("  early events:   %d", len(bundle.Early))
	})
	fmt.Println()
}

// inspectFragments reports the deferred fragments named by fragment markers.
func inspectFragments(doc *goquery.Document) {
	type fragmentInfo struct {
		tag string
		hid string
	}
	fragments := make(map[string][]fragmentInfo)

	doc.Find("[" + jsaction.FragmentAttribute + "]").Each(func(_ int, sel *goquery.Selection) {
		id := sel.AttrOr(jsaction.FragmentAttribute, "")
		if !fragment.IsDeferred(id) {
			return
		}
		for _, n := range sel.Nodes {
			fragments[id] = append(fragments[id], fragmentInfo{
				tag: n.Data,
				hid: dom.AttrOr(n, dom.HIDAttr, "-"),
			})
		}
	})

	ids := make([]string, 0, len(fragments))
	for id := range fragments {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Printf("Deferred fragments (%d):\n", len(ids))
	if len(ids) == 0 {
		info("none")
		fmt.Println()
		return
	}
	for _, id := range ids {
		for _, fi := range fragments[id] {
			info("%-8s <%s data-hid=%q>", id, fi.tag, fi.hid)
		}
	}
	fmt.Println()
}

// inspectDelegatedElements tallies delegation markers by event type.
func inspectDelegatedElements(doc *goquery.Document) {
	byType := make(map[string]int)
	elements := 0
	triggers := 0

	doc.Find("[" + jsaction.Attribute + "]").Each(func(_ int, sel *goquery.Selection) {
		elements++
		marker := sel.AttrOr(jsaction.Attribute, "")
		for _, t := range jsaction.ParseMarker(marker) {
			byType[t]++
			if fragment.IsTrigger(t) {
				triggers++
			}
		}
	})

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	fmt.Printf("Delegated elements (%d):\n", elements)
	if elements == 0 {
		info("none")
		return
	}
	for _, t := range types {
		label := t
		if fragment.IsTrigger(t) {
			label += " (hydration trigger)"
		}
		info("%-32s %d", label, byType[t])
	}
	info("%-32s %d", "trigger entries total", triggers)
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
