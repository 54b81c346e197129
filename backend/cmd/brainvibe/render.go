package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"brainvibe/backend/internal/brain"
	"brainvibe/backend/internal/topic"
)

var (
	colorLearned    = lipgloss.Color("#22C55E")
	colorInProgress = lipgloss.Color("#EAB308")
	colorMuted      = lipgloss.Color("#6B7280")

	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(colorMuted)
)

func statusLabel(s topic.Status) string {
	switch s {
	case topic.Learned:
		return lipgloss.NewStyle().Foreground(colorLearned).Render("learned")
	case topic.InProgress:
		return lipgloss.NewStyle().Foreground(colorInProgress).Render("in progress")
	}
	return dimStyle.Render("not learned")
}

func printAnalysis(w io.Writer, r *AnalyzeResult) {
	if r.Diff != nil {
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d files, +%d -%d", r.Diff.Files, r.Diff.LinesAdded, r.Diff.LinesRemoved)))
	}
	if len(r.NewTopics) == 0 {
		fmt.Fprintln(w, "No topics found in this change")
		return
	}

	created := make(map[string]bool, len(r.Created))
	for _, id := range r.Created {
		created[id] = true
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Topics in %s", r.ProjectID)))
	for _, t := range r.NewTopics {
		tag := "seen before"
		if created[t.ID] {
			tag = "new"
		}
		fmt.Fprintf(w, "  %s %s\n", t.Title, dimStyle.Render("("+t.ID+", "+tag+")"))
		if len(t.Prerequisites) > 0 {
			fmt.Fprintf(w, "    requires %s\n", strings.Join(t.Prerequisites, ", "))
		}
	}
	if len(r.Placeholders) > 0 {
		fmt.Fprintf(w, "Added prerequisites: %s\n", strings.Join(r.Placeholders, ", "))
	}
	for _, e := range r.RejectedEdges {
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("Ignored %s -> %s (%s)", e.PrerequisiteID, e.TopicID, e.Reason)))
	}
}

func printGraph(w io.Writer, g *brain.Graph) {
	title := "All projects"
	if g.ProjectID != "" {
		title = "Project " + g.ProjectID
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s: %d topics, %d prerequisites", title, len(g.Nodes), len(g.Edges))))
	if len(g.Nodes) == 0 {
		return
	}

	order, ok := g.LearningOrder()
	if !ok {
		fmt.Fprintln(w, dimStyle.Render("graph has a cycle, listing by id"))
		order = order[:0]
		for _, n := range g.Nodes {
			order = append(order, n.ID)
		}
	}

	requires := make(map[string][]string)
	for _, e := range g.Edges {
		requires[e.Target] = append(requires[e.Target], e.Source)
	}
	for i, id := range order {
		n, _ := g.Node(id)
		line := fmt.Sprintf("%3d. %s [%s]", i+1, n.Title, statusLabel(n.Status))
		if deps := requires[id]; len(deps) > 0 {
			line += dimStyle.Render(" after " + strings.Join(deps, ", "))
		}
		fmt.Fprintln(w, line)
	}
}
