package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/frobware/go-dsa/server/api"
)

const timeFormat = "2006-01-02T15:04:05Z"

// FormatTreeList formats trees according to the output flags.
func FormatTreeList(trees []api.Tree, flags *OutputFlags) (string, error) {
	switch flags.Format() {
	case OutputFormatJSON:
		return formatJSON(api.TreeList{Trees: trees})
	case OutputFormatYAML:
		return formatYAML(api.TreeList{Trees: trees})
	case OutputFormatTree:
		var b strings.Builder
		for i, t := range trees {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(formatTreeTree(t))
		}
		return b.String(), nil
	default:
		return formatTreeListTable(trees), nil
	}
}

// FormatTree formats a single tree according to the output flags.
func FormatTree(t api.Tree, flags *OutputFlags) (string, error) {
	switch flags.Format() {
	case OutputFormatJSON:
		return formatJSON(t)
	case OutputFormatYAML:
		return formatYAML(t)
	case OutputFormatTree:
		return formatTreeTree(t), nil
	default:
		return formatTreeTable(t), nil
	}
}

// FormatEvents formats journal entries according to the output flags.
func FormatEvents(events []api.Event, flags *OutputFlags) (string, error) {
	switch flags.Format() {
	case OutputFormatJSON:
		return formatJSON(api.EventList{Events: events})
	case OutputFormatYAML:
		return formatYAML(api.EventList{Events: events})
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "%-6s %-20s %-13s %-6s %-12s %-8s %s\n", "ID", "TIME", "KIND", "TREE", "SWITCH", "OP", "DETAIL")
		for _, e := range events {
			fmt.Fprintf(&b, "%-6d %-20s %-13s %-6d %-12s %-8s %s\n",
				e.ID, e.Time.UTC().Format(timeFormat), e.Kind, e.Tree,
				fmt.Sprintf("%s/%d", e.Switch, e.Member), opID(e.OpID), e.Detail)
		}
		return b.String(), nil
	}
}

// FormatProbeResults formats probe outcomes according to the output
// flags.
func FormatProbeResults(results []api.ProbeResult, flags *OutputFlags) (string, error) {
	switch flags.Format() {
	case OutputFormatJSON:
		return formatJSON(results)
	case OutputFormatYAML:
		return formatYAML(results)
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "%-12s %-10s %-6s %-6s %s\n", "SWITCH", "OUTCOME", "TREE", "MEMBER", "DETAIL")
		for _, r := range results {
			fmt.Fprintf(&b, "%-12s %-10s %-6d %-6d %s\n", r.Switch, r.Outcome, r.Tree, r.Member, r.Detail)
		}
		return b.String(), nil
	}
}

func formatJSON(v any) (string, error) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(output) + "\n", nil
}

// formatYAML goes through JSON so that YAML keys match the JSON field
// names.
func formatYAML(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return "", fmt.Errorf("failed to convert result: %w", err)
	}
	output, err := yaml.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(output), nil
}

func formatTreeListTable(trees []api.Tree) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-10s %-8s %-10s %-12s %s\n", "TREE", "STATE", "MEMBERS", "MASTER", "PROTOCOL", "SWITCHES")
	for _, t := range trees {
		names := make([]string, 0, len(t.Members))
		for _, m := range t.Members {
			names = append(names, m.Name)
		}
		fmt.Fprintf(&b, "%-6d %-10s %-8d %-10s %-12s %s\n",
			t.ID, t.State, len(t.Members), dash(t.Master), dash(t.Protocol), strings.Join(names, ","))
	}
	return b.String()
}

func formatTreeTable(t api.Tree) string {
	var b strings.Builder

	fmt.Fprintf(&b, "TREE  %d  %s\n", t.ID, t.State)
	fmt.Fprintf(&b, "  master   %s\n", dash(t.Master))
	if t.UplinkSwitch != "" {
		fmt.Fprintf(&b, "  uplink   %s port %d\n", t.UplinkSwitch, t.UplinkPort)
	}
	fmt.Fprintf(&b, "  protocol %s\n", dash(t.Protocol))

	b.WriteString("\n  MEMBERS\n")
	if len(t.Members) == 0 {
		b.WriteString("  (none)\n")
		return b.String()
	}
	fmt.Fprintf(&b, "  %-6s %-12s %-12s %-10s %-10s %s\n", "INDEX", "NAME", "ENABLED", "LINK", "UPLINK", "ROUTES")
	for _, m := range t.Members {
		fmt.Fprintf(&b, "  %-6d %-12s %-12s %-10s %-10s %s\n",
			m.Index, m.Name, ints(m.Enabled), ints(m.Link), ints(m.Uplink), routes(m.Routes))
	}

	b.WriteString("\n  PORTS\n")
	fmt.Fprintf(&b, "  %-12s %-6s %-8s %-12s %s\n", "SWITCH", "PORT", "ROLE", "LABEL", "INTERFACE")
	for _, m := range t.Members {
		for _, p := range m.Ports {
			fmt.Fprintf(&b, "  %-12s %-6d %-8s %-12s %s\n", m.Name, p.Index, p.Role, dash(p.Label), dash(p.Interface))
		}
	}
	return b.String()
}

func formatTreeTree(t api.Tree) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Tree %d (%s)\n", t.ID, t.State)
	fmt.Fprintf(&b, "├─ master:   %s\n", dash(t.Master))
	fmt.Fprintf(&b, "├─ protocol: %s\n", dash(t.Protocol))
	if len(t.Members) == 0 {
		b.WriteString("└─ Members: none\n")
		return b.String()
	}
	fmt.Fprintf(&b, "└─ Members (%d)\n", len(t.Members))
	for i, m := range t.Members {
		last := i == len(t.Members)-1
		prefix, indent := "   ├─", "   │  "
		if last {
			prefix, indent = "   └─", "      "
		}
		fmt.Fprintf(&b, "%s [%d] %s\n", prefix, m.Index, m.Name)
		fmt.Fprintf(&b, "%s├─ routes: %s\n", indent, routes(m.Routes))
		if m.MDIOBus != "" {
			fmt.Fprintf(&b, "%s├─ mdio:   %s\n", indent, m.MDIOBus)
		}
		for j, p := range m.Ports {
			branch := "├─"
			if j == len(m.Ports)-1 {
				branch = "└─"
			}
			line := fmt.Sprintf("%s%s port %d %s", indent, branch, p.Index, p.Role)
			if p.Interface != "" {
				line += " " + p.Interface
			} else if p.Label != "" {
				line += " " + p.Label
			}
			if !p.Enabled {
				line += " (disabled)"
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func opID(id uint64) string {
	if id == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", id)
}

func ints(v []int) string {
	if len(v) == 0 {
		return "-"
	}
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ",")
}

func routes(rs []api.Route) string {
	if len(rs) == 0 {
		return "-"
	}
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = fmt.Sprintf("%d:%d", r.Member, r.Port)
	}
	return strings.Join(parts, " ")
}
