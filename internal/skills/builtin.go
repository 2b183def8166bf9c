package skills

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func (r *Registry) registerBuiltins(ctx context.Context) {
	if ws, err := r.newWebSearchSkill(ctx); err == nil {
		r.Register(ws)
	} else {
		r.logger.Warn("web_search unavailable", "error", err)
	}

	r.Register(r.newWebFetchSkill())
	r.Register(r.newReadFileSkill())
	r.Register(r.newWriteFileSkill())
	r.Register(r.newListDirSkill())
	r.Register(r.newShellSkill())
	r.Register(r.newSystemInfoSkill())

	if r.cfg.Searcher != nil {
		r.Register(r.newMemorySearchSkill())
	}
	if r.cfg.Generator != nil {
		r.Register(r.newSkillWriterSkill())
	}
}

func (r *Registry) newShellSkill() *Skill {
	return &Skill{
		Name:        "shell",
		Description: "Execute a shell command and return stdout+stderr. Args: command (string), timeout (int seconds, default 30)",
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			command := stringArg(args, "command", "")
			if command == "" {
				return "", fmt.Errorf("command is required")
			}
			timeout := time.Duration(intArg(args, "timeout", 30)) * time.Second
			return r.runShell(ctx, command, nil, timeout)
		},
	}
}

// systemInfoSections maps an info_type to the shell pipeline that renders it.
var systemInfoSections = []struct {
	key     string
	heading string
	command string
}{
	{"cpu", "CPU", "echo \"cores: $(nproc)\"; uptime"},
	{"ram", "Memory", "free -h"},
	{"disk", "Disk", "df -h /"},
	{"temp", "Temperature", "cat /sys/class/thermal/thermal_zone0/temp 2>/dev/null || echo unavailable"},
	{"processes", "Top processes", "ps aux --sort=-%cpu | head -8"},
	{"network", "Network", "ip addr show 2>/dev/null | grep 'inet ' | grep -v 127.0.0.1"},
}

func (r *Registry) newSystemInfoSkill() *Skill {
	return &Skill{
		Name:        "system_info",
		Description: "Get host system information. Args: info_type (all|cpu|ram|disk|temp|processes|network), default 'all'",
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			infoType := stringArg(args, "info_type", "all")

			var sections []string
			for _, s := range systemInfoSections {
				if infoType != "all" && infoType != s.key {
					continue
				}
				out, err := r.runShell(ctx, s.command, nil, 10*time.Second)
				if err != nil {
					out = "unavailable"
				}
				sections = append(sections, s.heading+":\n"+out)
			}
			if len(sections) == 0 {
				return fmt.Sprintf("Unknown info_type: %s. Use: all, cpu, ram, disk, temp, processes, network", infoType), nil
			}
			return strings.Join(sections, "\n\n"), nil
		},
	}
}

func (r *Registry) newMemorySearchSkill() *Skill {
	return &Skill{
		Name:        "memory_search",
		Description: "Search past interactions by semantic similarity. Args: query (string), top_k (int, default 5)",
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			query := stringArg(args, "query", "")
			if query == "" {
				return "", fmt.Errorf("query is required")
			}
			topK := intArg(args, "top_k", 5)
			out, err := r.cfg.Searcher(ctx, query, topK)
			if err != nil {
				return fmt.Sprintf("Memory search error: %v", err), nil
			}
			if strings.TrimSpace(out) == "" {
				return "No relevant past interactions found.", nil
			}
			return out, nil
		},
	}
}

// stringArg reads a string argument with a default. Non-string values are
// stringified; models are not reliable typists.
func stringArg(args map[string]any, key, fallback string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return fallback
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// intArg reads an integer argument, tolerating the float64 JSON numbers the
// model sends.
func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
