package skills

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const readCap = 8000

// safePath resolves a model-supplied path inside the workspace. Escapes via
// ".." or absolute paths are rejected.
func (r *Registry) safePath(path string) (string, error) {
	clean := strings.TrimLeft(path, "/")
	full := filepath.Clean(filepath.Join(r.cfg.Workspace, clean))
	if full != r.cfg.Workspace && !strings.HasPrefix(full, r.cfg.Workspace+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace: %s", path)
	}
	return full, nil
}

func (r *Registry) newReadFileSkill() *Skill {
	return &Skill{
		Name:        "read_file",
		Description: "Read a file from the agent workspace. Args: path (string)",
		Run: func(_ context.Context, args map[string]any) (string, error) {
			path := stringArg(args, "path", "")
			if path == "" {
				return "", fmt.Errorf("path is required")
			}
			full, err := r.safePath(path)
			if err != nil {
				return "", err
			}
			data, err := os.ReadFile(full)
			if os.IsNotExist(err) {
				return "File not found: " + path, nil
			}
			if err != nil {
				return "", err
			}
			text := string(data)
			if len(text) > readCap {
				text = fmt.Sprintf("%s\n...[truncated, %d total chars]", text[:readCap], len(text))
			}
			return text, nil
		},
	}
}

func (r *Registry) newWriteFileSkill() *Skill {
	return &Skill{
		Name:        "write_file",
		Description: "Write a file in the agent workspace. Args: path (string), content (string), append (bool, optional)",
		Run: func(_ context.Context, args map[string]any) (string, error) {
			path := stringArg(args, "path", "")
			if path == "" {
				return "", fmt.Errorf("path is required")
			}
			full, err := r.safePath(path)
			if err != nil {
				return "", err
			}
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return "", err
			}

			content := stringArg(args, "content", "")
			if doAppend, _ := args["append"].(bool); doAppend {
				f, err := os.OpenFile(full, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
				if err != nil {
					return "", err
				}
				defer f.Close()
				if _, err := f.WriteString(content); err != nil {
					return "", err
				}
				return fmt.Sprintf("Appended %d chars to %s", len(content), path), nil
			}

			if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
				return "", err
			}
			return fmt.Sprintf("Written %d chars to %s", len(content), path), nil
		},
	}
}

func (r *Registry) newListDirSkill() *Skill {
	return &Skill{
		Name:        "list_dir",
		Description: "List files in the agent workspace. Args: path (string, optional)",
		Run: func(_ context.Context, args map[string]any) (string, error) {
			target := r.cfg.Workspace
			if path := stringArg(args, "path", ""); path != "" {
				full, err := r.safePath(path)
				if err != nil {
					return "", err
				}
				target = full
			}

			entries, err := os.ReadDir(target)
			if os.IsNotExist(err) {
				return "Path not found: " + target, nil
			}
			if err != nil {
				return "", err
			}
			if len(entries) == 0 {
				return "(empty)", nil
			}

			sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
			var lines []string
			for _, entry := range entries {
				kind := "file"
				var size int64
				if entry.IsDir() {
					kind = "dir"
				} else if info, err := entry.Info(); err == nil {
					size = info.Size()
				}
				lines = append(lines, fmt.Sprintf("%-4s  %10d  %s", kind, size, entry.Name()))
			}
			return strings.Join(lines, "\n"), nil
		},
	}
}
