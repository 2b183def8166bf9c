package skills

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/marcozac/go-jsonc"

	"github.com/junoproject/juno/internal/models"
)

// skill_writer is the self-improvement path: the agent asks a coding model
// for a new command-skill definition and installs it into the skills dir.

const writerModel = "qwen2.5-coder:14b"

const writePrompt = `Write a JSONC definition for a new shell-command skill of a local agent.

Skill name: %s
What it does: %s
Example usage: %s

STRICT REQUIREMENTS:
1. The definition is a single JSONC object with keys "name", "description", "command", "args".
2. "command" is a POSIX shell command line. Argument values are provided as uppercase environment variables (arg "query" becomes $QUERY).
3. "args" maps each argument name to a one-line description. Use an empty object when the command takes no arguments.
4. The command must always print a result to stdout and must not be interactive.
5. Use only commonly installed tools (coreutils, curl, jq, awk, sed).

EXAMPLE:
{
  // check disk usage of the workspace
  "name": "disk_usage",
  "description": "Report workspace disk usage",
  "command": "du -sh \"$TARGET\"",
  "args": { "target": "directory to measure" }
}

Return ONLY the JSONC object. No markdown fences. No explanation.`

var (
	nameSanitizeRe  = regexp.MustCompile(`[^a-z0-9_]+`)
	nameCollapseRe  = regexp.MustCompile(`_+`)
	fenceTrimRe     = regexp.MustCompile("(?s)^```[a-z]*\\s*|\\s*```$")
)

func (r *Registry) newSkillWriterSkill() *Skill {
	return &Skill{
		Name:        "skill_writer",
		Description: "Write a new command skill for this agent. Args: skill_name (string), description (string), example_usage (string, optional)",
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			name := sanitizeSkillName(stringArg(args, "skill_name", ""))
			if name == "" {
				return "ERROR: Invalid skill name", nil
			}
			desc := stringArg(args, "description", "")
			if desc == "" {
				return "", fmt.Errorf("description is required")
			}
			example := stringArg(args, "example_usage", "No example provided.")

			path := filepath.Join(r.cfg.Dir, name+".jsonc")
			if _, err := os.Stat(path); err == nil {
				return fmt.Sprintf("Skill %q already exists at %s. Delete it first to rewrite it.", name, path), nil
			}

			spec := models.Spec{
				Model:       writerModel,
				NumCtx:      4096,
				NumPredict:  4096,
				Temperature: 0.2,
			}
			raw, err := r.cfg.Generator.Generate(ctx, spec, fmt.Sprintf(writePrompt, name, desc, example))
			if err != nil {
				return fmt.Sprintf("ERROR writing skill: %v", err), nil
			}

			code := strings.TrimSpace(fenceTrimRe.ReplaceAllString(strings.TrimSpace(raw), ""))

			var def commandSkill
			if err := jsonc.Unmarshal([]byte(code), &def); err != nil {
				return fmt.Sprintf("ERROR: Generated definition is not valid JSONC: %v. Try again with a clearer description.", err), nil
			}
			if def.Command == "" {
				return "ERROR: Generated definition has no command. Try again.", nil
			}
			// The file is named after the requested skill; the definition
			// must agree or the targeted reload will never find it.
			if def.Name != name {
				return fmt.Sprintf("ERROR: Generated definition names itself %q instead of %q. Try again.", def.Name, name), nil
			}

			if err := os.WriteFile(path, []byte(code+"\n"), 0o644); err != nil {
				return fmt.Sprintf("ERROR writing skill: %v", err), nil
			}
			if err := r.loadCommandSkillFile(path); err != nil {
				os.Remove(path)
				return fmt.Sprintf("ERROR: Generated skill failed to load: %v. Try again.", err), nil
			}

			preview := code
			if lines := strings.SplitN(preview, "\n", 16); len(lines) == 16 {
				preview = strings.Join(lines[:15], "\n") + "\n..."
			}
			return fmt.Sprintf("Skill %q written to %s and activated.\nPreview:\n%s", name, path, preview), nil
		},
	}
}

func sanitizeSkillName(name string) string {
	name = nameSanitizeRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	name = nameCollapseRe.ReplaceAllString(name, "_")
	return strings.Trim(name, "_")
}
