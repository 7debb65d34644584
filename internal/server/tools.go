package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"promptvc/internal/audit"
	"promptvc/internal/prompt"
	"promptvc/internal/promptfile"
	"promptvc/internal/repo"
)

type toolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func toolDefinitions() []toolDef {
	return []toolDef{
		{
			Name:        "promptvc_init_repository",
			Description: "Initialize a new prompt repository",
			InputSchema: objectSchema(map[string]any{}),
		},
		{
			Name:        "promptvc_commit",
			Description: "Commit a prompt to the repository",
			InputSchema: objectSchema(map[string]any{
				"message": map[string]any{"type": "string", "description": "Commit message"},
				"prompt":  map[string]any{"type": "object", "description": "Prompt fields (system, user_template, temperature, ...)"},
				"author":  map[string]any{"type": "string", "description": "Commit author"},
			}, "message", "prompt"),
		},
		{
			Name:        "promptvc_create_prompt",
			Description: "Create or update a prompt YAML file. Provide a meaningful 'name' or an explicit 'file' path.",
			InputSchema: objectSchema(map[string]any{
				"file":             map[string]any{"type": "string", "description": "Path to the prompt file, relative to the repository"},
				"name":             map[string]any{"type": "string", "description": "Prompt name used for automatic file naming (prompts/<name>.yaml)"},
				"system":           map[string]any{"type": "string", "description": "System message"},
				"user_template":    map[string]any{"type": "string", "description": "User message template with {variable} placeholders"},
				"assistant_prefix": map[string]any{"type": "string"},
				"temperature":      map[string]any{"type": "number", "minimum": 0.0, "maximum": 2.0},
				"max_tokens":       map[string]any{"type": "integer", "minimum": 1},
				"top_p":            map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
				"frequency_penalty": map[string]any{"type": "number", "minimum": -2.0, "maximum": 2.0},
				"presence_penalty":  map[string]any{"type": "number", "minimum": -2.0, "maximum": 2.0},
				"stop_sequences":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"additional_fields": map[string]any{"type": "object", "description": "Extra fields preserved verbatim"},
				"overwrite":         map[string]any{"type": "boolean", "description": "Replace an existing file"},
				"append":            map[string]any{"type": "boolean", "description": "Merge into an existing file"},
			}),
		},
		{
			Name:        "promptvc_get_history",
			Description: "Get commit history, newest first",
			InputSchema: objectSchema(map[string]any{
				"max_count": map[string]any{"type": "integer", "description": "Maximum number of commits to return"},
			}),
		},
		{
			Name:        "promptvc_diff",
			Description: "Compare two commits by reference (hash, prefix, HEAD, HEAD~N)",
			InputSchema: objectSchema(map[string]any{
				"ref1": map[string]any{"type": "string"},
				"ref2": map[string]any{"type": "string"},
			}, "ref1", "ref2"),
		},
		{
			Name:        "promptvc_checkout",
			Description: "Move HEAD to the referenced commit",
			InputSchema: objectSchema(map[string]any{
				"ref": map[string]any{"type": "string"},
			}, "ref"),
		},
		{
			Name:        "promptvc_tag",
			Description: "Tag a commit for experiment tracking",
			InputSchema: objectSchema(map[string]any{
				"name":     map[string]any{"type": "string", "description": "Tag name"},
				"ref":      map[string]any{"type": "string", "description": "Commit reference (defaults to HEAD)"},
				"metadata": map[string]any{"type": "object", "description": "Experiment metadata"},
			}, "name"),
		},
		{
			Name:        "promptvc_list_tags",
			Description: "List all tags",
			InputSchema: objectSchema(map[string]any{}),
		},
		{
			Name:        "promptvc_get_status",
			Description: "Get the current HEAD version",
			InputSchema: objectSchema(map[string]any{}),
		},
		{
			Name:        "promptvc_generate_audit",
			Description: "Render the audit trail",
			InputSchema: objectSchema(map[string]any{
				"format": map[string]any{"type": "string", "enum": []string{"json", "csv"}},
			}),
		},
		{
			Name:        "promptvc_rollback",
			Description: "Move HEAD back N commits (default 1)",
			InputSchema: objectSchema(map[string]any{
				"steps": map[string]any{"type": "integer"},
			}),
		},
	}
}

func (s *Server) callTool(ctx context.Context, name string, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}

	switch name {
	case "promptvc_init_repository":
		s.mutateMu.Lock()
		defer s.mutateMu.Unlock()
		if _, err := repo.Init(s.repo.Path()); err != nil {
			return nil, err
		}
		return map[string]any{"initialized": true, "path": s.repo.Path()}, nil

	case "promptvc_commit":
		message, _ := args["message"].(string)
		data, _ := args["prompt"].(map[string]any)
		author, _ := args["author"].(string)
		if data == nil {
			return nil, fmt.Errorf("missing prompt data")
		}

		s.mutateMu.Lock()
		defer s.mutateMu.Unlock()
		commit, err := s.repo.CommitMap(message, data, author, "")
		if err != nil {
			return nil, err
		}
		return commit, nil

	case "promptvc_create_prompt":
		return s.createPromptFile(args)

	case "promptvc_get_history":
		maxCount := intArg(args, "max_count")
		return s.repo.Log(maxCount)

	case "promptvc_diff":
		ref1, _ := args["ref1"].(string)
		ref2, _ := args["ref2"].(string)
		return s.repo.Diff(ref1, ref2)

	case "promptvc_checkout":
		ref, _ := args["ref"].(string)
		s.mutateMu.Lock()
		defer s.mutateMu.Unlock()
		return s.repo.Checkout(ref)

	case "promptvc_tag":
		tagName, _ := args["name"].(string)
		ref, _ := args["ref"].(string)
		metadata, _ := args["metadata"].(map[string]any)
		s.mutateMu.Lock()
		defer s.mutateMu.Unlock()
		return s.repo.Tag(tagName, ref, metadata)

	case "promptvc_list_tags":
		return s.repo.ListTags()

	case "promptvc_get_status":
		version, err := s.repo.CurrentVersion()
		if err != nil {
			return nil, err
		}
		if version == nil {
			return map[string]any{"status": "no commits"}, nil
		}
		return version, nil

	case "promptvc_generate_audit":
		format, _ := args["format"].(string)
		if format == "" {
			format = "json"
		}
		return s.repo.AuditExport(audit.Format(format))

	case "promptvc_rollback":
		steps := intArg(args, "steps")
		if steps <= 0 {
			steps = 1
		}
		s.mutateMu.Lock()
		defer s.mutateMu.Unlock()
		return s.repo.Checkout(fmt.Sprintf("HEAD~%d", steps))

	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}
}

// promptFileFields lists the arguments copied verbatim into the prompt file.
var promptFileFields = []string{
	prompt.FieldSystem,
	prompt.FieldUserTemplate,
	prompt.FieldAssistantPrefix,
	prompt.FieldTemperature,
	prompt.FieldMaxTokens,
	prompt.FieldTopP,
	prompt.FieldFrequencyPenalty,
	prompt.FieldPresencePenalty,
	prompt.FieldStopSequences,
}

func (s *Server) createPromptFile(args map[string]any) (any, error) {
	file, _ := args["file"].(string)
	name, _ := args["name"].(string)
	if file == "" && name == "" {
		return nil, fmt.Errorf("either 'file' or 'name' must be provided")
	}
	if file == "" {
		file = filepath.Join("prompts", name+".yaml")
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(s.repo.Path(), file)
	}

	data := map[string]any{}
	appendMode, _ := args["append"].(bool)
	overwrite, _ := args["overwrite"].(bool)
	if _, err := os.Stat(file); err == nil {
		switch {
		case appendMode:
			existing, err := promptfile.Load(file)
			if err != nil {
				return nil, err
			}
			data = existing
		case !overwrite:
			return nil, fmt.Errorf("file %s already exists, set 'append' or 'overwrite'", file)
		}
	}

	for _, field := range promptFileFields {
		if v, ok := args[field]; ok && v != nil {
			data[field] = v
		}
	}
	if extra, ok := args["additional_fields"].(map[string]any); ok {
		for k, v := range extra {
			data[k] = v
		}
	}

	rec, err := prompt.FromMap(data)
	if err != nil {
		return nil, err
	}
	if !rec.HasContent() {
		return nil, fmt.Errorf("prompt must have at least a 'system' or 'user_template' field")
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, err
	}
	if err := promptfile.Write(file, rec); err != nil {
		return nil, err
	}

	verb := "created"
	if appendMode {
		verb = "updated"
	}
	return map[string]any{
		"path":    file,
		"message": fmt.Sprintf("Prompt file %s: %s", verb, file),
		"data":    rec.ToMap(),
	}, nil
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
