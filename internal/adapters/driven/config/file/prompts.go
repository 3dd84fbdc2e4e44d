package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/lectern/internal/core/ports/driven"
	"github.com/custodia-labs/lectern/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads LLM prompts from user-editable files on disk, falling
// back to embedded defaults.
//
// Files are created lazily on the first Load, not in the constructor.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// defaultPrompts contains embedded default prompts.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptAnswerSystem: `You are a librarian answering questions about the books in a private library.

Rules:
1. Answer ONLY from the numbered passages in the context. Do not use outside knowledge.
2. Cite every claim with the passage marker it came from, for example [1] or [2, 3].
3. If the passages do not contain the answer, say that the library does not cover it.
4. Be concise. Quote short phrases when the exact wording matters.`,

	driven.PromptAnswerUser: `CONTEXT:
` + driven.PromptContextVar + `

QUESTION: ` + driven.PromptQuestionVar + `

Answer using the numbered passages above and cite them with [n] markers.`,
}

// placeholders lists the variables each template must keep.
var placeholders = map[string][]string{
	driven.PromptAnswerUser: {driven.PromptContextVar, driven.PromptQuestionVar},
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.lectern/prompts/.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".lectern", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for the given name. A customised file
// that lost its format placeholders is ignored in favour of the default.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)

	defaultPrompt, known := defaultPrompts[name]
	if s.initErr != nil {
		if known {
			return defaultPrompt, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	prompt, err := s.loadFromFile(name)
	if err != nil {
		if known {
			return defaultPrompt, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}
	if missing := missingPlaceholder(name, prompt); missing != "" {
		logger.Warn("prompt %s lacks %s, using the default", name, missing)
		prompt = defaultPrompt
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()

	return prompt, nil
}

// missingPlaceholder returns the first required variable absent from prompt.
func missingPlaceholder(name, prompt string) string {
	for _, v := range placeholders[name] {
		if !strings.Contains(prompt, v) {
			return v
		}
	}
	return ""
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// initialise creates the prompt directory and default files.
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

func (s *PromptStore) loadFromFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.promptDir, name+".txt"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createReadme writes a README file explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	content := `# Lectern Prompts

These files control how answers are generated. Edit them to change tone or
rules; delete a file to restore its default on the next run.

- ` + "`answer_system.txt`" + ` - system instruction sent with every question
- ` + "`answer_user.txt`" + ` - wraps the retrieved passages and the question

` + "`answer_user.txt`" + ` must keep the ` + "`{{context}}`" + ` and ` + "`{{question}}`" + `
placeholders, replaced by the numbered passages and the question. A file
missing either is ignored. Any other text, including ` + "`%`" + `, is sent as written.
`
	return os.WriteFile(path, []byte(content), 0600)
}
