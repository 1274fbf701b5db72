package cleanup

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule is one substitution applied to an answer transcript. Literal rules
// match case-insensitively and replace every occurrence; regex rules replace
// only the first match unless Global is set.
type Rule struct {
	Match   string `yaml:"match"`
	Replace string `yaml:"replace"`
	Regex   bool   `yaml:"regex"`
	Global  bool   `yaml:"global"`
}

// File is the on-disk YAML layout of a cleanup rules file.
type File struct {
	Fillers *bool  `yaml:"fillers"`
	Rules   []Rule `yaml:"rules"`
}

// Options configures a Normalizer.
type Options struct {
	RulesPath      string
	StripFillers   bool
	IterationLimit int
}

// Normalizer tidies recognized speech before it is submitted as an answer.
type Normalizer struct {
	rules     []compiledRule
	fillers   bool
	loopLimit int
}

var (
	fillerPattern     = regexp.MustCompile(`(?i)(^|[\s,])(?:u+m+|u+h+|e+r+m+|h+m+|mm+)(?:[,.]|\b)`)
	spaceBeforePunct  = regexp.MustCompile(`\s+([,.!?;:])`)
	repeatedSeparator = regexp.MustCompile(`([,;:])(?:\s*[,;:])+`)
)

// Load reads rules from opts.RulesPath. A missing file yields a normalizer
// with only the built-in cleanup.
func Load(opts Options) (*Normalizer, error) {
	path := strings.TrimSpace(opts.RulesPath)
	if path == "" {
		return Compile(nil, opts)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Compile(nil, opts)
		}
		return nil, fmt.Errorf("failed to read cleanup rules %q: %w", path, err)
	}

	var file File
	if err := yaml.Unmarshal(contents, &file); err != nil {
		return nil, fmt.Errorf("failed to parse cleanup rules %q: %w", path, err)
	}
	if file.Fillers != nil {
		opts.StripFillers = *file.Fillers
	}

	normalizer, err := Compile(file.Rules, opts)
	if err != nil {
		return nil, fmt.Errorf("cleanup rules %q: %w", path, err)
	}
	return normalizer, nil
}

// Compile builds a Normalizer from rules.
func Compile(rules []Rule, opts Options) (*Normalizer, error) {
	if opts.IterationLimit <= 0 {
		opts.IterationLimit = 30
	}

	compiled := make([]compiledRule, 0, len(rules))
	for index, rule := range rules {
		c, err := compileRule(rule)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", index+1, err)
		}
		compiled = append(compiled, c)
	}
	return &Normalizer{rules: compiled, fillers: opts.StripFillers, loopLimit: opts.IterationLimit}, nil
}

// Apply cleans text deterministically: fillers first, then rules until the
// text stops changing, then whitespace and punctuation spacing.
func (n *Normalizer) Apply(text string) (string, error) {
	result := text
	if n.fillers {
		result = fillerPattern.ReplaceAllString(result, "$1")
	}

	for i := 0; i < n.loopLimit && len(n.rules) > 0; i++ {
		changed := false
		for _, rule := range n.rules {
			next, ruleChanged := rule.apply(result)
			if ruleChanged {
				result = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	return tidy(result), nil
}

func tidy(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	text = repeatedSeparator.ReplaceAllString(text, "$1")
	text = strings.TrimLeft(text, ",;: ")
	return strings.TrimSpace(text)
}

type compiledRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func compileRule(rule Rule) (compiledRule, error) {
	match := strings.TrimSpace(rule.Match)
	if match == "" {
		return compiledRule{}, errors.New("match cannot be empty")
	}

	if !rule.Regex {
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(match))
		if err != nil {
			return compiledRule{}, fmt.Errorf("invalid literal match: %w", err)
		}
		return compiledRule{re: re, replacement: rule.Replace, global: true}, nil
	}

	pattern := match
	if !strings.HasPrefix(pattern, "(?") {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return compiledRule{}, fmt.Errorf("invalid regex: %w", err)
	}
	return compiledRule{re: re, replacement: rule.Replace, global: rule.Global}, nil
}

func (r compiledRule) apply(input string) (string, bool) {
	if r.global {
		output := r.re.ReplaceAllString(input, r.replacement)
		return output, output != input
	}

	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input, false
	}
	expanded := r.re.ExpandString(nil, r.replacement, input, loc)
	output := input[:loc[0]] + string(expanded) + input[loc[1]:]
	return output, output != input
}
