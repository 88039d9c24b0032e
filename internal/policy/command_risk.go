package policy

import (
	"regexp"
	"strings"
)

// CommandRisk is the classification of a shell command.
type CommandRisk string

const (
	RiskSafe        CommandRisk = "safe"
	RiskDestructive CommandRisk = "destructive"
)

// SafeCommandPatterns are read-only prefixes, anchored at the start of the
// trimmed command. A match here wins over every other rule.
var SafeCommandPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*git\s+(status|diff|log|show|rev-parse|ls-files|grep)\b`),
	regexp.MustCompile(`(?i)^\s*node\s+--version\b`),
	regexp.MustCompile(`(?i)^\s*(npm|pnpm|yarn)\s+(--version|-v)\b`),
	regexp.MustCompile(`(?i)^\s*ls\b`),
	regexp.MustCompile(`(?i)^\s*dir\b`),
	regexp.MustCompile(`(?i)^\s*cat\b`),
	regexp.MustCompile(`(?i)^\s*type\b`),
}

// DestructiveCommandPatterns match anywhere in the command.
var DestructiveCommandPatterns = []struct {
	re     *regexp.Regexp
	detail string
}{
	{regexp.MustCompile(`(?i)\brm\s+-rf\b`), "recursive forced delete"},
	{regexp.MustCompile(`(?i)\brm\s+-r\b`), "recursive delete"},
	{regexp.MustCompile(`(?i)\brmdir\b`), "directory removal"},
	{regexp.MustCompile(`(?i)\bdel\b`), "delete"},
	{regexp.MustCompile(`(?i)\bRemove-Item\b`), "delete"},
	{regexp.MustCompile(`(?i)\bmkfs\b`), "filesystem format"},
	{regexp.MustCompile(`(?i)\bdd\b`), "raw disk write"},
	{regexp.MustCompile(`(?i)\bgit\s+reset\s+--hard\b`), "git hard reset"},
	{regexp.MustCompile(`(?i)\bgit\s+clean\s+-f`), "git clean"},
	{regexp.MustCompile(`(?i)\bgit\s+push\s+--force\b`), "git force push"},
	{regexp.MustCompile(`(?i)\bnpm\s+(i|install|uninstall)\b`), "package install"},
	{regexp.MustCompile(`(?i)\bpnpm\s+(i|install|add|remove|uninstall)\b`), "package install"},
	{regexp.MustCompile(`(?i)\byarn\s+(add|remove)\b`), "package install"},
	{regexp.MustCompile(`(?i)\bcurl\b[^\n]*\|\s*(sh|bash)\b`), "remote script piped to shell"},
	{regexp.MustCompile(`(?i)\bwget\b[^\n]*\|\s*(sh|bash)\b`), "remote script piped to shell"},
}

// chainPattern flags ";", "&", "&&" and ";;". Compound commands are
// escalated because their net effect cannot be classified statically.
var chainPattern = regexp.MustCompile(`[;&]{1,2}`)

// ClassifyCommandRisk maps a command to safe or destructive. First match wins:
// empty, safe allow-list, destructive deny-list, chaining heuristic, safe.
func ClassifyCommandRisk(command string) CommandRisk {
	risk, _ := ExplainCommandRisk(command)
	return risk
}

// ExplainCommandRisk is ClassifyCommandRisk plus the rule that decided it.
func ExplainCommandRisk(command string) (CommandRisk, string) {
	c := strings.TrimSpace(command)
	if c == "" {
		return RiskSafe, "empty command"
	}
	for _, re := range SafeCommandPatterns {
		if re.MatchString(c) {
			return RiskSafe, "read-only command"
		}
	}
	for _, p := range DestructiveCommandPatterns {
		if p.re.MatchString(c) {
			return RiskDestructive, p.detail
		}
	}
	if chainPattern.MatchString(c) {
		return RiskDestructive, "chained commands"
	}
	return RiskSafe, "no destructive pattern"
}
