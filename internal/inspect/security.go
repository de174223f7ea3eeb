package inspect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/relaycore/orchestrator/internal/validate"
)

// criticalPatterns deny the call outright: well-known destructive
// payloads with no legitimate ambiguity.
var criticalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)rm\s+-rf`),
	regexp.MustCompile(`(?i)drop\s+database`),
	regexp.MustCompile(`(?i)delete\s+[^;]*where\s+1\s*=\s*1`),
}

// cautionPatterns require approval: plausible in legitimate use but
// worth a human look.
var cautionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bformat\b`),
	regexp.MustCompile(`eval\(`),
	regexp.MustCompile(`exec\(`),
}

var sensitivePathPrefixes = []string{
	"/etc", "/root", "/var/lib", "/sys", "/proc",
	"~/.ssh", "~/.aws", "~/.gnupg",
}

var pathLikeKeys = map[string]bool{
	"path": true, "file": true, "filename": true,
	"filepath": true, "location": true, "destination": true,
}

// SecurityInspector pattern-matches parameter payloads for destructive
// shell/SQL/eval idioms and denylisted path prefixes.
type SecurityInspector struct{}

// NewSecurityInspector creates the security inspector.
func NewSecurityInspector() *SecurityInspector { return &SecurityInspector{} }

func (s *SecurityInspector) Name() string { return "security" }

func (s *SecurityInspector) Inspect(calls []validate.ToolCall) []CallVerdict {
	var out []CallVerdict

	for i, call := range calls {
		verdict := Approved
		var reasons []string

		for key, val := range call.Parameters {
			str, ok := val.(string)
			if !ok {
				continue
			}

			for _, re := range criticalPatterns {
				if re.MatchString(str) {
					verdict = Denied
					reasons = append(reasons, fmt.Sprintf("parameter %q matches a denied pattern", key))
				}
			}
			for _, re := range cautionPatterns {
				if re.MatchString(str) && verdict != Denied {
					verdict = RequiresApproval
					reasons = append(reasons, fmt.Sprintf("parameter %q matches a sensitive pattern", key))
				}
			}
			if pathLikeKeys[strings.ToLower(key)] {
				for _, prefix := range sensitivePathPrefixes {
					if strings.HasPrefix(str, prefix) {
						verdict = Denied
						reasons = append(reasons, fmt.Sprintf("parameter %q targets denylisted path prefix %q", key, prefix))
					}
				}
			}
		}

		if verdict == Approved {
			continue
		}
		out = append(out, CallVerdict{
			CallIndex: i,
			Verdict:   verdict,
			Findings:  []Finding{{Inspector: s.Name(), Verdict: verdict, Reason: strings.Join(reasons, "; ")}},
		})
	}

	return out
}
