package test

import (
	"bufio"
	"os"
	"regexp"
	"strings"
	"testing"
)

// TestFlow_DelegateMethodComplexity ensures that public methods on the
// flow types stay below a maximum line count. Methods exceeding this
// threshold likely contain inline step logic that should be in
// internal/flows/*.
//
// Allowed exceptions are explicitly listed below with mandatory metadata:
// - Reason: why the exception exists
// - Target: the internal/flows file it should migrate to
// - RemoveBy: a version or milestone when the exception should be removed
//
// Exceptions without this metadata are rejected at test time to prevent
// permanent exception creep.
func TestFlow_DelegateMethodComplexity(t *testing.T) {
	const maxLines = 50
	filenames := []string{
		"../flow_signin.go",
		"../flow_signup.go",
		"../flow_email_verification.go",
		"../flow_password_reset.go",
		"../flow_totp_setup.go",
	}

	// delegateException describes one allowed exception to the delegate
	// complexity limit. All fields are required — if an entry is missing
	// reason, target, or removeBy, the test will fail to force cleanup.
	type delegateException struct {
		limit    int    // maximum allowed lines for this method
		reason   string // why the exception is needed
		target   string // target internal file (e.g. "internal/flows/machine.go")
		removeBy string // version or milestone when this should be removed (e.g. "v1.0.0")
	}

	// Step closures that still build vault records and audit detail inline.
	exceptions := map[string]delegateException{
		"SigninFlow.Start":           {60, "challenge record construction", "internal/flows/machine.go", "v1.0.0"},
		"SigninFlow.VerifyTwoFactor": {65, "single-use token consumption", "internal/flows/machine.go", "v1.0.0"},
		"SignupFlow.VerifyEmail":     {75, "auto-complete branch", "internal/flows/machine.go", "v1.0.0"},
		"SignupFlow.CompleteProfile": {60, "pending token fallback", "internal/flows/machine.go", "v1.0.0"},
	}

	// Validate that every exception has complete metadata — prevents "permanent exceptions".
	for name, exc := range exceptions {
		if exc.reason == "" {
			t.Errorf("exception %q missing reason", name)
		}
		if exc.target == "" {
			t.Errorf("exception %q missing target file", name)
		}
		if exc.removeBy == "" {
			t.Errorf("exception %q missing removeBy version/milestone", name)
		}
	}

	funcSig := regexp.MustCompile(`^func \(f \*(\w+)\) ([A-Za-z]\w*)\(`)

	type methodInfo struct {
		name  string
		start int
		depth int
	}

	var violations []string

	for _, filename := range filenames {
		f, err := os.Open(filename)
		if err != nil {
			t.Fatalf("open %s: %v", filename, err)
		}

		scanner := bufio.NewScanner(f)
		lineNum := 0
		var current *methodInfo

		for scanner.Scan() {
			lineNum++
			line := scanner.Text()

			if current == nil {
				if m := funcSig.FindStringSubmatch(line); m != nil {
					current = &methodInfo{
						name:  m[1] + "." + m[2],
						start: lineNum,
						depth: strings.Count(line, "{") - strings.Count(line, "}"),
					}
					continue
				}
			}

			if current != nil {
				current.depth += strings.Count(line, "{") - strings.Count(line, "}")
				if current.depth <= 0 {
					length := lineNum - current.start + 1
					limit := maxLines
					if exc, ok := exceptions[current.name]; ok {
						limit = exc.limit
					}
					if length > limit {
						violations = append(violations, current.name)
						t.Errorf("%s:%d: method %s is %d lines (limit %d); move step logic to internal/flows/",
							filename, current.start, current.name, length, limit)
					}
					current = nil
				}
			}
		}

		if err := scanner.Err(); err != nil {
			t.Fatalf("scan %s: %v", filename, err)
		}
		_ = f.Close()
	}

	if len(violations) > 0 {
		t.Logf("Detected %d method(s) exceeding their line budget. "+
			"Step logic should live in internal/flows/*, "+
			"flow methods should be thin wrappers around the step machine.",
			len(violations))
	}
}
