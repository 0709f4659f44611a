package governance

import (
	"fmt"
	"regexp"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request contains the context of one file upload to be evaluated.
type Request struct {
	Filename  string
	MediaType string
	Size      int64
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates uploads against a set of intake rules.
type PolicyEngine interface {
	Evaluate(req Request) Result
}

// DefaultPolicyEngine allows everything unless a rule matches. The core
// enforces no upload limits; these rules are config-driven gateway hygiene.
type DefaultPolicyEngine struct {
	DeniedNames  []*regexp.Regexp
	MaxFileBytes int64 // 0 = unlimited
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{}
}

func (e *DefaultPolicyEngine) DenyName(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedNames = append(e.DeniedNames, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(req Request) Result {
	if e.MaxFileBytes > 0 && req.Size > e.MaxFileBytes {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("File exceeds the %d byte upload limit", e.MaxFileBytes),
		}
	}

	for _, re := range e.DeniedNames {
		if re.MatchString(req.Filename) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Filename matches restricted pattern: %s", re.String()),
			}
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}
}
