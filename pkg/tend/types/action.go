package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ActionKind is the kind of a planned action.
type ActionKind string

// Action kinds.
const (
	// ActionInstall installs a package.
	ActionInstall ActionKind = "install"
	// ActionRemove removes a package (keeping its configuration) or deletes a path.
	ActionRemove ActionKind = "remove"
	// ActionPurge removes a package together with its configuration.
	ActionPurge ActionKind = "purge"
)

// Destructive reports whether the kind removes something from the system.
func (k ActionKind) Destructive() bool {
	return k == ActionRemove || k == ActionPurge
}

// Action is one concrete operation on one identity.
type Action struct {
	Kind   ActionKind `json:"kind" yaml:"kind" validate:"required,oneof=install remove purge"`
	Name   string     `json:"name" yaml:"name" validate:"required"`
	Source Source     `json:"source,omitempty" yaml:"source,omitempty" validate:"omitempty,oneof=apt flatpak snap"`
	Domain Domain     `json:"domain" yaml:"domain" validate:"required,oneof=packages filesystem configs"`
	Reason string     `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// String returns a compact representation such as "remove apt htop".
func (a Action) String() string {
	if a.Domain.IsPath() {
		return fmt.Sprintf("%s %s %s", a.Kind, a.Domain, a.Name)
	}
	return fmt.Sprintf("%s %s %s", a.Kind, a.Source, a.Name)
}

// Target returns the backend key an action is routed to: the source for
// package actions, the domain for path actions.
func (a Action) Target() string {
	if a.Domain.IsPath() {
		return string(a.Domain)
	}
	return string(a.Source)
}

var actionValidate = validator.New()

// NewAction builds a validated package action.
func NewAction(kind ActionKind, source Source, name, reason string) (Action, error) {
	a := Action{
		Kind:   kind,
		Name:   strings.TrimSpace(name),
		Source: source,
		Domain: DomainPackages,
		Reason: reason,
	}
	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}

// NewPathAction builds a validated delete action for a path domain.
func NewPathAction(domain Domain, path, reason string) (Action, error) {
	a := Action{
		Kind:   ActionRemove,
		Name:   strings.TrimSpace(path),
		Domain: domain,
		Reason: reason,
	}
	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}

// Validate checks the action's invariants.
func (a Action) Validate() error {
	if err := actionValidate.Struct(a); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: field %s failed %q", ErrInvalidAction, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	if a.Domain.IsPath() {
		if a.Source != "" {
			return fmt.Errorf("%w: path action carries source %q", ErrInvalidAction, a.Source)
		}
		if a.Kind != ActionRemove {
			return fmt.Errorf("%w: path actions only support %s", ErrInvalidAction, ActionRemove)
		}
		return nil
	}
	if a.Source == "" {
		return fmt.Errorf("%w: package action requires a source", ErrInvalidAction)
	}
	return nil
}

// ActionResult is the outcome of executing one action.
type ActionResult struct {
	Action  Action `json:"action" yaml:"action"`
	Success bool   `json:"success" yaml:"success"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether the action failed.
func (r ActionResult) Failed() bool {
	return !r.Success
}

// Succeeded builds a successful result.
func Succeeded(a Action, msg string) ActionResult {
	return ActionResult{Action: a, Success: true, Message: msg}
}

// FailedResult builds a failed result carrying the underlying error text.
func FailedResult(a Action, err error) ActionResult {
	r := ActionResult{Action: a, Success: false}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// CountFailures returns the number of failed results.
func CountFailures(results []ActionResult) int {
	n := 0
	for _, r := range results {
		if r.Failed() {
			n++
		}
	}
	return n
}
