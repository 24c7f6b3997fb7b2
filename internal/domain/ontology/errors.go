package ontology

import (
	"errors"
	"fmt"
)

// Sentinel kinds for ontology errors.
var (
	ErrOntologyLoad = errors.New("ontology load failed")
	ErrNoUnits      = errors.New("no allowed units declared")
)

// LoadError reports an unreadable or malformed ontology. It is fatal at
// startup.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%s: %v", ErrOntologyLoad, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrOntologyLoad, e.Source, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrOntologyLoad, e.Err} }
