package document

import (
	"fmt"
	"slices"
)

// Validation failure reasons, in the order the grid rules are checked.
const (
	ReasonGridSize       = "The list must have 9 elements"
	ReasonCellLength     = "All elements in the list must have length 3"
	ReasonOffState       = "The off state should be written as 'off'"
	ReasonParameter      = "The parameter value is wrong"
	ReasonBinding        = "The binding value is wrong"
	ReasonComponent      = "The component value is wrong"
	ReasonParameterRange = "The value must be in the interval from -100 to 100"
)

// ValidationError describes the first rule a value violated.
// Index is the offending cell position, or -1 when the failure is not tied to a cell.
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Detail returns the reason with the offending cell position, when there is one.
func (e *ValidationError) Detail() string {
	if e.Index < 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s (cell %d)", e.Reason, e.Index)
}

func invalid(index int, reason string) *ValidationError {
	return &ValidationError{Index: index, Reason: reason}
}

// ValidateGrid checks cells against the grid rules and returns the first
// violation found, or nil. Cell length is measured in characters.
func ValidateGrid(cells []string, parameters map[string]int, componentTypes []string) error {
	if len(cells) != GridSize {
		return invalid(-1, ReasonGridSize)
	}

	for i, cell := range cells {
		chars := []rune(cell)
		if len(chars) != CellLength {
			return invalid(i, ReasonCellLength)
		}

		if chars[0] == 'o' || chars[0] == 'O' {
			if cell != OffCell {
				return invalid(i, ReasonOffState)
			}
			continue
		}

		if _, ok := parameters[string(chars[0])]; !ok {
			return invalid(i, ReasonParameter)
		}
		if chars[1] != Binding {
			return invalid(i, ReasonBinding)
		}
		if !slices.Contains(componentTypes, string(chars[2])) {
			return invalid(i, ReasonComponent)
		}
	}

	return nil
}

// ValidateGrid checks cells against this document's parameters and component types.
func (d *Document) ValidateGrid(cells []string) error {
	return ValidateGrid(cells, d.Parameters, d.ComponentTypes)
}

// ValidateParameterValue checks that v lies in the allowed parameter range.
func ValidateParameterValue(v int) error {
	if v < MinParameterValue || v > MaxParameterValue {
		return invalid(-1, ReasonParameterRange)
	}
	return nil
}

// ValidateParameterName checks that name can be referenced from a cell: one
// character that does not start the off state.
func ValidateParameterName(name string) error {
	chars := []rune(name)
	if len(chars) != 1 {
		return fmt.Errorf("parameter name %q must be a single character", name)
	}
	if chars[0] == 'o' || chars[0] == 'O' {
		return fmt.Errorf("parameter name %q is reserved for the off state", name)
	}
	return nil
}

// ValidateComponentType checks that token fits the last character of a cell.
func ValidateComponentType(token string) error {
	if len([]rune(token)) != 1 {
		return fmt.Errorf("component type %q must be a single character", token)
	}
	return nil
}

// OffGrid returns a panel with every cell switched off.
func OffGrid() []string {
	cells := make([]string, GridSize)
	for i := range cells {
		cells[i] = OffCell
	}
	return cells
}
